package history

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/readaloud/tts"
)

// Track records the progress of source from playback notifications until
// msgs is closed or ctx is done. A finished session is recorded at its total
// so the next resume starts over.
func (s *Store) Track(ctx context.Context, source string, msgs <-chan tea.Msg) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			s.handle(ctx, source, msg)
		}
	}
}

func (s *Store) handle(ctx context.Context, source string, msg tea.Msg) {
	var position, total int
	switch msg := msg.(type) {
	case tts.StateChangedMsg:
		// Stop clears the session, so its notification carries no total.
		if msg.Total == 0 {
			return
		}
		position, total = msg.Index, msg.Total
	case tts.FinishedMsg:
		position, total = msg.Total, msg.Total
	default:
		return
	}

	if err := s.Record(ctx, source, position, total); err != nil {
		s.log.Warn("Failed to record reading position", "source", source, "error", err)
	}
}
