package tts

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// voiceSource adapts a voice list to fuzzy.Source.
type voiceSource []Voice

func (v voiceSource) String(i int) string { return v[i].Name }
func (v voiceSource) Len() int            { return len(v) }

// ResolveVoice picks the voice in voices that best matches query. An exact
// name match, ignoring case, wins over a fuzzy match. An empty query resolves
// to the empty voice, which engines treat as their default.
func ResolveVoice(query string, voices []Voice) (Voice, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Voice{}, nil
	}

	for _, v := range voices {
		if strings.EqualFold(v.Name, query) {
			return v, nil
		}
	}

	matches := fuzzy.FindFrom(query, voiceSource(voices))
	if len(matches) == 0 {
		return Voice{}, fmt.Errorf("%w: %q", ErrVoiceNotFound, query)
	}
	return voices[matches[0].Index], nil
}
