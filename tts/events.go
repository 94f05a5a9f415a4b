package tts

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

// DefaultSubscriberBuffer is the channel buffer given to subscribers that
// pass a non-positive size.
const DefaultSubscriberBuffer = 32

// Broadcaster fans notification messages out to subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the message.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan tea.Msg
	closed bool
	log    *log.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *log.Logger) *Broadcaster {
	if logger == nil {
		logger = log.Default()
	}
	return &Broadcaster{
		subs: make(map[int]chan tea.Msg),
		log:  logger,
	}
}

// Subscribe registers a new subscriber. The returned function unsubscribes
// and closes the channel; calling it more than once is harmless.
func (b *Broadcaster) Subscribe(buffer int) (<-chan tea.Msg, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan tea.Msg, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers msg to every subscriber that has room for it.
func (b *Broadcaster) Publish(msg tea.Msg) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			b.log.Debug("Dropped notification for slow subscriber", "subscriber", id, "type", MessageType(msg))
		}
	}
}

// Len returns the number of subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close unsubscribes everyone and rejects later subscriptions.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
