package tts

import (
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestBroadcasterPublish(t *testing.T) {
	b := NewBroadcaster(testLogger())

	first, unsubFirst := b.Subscribe(4)
	second, unsubSecond := b.Subscribe(4)
	defer unsubFirst()
	defer unsubSecond()

	if b.Len() != 2 {
		t.Fatalf("Expected 2 subscribers, got %d", b.Len())
	}

	b.Publish(FinishedMsg{Total: 3})

	for i, ch := range []<-chan tea.Msg{first, second} {
		select {
		case msg := <-ch:
			if m, ok := msg.(FinishedMsg); !ok || m.Total != 3 {
				t.Errorf("Subscriber %d: unexpected message %#v", i, msg)
			}
		case <-time.After(time.Second):
			t.Errorf("Subscriber %d: no message", i)
		}
	}
}

func TestBroadcasterDropsWhenFull(t *testing.T) {
	b := NewBroadcaster(testLogger())
	ch, unsubscribe := b.Subscribe(1)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		b.Publish(ErrorMsg{Index: 0})
		b.Publish(ErrorMsg{Index: 1})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if msg := <-ch; msg.(ErrorMsg).Index != 0 {
		t.Errorf("Expected the first message to be kept, got %#v", msg)
	}
	select {
	case msg := <-ch:
		t.Errorf("Expected the second message to be dropped, got %#v", msg)
	default:
	}
}

func TestBroadcasterUnsubscribe(t *testing.T) {
	b := NewBroadcaster(testLogger())
	ch, unsubscribe := b.Subscribe(0)

	unsubscribe()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Error("Expected the channel to be closed")
	}
	if b.Len() != 0 {
		t.Errorf("Expected no subscribers, got %d", b.Len())
	}
	b.Publish(FinishedMsg{})
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster(testLogger())
	ch, unsubscribe := b.Subscribe(1)

	b.Close()
	b.Close()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Error("Expected the channel to be closed")
	}

	late, _ := b.Subscribe(1)
	if _, ok := <-late; ok {
		t.Error("Expected subscriptions after Close to be closed immediately")
	}
}
