package live

import (
	"testing"
	"time"

	"trivia-service/internal/game"
)

// A disconnect can race an event emission: the forwarder keeps draining
// events buffered in its subscription after the hub has shut the client
// down. Sends after closeSend must be dropped, not panic.
func TestSendMessageAfterCloseIsDropped(t *testing.T) {
	c := NewClient(nil, nil, "user-1", "session-1", false)

	events := make(chan game.Event, 16)
	events <- game.Event{Type: game.EventResult}
	events <- game.Event{Type: game.EventFinished}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			c.SendMessage(MessageTypeEvent, ev)
		}
	}()

	c.closeSend()
	close(events)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarder never finished draining")
	}
}

func TestCloseSendIsIdempotent(t *testing.T) {
	c := NewClient(nil, nil, "user-1", "session-1", true)
	c.closeSend()
	c.closeSend()

	if _, ok := <-c.Send; ok {
		t.Fatal("send channel still open after closeSend")
	}
	c.SendMessage(MessageTypePong, nil)
}
