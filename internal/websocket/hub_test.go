package websocket

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestClient(id string) *Client {
	return &Client{ID: id, send: make(chan []byte, 8)}
}

func TestHubRegisterAndBroadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a := newTestClient("web_a")
	b := newTestClient("web_b")
	hub.register <- a
	hub.register <- b

	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	hub.Broadcast(EventTaskUpdate, map[string]string{"id": "t1", "state": "running"})

	for _, c := range []*Client{a, b} {
		select {
		case raw := <-c.send:
			var event Event
			if err := json.Unmarshal(raw, &event); err != nil {
				t.Fatalf("client %s got invalid JSON: %v", c.ID, err)
			}
			if event.Type != EventTaskUpdate {
				t.Errorf("client %s event type = %s, want %s", c.ID, event.Type, EventTaskUpdate)
			}
			if event.Timestamp.IsZero() {
				t.Errorf("client %s event has no timestamp", c.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("client %s never received the broadcast", c.ID)
		}
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := newTestClient("web_c")
	hub.register <- c
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.unregister <- c
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	// The send channel is closed on unregister
	select {
	case _, open := <-c.send:
		if open {
			t.Error("send channel still open after unregister")
		}
	case <-time.After(time.Second):
		t.Error("send channel not closed after unregister")
	}
}

func TestHubSlowClientDoesNotBlockBroadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := &Client{ID: "web_slow", send: make(chan []byte)} // unbuffered, never read
	hub.register <- slow
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Broadcast(EventSyncProgress, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcasting blocked on a slow client")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}
