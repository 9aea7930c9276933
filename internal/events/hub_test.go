package events

import (
	"encoding/json"
	"log/slog"
	"testing"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, householdID int64) *Client {
	return &Client{
		hub:         hub,
		conn:        nil,
		householdID: householdID,
		send:        make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 1)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestPublishScopedToHousehold(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 2)
	hub.Register(c1)
	hub.Register(c2)

	hub.Publish(NewEvent("member", "approved", 1, 42))

	select {
	case data := <-c1.send:
		var got Event
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != "member_approved" {
			t.Errorf("expected type member_approved, got %s", got.Type)
		}
		if got.UserID != 42 {
			t.Errorf("expected user 42, got %d", got.UserID)
		}
	default:
		t.Fatal("household 1 client should have received the event")
	}

	select {
	case <-c2.send:
		t.Fatal("household 2 client should not receive household 1 events")
	default:
	}
}

func TestPublishUnscopedReachesEveryone(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 2)
	hub.Register(c1)
	hub.Register(c2)

	hub.Publish(Event{Type: "system_notice", Entity: "system", Action: "notice"})

	for i, c := range []*Client{c1, c2} {
		select {
		case <-c.send:
		default:
			t.Fatalf("client %d should have received the unscoped event", i+1)
		}
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1)
	hub.Register(c)

	// Overfill the buffer; the hub must not block.
	for i := 0; i < sendBufferSize+5; i++ {
		hub.Publish(NewEvent("member", "updated", 1, int64(i)))
	}

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("buffered = %d, want %d", got, sendBufferSize)
	}
}

func TestPublishNoClients(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic with zero clients.
	hub.Publish(NewEvent("member", "removed", 1, 1))
}
