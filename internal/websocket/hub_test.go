package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, accountID int64) *Client {
	return &Client{
		hub:       hub,
		conn:      nil,
		accountID: accountID,
		send:      make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 2)

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

func TestNotifyTargetsOnly(t *testing.T) {
	hub := NewHub(slog.Default())

	alice := mockClient(hub, 1)
	bob := mockClient(hub, 2)
	carol := mockClient(hub, 3)
	hub.Register(alice)
	hub.Register(bob)
	hub.Register(carol)

	msg := NewMessage("task", "created", map[string]any{"task": "dishes"})
	hub.Notify([]int64{1, 2}, msg)

	for _, c := range []*Client{alice, bob} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "task_created" {
				t.Errorf("expected type task_created, got %s", got.Type)
			}
			if got.Extra["task"] != "dishes" {
				t.Errorf("expected task dishes, got %v", got.Extra["task"])
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	select {
	case <-carol.send:
		t.Error("untargeted client should not receive the message")
	default:
	}

	hub.Unregister(alice)
	hub.Unregister(bob)
	hub.Unregister(carol)
}

func TestNotifyMultipleConnectionsSameAccount(t *testing.T) {
	hub := NewHub(slog.Default())

	phone := mockClient(hub, 1)
	laptop := mockClient(hub, 1)
	hub.Register(phone)
	hub.Register(laptop)

	hub.Notify([]int64{1}, NewMessage("task", "updated", nil))

	for _, c := range []*Client{phone, laptop} {
		select {
		case <-c.send:
		case <-time.After(100 * time.Millisecond):
			t.Fatal("every connection of the account should receive the message")
		}
	}

	hub.Unregister(phone)
	hub.Unregister(laptop)
}

func TestNotifyEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Notify([]int64{1}, NewMessage("task", "deleted", nil))
}

func TestNotifyFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, 1)
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.Notify([]int64{1}, NewMessage("test", "fill", nil))
	}

	// This should drop the message, not panic or block
	hub.Notify([]int64{1}, NewMessage("test", "dropped", nil))

	// Drain to verify buffer was full
	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("invitation", "accepted", nil)
	if msg.Type != "invitation_accepted" {
		t.Errorf("expected type invitation_accepted, got %s", msg.Type)
	}
	if msg.Entity != "invitation" {
		t.Errorf("expected entity invitation, got %s", msg.Entity)
	}
	if msg.Action != "accepted" {
		t.Errorf("expected action accepted, got %s", msg.Action)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	// Spawn goroutines that register, notify, and unregister concurrently
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c := mockClient(hub, id)
			hub.Register(c)
			hub.Notify([]int64{id}, NewMessage("test", "concurrent", nil))
			// Drain any messages
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}(int64(i))
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
