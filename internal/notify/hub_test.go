package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"scribber/internal/model"
)

type fakeConn struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, v.(Event))
	return nil
}

func (f *fakeConn) received() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.events))
	copy(out, f.events)
	return out
}

func statusEvent(s model.ProjectStatus) Event {
	return Event{Type: "status", Status: s}
}

func TestHubPublishExactlyOnce(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := &fakeConn{}
	hub.Subscribe(c, 1, 10)

	hub.Publish(1, 10, statusEvent(model.StatusTranscribing))

	got := c.received()
	if len(got) != 1 {
		t.Fatalf("received %d events, want 1", len(got))
	}
	if got[0].Status != model.StatusTranscribing {
		t.Errorf("event status = %q, want transcribing", got[0].Status)
	}
}

func TestHubScopesByOwnerAndProject(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	owner := &fakeConn{}
	otherProject := &fakeConn{}
	otherUser := &fakeConn{}
	hub.Subscribe(owner, 1, 10)
	hub.Subscribe(otherProject, 1, 11)
	hub.Subscribe(otherUser, 2, 10)

	hub.Publish(1, 10, statusEvent(model.StatusCompleted))

	if n := len(owner.received()); n != 1 {
		t.Errorf("owner received %d events, want 1", n)
	}
	if n := len(otherProject.received()); n != 0 {
		t.Errorf("other project received %d events, want 0", n)
	}
	if n := len(otherUser.received()); n != 0 {
		t.Errorf("other user received %d events, want 0", n)
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := &fakeConn{}
	hub.Subscribe(c, 1, 10)
	hub.Unsubscribe(c, 1, 10)

	hub.Publish(1, 10, statusEvent(model.StatusCompleted))

	if n := len(c.received()); n != 0 {
		t.Errorf("received %d events after unsubscribe, want 0", n)
	}
	if n := hub.Subscribers(1, 10); n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}
}

func TestHubPrunesDeadConnections(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	dead := &fakeConn{err: errors.New("broken pipe")}
	live := &fakeConn{}
	hub.Subscribe(dead, 1, 10)
	hub.Subscribe(live, 1, 10)

	hub.Publish(1, 10, statusEvent(model.StatusCompleted))

	if n := len(live.received()); n != 1 {
		t.Errorf("live connection received %d events, want 1", n)
	}
	if n := hub.Subscribers(1, 10); n != 1 {
		t.Errorf("subscribers = %d, want dead connection pruned", n)
	}
}

func TestEventFromProject(t *testing.T) {
	errText := "provider rejected the file"
	tests := []struct {
		status   model.ProjectStatus
		wantType string
	}{
		{model.StatusTranscribing, "status"},
		{model.StatusSummarizing, "status"},
		{model.StatusCompleted, "completed"},
		{model.StatusFailed, "failed"},
	}
	for _, tt := range tests {
		p := &model.Project{Status: tt.status}
		if tt.status == model.StatusFailed {
			p.ErrorMessage = &errText
		}
		ev := EventFromProject(p)
		if ev.Type != tt.wantType {
			t.Errorf("EventFromProject(%s).Type = %q, want %q", tt.status, ev.Type, tt.wantType)
		}
		if ev.Status != tt.status {
			t.Errorf("EventFromProject(%s).Status = %q", tt.status, ev.Status)
		}
	}
}

func TestBroadcasterLocalFallback(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := &fakeConn{}
	hub.Subscribe(c, 1, 10)

	// Without Redis the broadcaster delivers straight to the local hub.
	b := NewBroadcaster(hub, nil, zerolog.Nop())
	b.Publish(context.Background(), 1, 10, statusEvent(model.StatusCompleted))

	if n := len(c.received()); n != 1 {
		t.Fatalf("received %d events, want 1", n)
	}
}

func TestBroadcasterRelaysOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	hub := NewHub(zerolog.Nop())
	c := &fakeConn{}
	hub.Subscribe(c, 1, 10)

	b := NewBroadcaster(hub, rdb, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	// Give the subscriber a moment to attach before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for {
		b.Publish(ctx, 1, 10, statusEvent(model.StatusCompleted))
		if len(c.received()) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("event never relayed through redis")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
