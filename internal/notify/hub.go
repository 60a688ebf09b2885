// Package notify pushes project state changes to subscribed clients.
// The Hub tracks live connections per (owner, project); the Broadcaster
// fans events out across processes over Redis Pub/Sub so a worker can
// publish a transition that an API process relays to its local sockets.
package notify

import (
	"sync"

	"github.com/rs/zerolog"

	"scribber/internal/model"
)

// Event is the payload delivered to subscribers after a state change.
type Event struct {
	Type          string              `json:"type"`
	Status        model.ProjectStatus `json:"status"`
	Transcription *string             `json:"transcription,omitempty"`
	Summary       *string             `json:"summary,omitempty"`
	ErrorMessage  *string             `json:"error_message,omitempty"`
}

// EventFromProject builds the event for a project's current state.
func EventFromProject(p *model.Project) Event {
	typ := "status"
	switch p.Status {
	case model.StatusCompleted:
		typ = "completed"
	case model.StatusFailed:
		typ = "failed"
	}
	return Event{
		Type:          typ,
		Status:        p.Status,
		Transcription: p.Transcription,
		Summary:       p.Summary,
		ErrorMessage:  p.ErrorMessage,
	}
}

// Conn is the transport-supplied connection handle. *websocket.Conn
// satisfies it.
type Conn interface {
	WriteJSON(v any) error
}

type subKey struct {
	userID    int64
	projectID int64
}

// Hub is the in-process connection registry.
type Hub struct {
	mu    sync.RWMutex
	conns map[subKey]map[Conn]struct{}
	log   zerolog.Logger
}

// NewHub creates an empty registry.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		conns: make(map[subKey]map[Conn]struct{}),
		log:   log,
	}
}

// Subscribe registers a connection for a project's events. Ownership must
// be verified by the caller before subscribing.
func (h *Hub) Subscribe(c Conn, userID, projectID int64) {
	key := subKey{userID, projectID}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[key] == nil {
		h.conns[key] = make(map[Conn]struct{})
	}
	h.conns[key][c] = struct{}{}
}

// Unsubscribe removes a connection; the registry entry disappears with
// its last connection.
func (h *Hub) Unsubscribe(c Conn, userID, projectID int64) {
	key := subKey{userID, projectID}
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.conns[key]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, key)
		}
	}
}

// Publish delivers ev to every live connection for (userID, projectID).
// Connections that fail to receive are pruned without aborting delivery
// to the rest.
func (h *Hub) Publish(userID, projectID int64, ev Event) {
	key := subKey{userID, projectID}

	h.mu.RLock()
	targets := make([]Conn, 0, len(h.conns[key]))
	for c := range h.conns[key] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var dead []Conn
	for _, c := range targets {
		if err := c.WriteJSON(ev); err != nil {
			dead = append(dead, c)
		}
	}

	for _, c := range dead {
		h.Unsubscribe(c, userID, projectID)
	}
	if len(dead) > 0 {
		h.log.Debug().
			Int64("project_id", projectID).
			Int("pruned", len(dead)).
			Msg("pruned dead subscriber connections")
	}
}

// Subscribers returns the number of live connections for a project.
func (h *Hub) Subscribers(userID, projectID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[subKey{userID, projectID}])
}
