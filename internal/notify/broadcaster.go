package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const eventsChannel = "scribber:events"

// envelope wraps an event with its routing key for transit over the
// pub/sub channel.
type envelope struct {
	UserID    int64 `json:"user_id"`
	ProjectID int64 `json:"project_id"`
	Event     Event `json:"event"`
}

// Broadcaster publishes events across processes. With a Redis client it
// goes through Pub/Sub so every process holding live connections relays;
// without one (tests, single-process runs) it delivers straight to the
// local hub.
type Broadcaster struct {
	hub *Hub
	rdb *redis.Client
	log zerolog.Logger
}

// NewBroadcaster creates a broadcaster. rdb may be nil for local-only
// delivery.
func NewBroadcaster(hub *Hub, rdb *redis.Client, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{hub: hub, rdb: rdb, log: log}
}

// Publish sends ev to every subscriber of (userID, projectID), wherever
// their connection is held. Delivery failures never propagate to the
// caller's job outcome.
func (b *Broadcaster) Publish(ctx context.Context, userID, projectID int64, ev Event) {
	if b.rdb == nil {
		b.hub.Publish(userID, projectID, ev)
		return
	}

	raw, err := json.Marshal(envelope{UserID: userID, ProjectID: projectID, Event: ev})
	if err != nil {
		b.log.Error().Err(err).Msg("failed to encode notification")
		return
	}
	if err := b.rdb.Publish(ctx, eventsChannel, raw).Err(); err != nil {
		b.log.Error().Err(err).
			Int64("project_id", projectID).
			Msg("failed to publish notification")
	}
}

// Run subscribes to the events channel and relays incoming events to the
// local hub until ctx is canceled. Only processes that hold client
// connections need to run this.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.rdb == nil {
		<-ctx.Done()
		return nil
	}

	sub := b.rdb.Subscribe(ctx, eventsChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn().Err(err).Msg("dropping malformed notification")
				continue
			}
			b.hub.Publish(env.UserID, env.ProjectID, env.Event)
		}
	}
}
