// Package queue implements the durable job queue on Redis lists, the
// enqueue-side validation service, and the worker pool that consumes
// jobs. Delivery is at-least-once: a message moves into a per-consumer
// processing list on dequeue and is only removed after the handler
// finishes, so a crashed worker leaves the message recoverable.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"scribber/internal/model"
)

const (
	queueKeyPrefix      = "scribber:queue:"
	processingKeyPrefix = "scribber:processing:"
)

func queueKey(op model.OperationType) string {
	return queueKeyPrefix + string(op)
}

func processingKey(op model.OperationType, consumer string) string {
	return processingKeyPrefix + string(op) + ":" + consumer
}

// Broker is the Redis-backed job queue. One list per operation kind, so
// worker capacity can be provisioned per operation.
type Broker struct {
	rdb *redis.Client
}

// NewBroker creates a broker over an existing Redis client.
func NewBroker(rdb *redis.Client) *Broker {
	return &Broker{rdb: rdb}
}

// Ping verifies broker connectivity.
func (b *Broker) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Delivery is one in-flight message held in a processing list until
// acked or requeued.
type Delivery struct {
	Msg      model.JobMessage
	raw      string
	op       model.OperationType
	consumer string
}

// Enqueue pushes a job message onto its operation queue.
func (b *Broker) Enqueue(ctx context.Context, msg model.JobMessage) error {
	raw, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode job message: %w", err)
	}
	if err := b.rdb.LPush(ctx, queueKey(msg.Operation), raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s job: %w", msg.Operation, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next message on the operation
// queue, atomically moving it into the consumer's processing list.
// Returns (nil, nil) when the timeout elapses with no message.
func (b *Broker) Dequeue(ctx context.Context, op model.OperationType, consumer string, timeout time.Duration) (*Delivery, error) {
	raw, err := b.rdb.BRPopLPush(ctx, queueKey(op), processingKey(op, consumer), timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue %s job: %w", op, err)
	}

	msg, err := model.DecodeJobMessage([]byte(raw))
	if err != nil {
		// Malformed payload: drop it from the processing list so it
		// cannot keep cycling.
		b.rdb.LRem(ctx, processingKey(op, consumer), 1, raw)
		return nil, fmt.Errorf("decode %s job payload: %w", op, err)
	}

	return &Delivery{Msg: msg, raw: raw, op: op, consumer: consumer}, nil
}

// Ack removes a delivered message from the processing list. Called only
// after processing finished; this is what makes delivery at-least-once.
func (b *Broker) Ack(ctx context.Context, d *Delivery) error {
	return b.rdb.LRem(ctx, processingKey(d.op, d.consumer), 1, d.raw).Err()
}

// Requeue replaces a delivered message with a follow-up attempt: the new
// message goes onto the tail of the queue and the old one leaves the
// processing list in one pipeline.
func (b *Broker) Requeue(ctx context.Context, d *Delivery, next model.JobMessage) error {
	raw, err := next.Encode()
	if err != nil {
		return fmt.Errorf("encode retry message: %w", err)
	}

	pipe := b.rdb.TxPipeline()
	pipe.LPush(ctx, queueKey(next.Operation), raw)
	pipe.LRem(ctx, processingKey(d.op, d.consumer), 1, d.raw)
	_, err = pipe.Exec(ctx)
	return err
}

// Recover moves any messages left in the consumer's processing list back
// onto their queue. Called at worker startup so jobs interrupted by a
// crash are redelivered.
func (b *Broker) Recover(ctx context.Context, op model.OperationType, consumer string) (int, error) {
	moved := 0
	for {
		_, err := b.rdb.RPopLPush(ctx, processingKey(op, consumer), queueKey(op)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return moved, nil
			}
			return moved, err
		}
		moved++
	}
}

// QueueLength returns the number of waiting messages for an operation.
func (b *Broker) QueueLength(ctx context.Context, op model.OperationType) (int64, error) {
	return b.rdb.LLen(ctx, queueKey(op)).Result()
}
