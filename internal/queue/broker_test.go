package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"scribber/internal/model"
)

func newTestBroker(t *testing.T) (*Broker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewBroker(rdb), mr
}

func testMsg(jobID int64) model.JobMessage {
	return model.JobMessage{
		JobID:     jobID,
		ProjectID: 10,
		ModelID:   1,
		Operation: model.OperationTranscription,
	}
}

func TestBrokerEnqueueDequeueAck(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx := context.Background()

	if err := b.Enqueue(ctx, testMsg(1)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	n, err := b.QueueLength(ctx, model.OperationTranscription)
	if err != nil {
		t.Fatalf("QueueLength: %v", err)
	}
	if n != 1 {
		t.Fatalf("queue length = %d, want 1", n)
	}

	d, err := b.Dequeue(ctx, model.OperationTranscription, "slot-0", time.Second)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if d == nil {
		t.Fatal("Dequeue returned nil delivery")
	}
	if d.Msg.JobID != 1 || d.Msg.ProjectID != 10 {
		t.Errorf("delivered message = %+v", d.Msg)
	}

	// The message is parked in the processing list until acked.
	n, _ = b.QueueLength(ctx, model.OperationTranscription)
	if n != 0 {
		t.Errorf("queue length after dequeue = %d, want 0", n)
	}

	if err := b.Ack(ctx, d); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	moved, err := b.Recover(ctx, model.OperationTranscription, "slot-0")
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if moved != 0 {
		t.Errorf("recovered %d messages after ack, want 0", moved)
	}
}

func TestBrokerDequeueTimeout(t *testing.T) {
	b, _ := newTestBroker(t)

	d, err := b.Dequeue(context.Background(), model.OperationTranscription, "slot-0", 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if d != nil {
		t.Fatalf("Dequeue on empty queue = %+v, want nil", d)
	}
}

func TestBrokerRequeueReplacesDelivery(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx := context.Background()

	if err := b.Enqueue(ctx, testMsg(7)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	d, err := b.Dequeue(ctx, model.OperationTranscription, "slot-0", time.Second)
	if err != nil || d == nil {
		t.Fatalf("Dequeue: %v %v", d, err)
	}

	next := d.Msg
	next.Attempt++
	if err := b.Requeue(ctx, d, next); err != nil {
		t.Fatalf("Requeue: %v", err)
	}

	// The original delivery left the processing list.
	moved, _ := b.Recover(ctx, model.OperationTranscription, "slot-0")
	if moved != 0 {
		t.Errorf("recovered %d messages after requeue, want 0", moved)
	}

	d2, err := b.Dequeue(ctx, model.OperationTranscription, "slot-0", time.Second)
	if err != nil || d2 == nil {
		t.Fatalf("Dequeue retry: %v %v", d2, err)
	}
	if d2.Msg.Attempt != 1 {
		t.Errorf("retry attempt = %d, want 1", d2.Msg.Attempt)
	}
}

func TestBrokerRecoverRestoresUnacked(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx := context.Background()

	if err := b.Enqueue(ctx, testMsg(3)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := b.Dequeue(ctx, model.OperationTranscription, "slot-0", time.Second); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}

	// Simulated crash: the delivery was never acked. A restarting
	// consumer finds it again.
	moved, err := b.Recover(ctx, model.OperationTranscription, "slot-0")
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if moved != 1 {
		t.Fatalf("recovered %d messages, want 1", moved)
	}

	d, err := b.Dequeue(ctx, model.OperationTranscription, "slot-0", time.Second)
	if err != nil || d == nil {
		t.Fatalf("Dequeue after recover: %v %v", d, err)
	}
	if d.Msg.JobID != 3 {
		t.Errorf("recovered job id = %d, want 3", d.Msg.JobID)
	}
}

func TestBrokerDropsMalformedPayload(t *testing.T) {
	b, mr := newTestBroker(t)
	ctx := context.Background()

	mr.Lpush(queueKey(model.OperationTranscription), "not-json")

	if _, err := b.Dequeue(ctx, model.OperationTranscription, "slot-0", time.Second); err == nil {
		t.Fatal("Dequeue accepted malformed payload")
	}

	// The bad payload must not cycle back through recovery.
	moved, _ := b.Recover(ctx, model.OperationTranscription, "slot-0")
	if moved != 0 {
		t.Errorf("recovered %d messages, malformed payload should be dropped", moved)
	}
}
