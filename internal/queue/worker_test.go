package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"scribber/internal/model"
)

type tempErr struct{ msg string }

func (e tempErr) Error() string   { return e.msg }
func (e tempErr) Temporary() bool { return true }

// fakeProcessor returns scripted errors in call order; the last entry
// repeats once the script runs out.
type fakeProcessor struct {
	mu        sync.Mutex
	script    []error
	calls     int
	failCalls int
	failCause error
}

func (f *fakeProcessor) Process(ctx context.Context, msg model.JobMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	return f.script[i]
}

func (f *fakeProcessor) FailProject(ctx context.Context, msg model.JobMessage, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCalls++
	f.failCause = cause
	return nil
}

func (f *fakeProcessor) stats() (calls, failCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.failCalls
}

type fakeJobRepo struct {
	mu       sync.Mutex
	statuses map[int64]model.JobStatus
	attempts map[int64]int
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		statuses: make(map[int64]model.JobStatus),
		attempts: make(map[int64]int),
	}
}

func (f *fakeJobRepo) CreateActive(ctx context.Context, j *model.Job) error { return nil }

func (f *fakeJobRepo) SetStatus(ctx context.Context, id int64, status model.JobStatus, attempts int, lastError *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	f.attempts[id] = attempts
	return nil
}

func (f *fakeJobRepo) GetByID(ctx context.Context, id int64) (*model.Job, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeJobRepo) ListByProject(ctx context.Context, projectID int64) ([]model.Job, error) {
	return nil, nil
}

func (f *fakeJobRepo) status(id int64) (model.JobStatus, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[id], f.attempts[id]
}

func runWorker(t *testing.T, b *Broker, proc Processor, jobs *fakeJobRepo, maxRetries int) context.CancelFunc {
	t.Helper()
	w := NewWorker(b, proc, jobs, WorkerConfig{
		Counts:         map[model.OperationType]int{model.OperationTranscription: 1},
		MaxRetries:     maxRetries,
		RetryDelay:     time.Millisecond,
		HardTimeout:    5 * time.Second,
		SoftTimeout:    4 * time.Second,
		DequeueTimeout: 20 * time.Millisecond,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("worker did not stop")
		}
	})
	return cancel
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWorkerProcessesJobOnce(t *testing.T) {
	b, _ := newTestBroker(t)
	proc := &fakeProcessor{script: []error{nil}}
	jobs := newFakeJobRepo()
	runWorker(t, b, proc, jobs, 3)

	if err := b.Enqueue(context.Background(), testMsg(1)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, "job to succeed", func() bool {
		s, _ := jobs.status(1)
		return s == model.JobSucceeded
	})

	calls, failCalls := proc.stats()
	if calls != 1 {
		t.Errorf("Process calls = %d, want 1", calls)
	}
	if failCalls != 0 {
		t.Errorf("FailProject calls = %d, want 0", failCalls)
	}
	if _, attempts := jobs.status(1); attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestWorkerRetriesTransientThenAbandons(t *testing.T) {
	b, _ := newTestBroker(t)
	proc := &fakeProcessor{script: []error{tempErr{"rate limited"}}}
	jobs := newFakeJobRepo()
	const maxRetries = 3
	runWorker(t, b, proc, jobs, maxRetries)

	if err := b.Enqueue(context.Background(), testMsg(2)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, "job abandonment", func() bool {
		s, _ := jobs.status(2)
		return s == model.JobAbandoned
	})

	calls, failCalls := proc.stats()
	if want := maxRetries + 1; calls != want {
		t.Errorf("Process calls = %d, want %d", calls, want)
	}
	if failCalls != 1 {
		t.Errorf("FailProject calls = %d, want exactly 1 at exhaustion", failCalls)
	}

	n, _ := b.QueueLength(context.Background(), model.OperationTranscription)
	if n != 0 {
		t.Errorf("queue length = %d, abandoned job must be acked", n)
	}
}

func TestWorkerTransientThenSuccess(t *testing.T) {
	b, _ := newTestBroker(t)
	proc := &fakeProcessor{script: []error{tempErr{"flaky"}, nil}}
	jobs := newFakeJobRepo()
	runWorker(t, b, proc, jobs, 3)

	if err := b.Enqueue(context.Background(), testMsg(3)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, "job to succeed after retry", func() bool {
		s, _ := jobs.status(3)
		return s == model.JobSucceeded
	})

	calls, failCalls := proc.stats()
	if calls != 2 {
		t.Errorf("Process calls = %d, want 2", calls)
	}
	if failCalls != 0 {
		t.Errorf("FailProject calls = %d, want 0", failCalls)
	}
	if _, attempts := jobs.status(3); attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestWorkerTerminalFailureNoRetry(t *testing.T) {
	b, _ := newTestBroker(t)
	proc := &fakeProcessor{script: []error{errors.New("unsupported format")}}
	jobs := newFakeJobRepo()
	runWorker(t, b, proc, jobs, 3)

	if err := b.Enqueue(context.Background(), testMsg(4)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, "job failure", func() bool {
		s, _ := jobs.status(4)
		return s == model.JobFailed
	})

	calls, failCalls := proc.stats()
	if calls != 1 {
		t.Errorf("Process calls = %d, terminal errors must not retry", calls)
	}
	// The processor persisted the project failure itself.
	if failCalls != 0 {
		t.Errorf("FailProject calls = %d, want 0", failCalls)
	}
}

func TestWorkerDropsVanishedProject(t *testing.T) {
	b, _ := newTestBroker(t)
	// A wrapped ErrDrop, as the processor returns it.
	proc := &fakeProcessor{script: []error{fmt.Errorf("project 10 not found: %w", ErrDrop)}}
	jobs := newFakeJobRepo()
	runWorker(t, b, proc, jobs, 3)

	if err := b.Enqueue(context.Background(), testMsg(5)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, "job abandonment", func() bool {
		s, _ := jobs.status(5)
		return s == model.JobAbandoned
	})

	calls, failCalls := proc.stats()
	if calls != 1 {
		t.Errorf("Process calls = %d, want 1", calls)
	}
	if failCalls != 0 {
		t.Errorf("FailProject calls = %d, dropped jobs must not touch the project", failCalls)
	}
}
