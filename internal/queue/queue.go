package queue

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Job is one unit of background work. Workflow errors must be absorbed
// inside the job; the queue always observes completion.
type Job func(ctx context.Context)

// Handle identifies a submitted job.
type Handle struct {
	ID   string
	Name string
	done chan struct{}
}

// Done is closed when the job has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

type task struct {
	handle *Handle
	job    Job
}

// Queue is a bounded worker pool for workflow jobs. Each job runs on one
// worker with no internal parallelism, matching the single-flow-per-record
// execution model.
type Queue struct {
	tasks   chan task
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// New starts a queue with the given number of workers and buffer size.
func New(workers, buffer int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 16
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:   make(chan task, buffer),
		baseCtx: ctx,
		cancel:  cancel,
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	log.Printf("[queue] Started %d workers (buffer: %d)", workers, buffer)
	return q
}

// Submit enqueues a job and returns its handle. Blocks when the buffer is
// full. Returns nil after shutdown.
//
// The mutex is held across the send so Shutdown can never close the
// channel while a sender is in flight.
func (q *Queue) Submit(name string, job Job) *Handle {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		log.Printf("[queue] Rejected %s: queue is shut down", name)
		return nil
	}

	h := &Handle{
		ID:   uuid.New().String(),
		Name: name,
		done: make(chan struct{}),
	}

	q.tasks <- task{handle: h, job: job}
	return h
}

// Shutdown stops intake and waits for in-flight jobs to finish. A Submit
// blocked on a full buffer completes before intake closes; the workers
// keep draining, so that send cannot deadlock.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.tasks)
	q.wg.Wait()
	q.cancel()
	log.Printf("[queue] Shut down")
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()

	for t := range q.tasks {
		q.run(id, t)
	}
}

func (q *Queue) run(workerID int, t task) {
	defer close(t.handle.done)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[queue] Worker %d: job %s (%s) panicked: %v", workerID, t.handle.Name, t.handle.ID, r)
		}
	}()

	log.Printf("[queue] Worker %d: running %s (%s)", workerID, t.handle.Name, t.handle.ID)
	t.job(q.baseCtx)
	log.Printf("[queue] Worker %d: finished %s (%s)", workerID, t.handle.Name, t.handle.ID)
}
