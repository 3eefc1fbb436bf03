package worker

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"omnigen/internal/models"
)

type sessionQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher hands queued jobs to pooled workers, one session at a time in
// LRU order so a busy session cannot starve the others.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job
	logger   *zap.Logger

	mu        sync.Mutex
	queues    map[string]*sessionQueue
	ready     *list.List // session ids with pending jobs
	positions map[string]*list.Element
}

func NewDispatcher(ctx context.Context, minWorkers, maxWorkers, queueSize int, idleTimeout time.Duration, manager *Manager, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool := newJobChannelPool(ctx, minWorkers, maxWorkers, idleTimeout, manager, logger)

	d := &Dispatcher{
		queues:    make(map[string]*sessionQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		pool:      pool,
		JobQueue:  make(chan Job, queueSize),
		logger:    logger,
	}

	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run(ctx)
	return d
}

// Submit queues job without blocking.
func (d *Dispatcher) Submit(job Job) error {
	select {
	case d.JobQueue <- job:
		return nil
	default:
		return models.ErrDispatcherBusy
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	for {
		if !d.dispatchOne() {
			select {
			case job := <-d.JobQueue:
				d.enqueueJob(job)
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		default:
		}
	}
}

// CancelSession drops every job of sessionID that has not started yet and
// returns them.
func (d *Dispatcher) CancelSession(sessionID string) []Job {
	d.mu.Lock()
	defer d.mu.Unlock()

	var dropped []Job
	if q, ok := d.queues[sessionID]; ok {
		dropped = q.jobs
		delete(d.queues, sessionID)
	}
	if elem, ok := d.positions[sessionID]; ok {
		d.ready.Remove(elem)
		delete(d.positions, sessionID)
	}
	return dropped
}

func (d *Dispatcher) enqueueJob(job Job) {
	sessionID := job.sessionID()

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[sessionID]
	if q == nil {
		q = &sessionQueue{}
		d.queues[sessionID] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[sessionID] = d.ready.PushBack(sessionID)
}

// dispatchOne sends the next job to a worker, waiting for one if needed.
func (d *Dispatcher) dispatchOne() bool {
	job, ok := d.next()
	if !ok {
		return false
	}
	workerChan := d.pool.acquire()
	d.logger.Debug("dispatch video job",
		zap.String("job_id", job.Task.jobID),
		zap.String("session_id", job.sessionID()),
		zap.Int("worker", d.pool.workerID(workerChan)))
	workerChan <- job
	return true
}

// next pops the head job of the least recently served session and moves
// that session to the back.
func (d *Dispatcher) next() (Job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	elem := d.ready.Front()
	if elem == nil {
		return Job{}, false
	}
	sessionID := elem.Value.(string)
	q := d.queues[sessionID]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, sessionID)
		delete(d.queues, sessionID)
	} else {
		d.ready.MoveToBack(elem)
	}
	return job, true
}
