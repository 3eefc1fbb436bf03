package worker

import (
	"context"
	"sync"
	"time"

	"omnigen/internal/models"
)

const subscriberBuffer = 8

type jobEntry struct {
	job    models.VideoJob
	data   []byte
	cancel context.CancelFunc
}

// jobTable holds the jobs owned by this instance and fans status updates
// out to subscribers, including subscribers of jobs owned elsewhere.
type jobTable struct {
	mu   sync.RWMutex
	jobs map[string]*jobEntry
	subs map[string][]chan models.VideoJob
}

func newJobTable() *jobTable {
	return &jobTable{
		jobs: make(map[string]*jobEntry),
		subs: make(map[string][]chan models.VideoJob),
	}
}

func (t *jobTable) put(job models.VideoJob) {
	t.mu.Lock()
	t.jobs[job.ID] = &jobEntry{job: job}
	t.mu.Unlock()
}

func (t *jobTable) remove(id string) {
	t.mu.Lock()
	delete(t.jobs, id)
	t.mu.Unlock()
}

func (t *jobTable) get(id string) (models.VideoJob, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.jobs[id]
	if !ok {
		return models.VideoJob{}, false
	}
	return e.job, true
}

func (t *jobTable) content(id string) ([]byte, models.VideoJob, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.jobs[id]
	if !ok {
		return nil, models.VideoJob{}, false
	}
	return e.data, e.job, true
}

func (t *jobTable) setCancel(id string, cancel context.CancelFunc) {
	t.mu.Lock()
	if e, ok := t.jobs[id]; ok {
		e.cancel = cancel
	}
	t.mu.Unlock()
}

func (t *jobTable) cancel(id string) {
	t.mu.RLock()
	e, ok := t.jobs[id]
	var cancel context.CancelFunc
	if ok {
		cancel = e.cancel
	}
	t.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// update applies fn to a job that has not reached a terminal status and
// notifies subscribers. It reports the new snapshot.
func (t *jobTable) update(id string, fn func(*models.VideoJob, *[]byte)) (models.VideoJob, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.jobs[id]
	if !ok || e.job.Status.Terminal() {
		return models.VideoJob{}, false
	}
	fn(&e.job, &e.data)
	e.job.UpdatedAt = time.Now().UTC()
	if e.job.Status.Terminal() {
		e.cancel = nil
	}
	t.notifyLocked(e.job)
	return e.job, true
}

// notify forwards a snapshot for a job this instance does not own.
func (t *jobTable) notify(job models.VideoJob) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, owned := t.jobs[job.ID]; owned {
		return
	}
	t.notifyLocked(job)
}

func (t *jobTable) notifyLocked(job models.VideoJob) {
	subs := t.subs[job.ID]
	for _, ch := range subs {
		deliver(ch, job)
		if job.Status.Terminal() {
			close(ch)
		}
	}
	if job.Status.Terminal() {
		delete(t.subs, job.ID)
	}
}

// deliver never blocks; a slow subscriber loses intermediate snapshots
// but always sees the latest.
func deliver(ch chan models.VideoJob, job models.VideoJob) {
	for {
		select {
		case ch <- job:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// subscribe registers for updates of id, seeded with the current snapshot
// (remote when this instance does not own the job). The channel is closed
// after a terminal snapshot or when the returned func is called.
func (t *jobTable) subscribe(id string, remote models.VideoJob) (<-chan models.VideoJob, func()) {
	ch := make(chan models.VideoJob, subscriberBuffer)
	t.mu.Lock()
	current := remote
	if e, ok := t.jobs[id]; ok {
		current = e.job
	}
	ch <- current
	if current.Status.Terminal() {
		t.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	t.subs[id] = append(t.subs[id], ch)
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			subs := t.subs[id]
			for i, c := range subs {
				if c == ch {
					t.subs[id] = append(subs[:i], subs[i+1:]...)
					close(ch)
					break
				}
			}
			if len(t.subs[id]) == 0 {
				delete(t.subs, id)
			}
		})
	}
}

// evictFinished drops terminal jobs last updated before cutoff.
func (t *jobTable) evictFinished(cutoff time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var evicted []string
	for id, e := range t.jobs {
		if e.job.Status.Terminal() && e.job.UpdatedAt.Before(cutoff) {
			delete(t.jobs, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// activeInSession lists unfinished jobs of sessionID.
func (t *jobTable) activeInSession(sessionID string) []models.VideoJob {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var jobs []models.VideoJob
	for _, e := range t.jobs {
		if e.job.SessionID == sessionID && !e.job.Status.Terminal() {
			jobs = append(jobs, e.job)
		}
	}
	return jobs
}

func (t *jobTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}
