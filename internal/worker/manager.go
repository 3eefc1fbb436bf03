// Package worker runs video generations as background jobs on a bounded,
// session-fair worker pool.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"omnigen/internal/models"
	"omnigen/internal/redis"
	"omnigen/internal/service/videogen"
	"omnigen/internal/video"
)

// AnonymousSession groups jobs submitted without a session id.
const AnonymousSession = "anonymous"

const defaultResultTTL = time.Hour

// Generator is the video pipeline a job runs.
type Generator interface {
	Prepare(ctx context.Context, req *models.VideoRequest) (string, error)
	Run(ctx context.Context, apiKey string, req models.VideoRequest, progress videogen.ProgressFunc) (*models.GenerationResult, error)
}

type DispatcherConfig struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

type Options struct {
	Dispatcher DispatcherConfig
	// ResultTTL is how long finished jobs stay queryable.
	ResultTTL time.Duration
	// Redis, when set, mirrors job records and relays updates between
	// instances.
	Redis  *redis.Client
	Logger *zap.Logger
}

type Manager struct {
	generator  Generator
	dispatcher *Dispatcher
	jobs       *jobTable
	cache      *stateRedis
	resultTTL  time.Duration
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(generator Generator, opts Options) (*Manager, error) {
	if generator == nil {
		return nil, errors.New("video generator required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := opts.ResultTTL
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	cfg := opts.Dispatcher
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		generator: generator,
		jobs:      newJobTable(),
		cache:     newStateCache(opts.Redis, ttl, logger),
		resultTTL: ttl,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	if err := m.cache.startListener(ctx, m.jobs.notify); err != nil {
		cancel()
		return nil, fmt.Errorf("listen for job updates: %w", err)
	}
	m.dispatcher = NewDispatcher(ctx, cfg.MinWorkers, cfg.MaxWorkers, cfg.QueueSize, cfg.IdleTimeout, m, logger)
	return m, nil
}

// Submit validates req, acquires its key and queues it. Validation and
// credential errors are returned here; generation errors end up on the job.
func (m *Manager) Submit(ctx context.Context, sessionID string, req models.VideoRequest) (*models.VideoJob, error) {
	if sessionID == "" {
		sessionID = AnonymousSession
	}
	apiKey, err := m.generator.Prepare(ctx, &req)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	job := models.VideoJob{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Prompt:    req.Prompt,
		Status:    models.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.jobs.put(job)
	m.cache.cacheJob(job)

	task := &videoTask{jobID: job.ID, sessionID: sessionID, apiKey: apiKey, req: req}
	if err := m.dispatcher.Submit(Job{Type: Run, Task: task}); err != nil {
		m.jobs.remove(job.ID)
		m.cache.invalidateJob(job.ID)
		return nil, err
	}
	m.logger.Info("video job queued", zap.String("job_id", job.ID), zap.String("session_id", sessionID))
	return &job, nil
}

func (m *Manager) Get(id string) (*models.VideoJob, error) {
	if job, ok := m.jobs.get(id); ok {
		return &job, nil
	}
	if job, ok := m.cache.loadJob(id); ok {
		return &job, nil
	}
	return nil, models.ErrJobNotFound
}

// Content returns the video of a succeeded job.
func (m *Manager) Content(id string) ([]byte, *models.VideoJob, error) {
	data, job, ok := m.jobs.content(id)
	if !ok {
		remote, found := m.cache.loadJob(id)
		if !found {
			return nil, nil, models.ErrJobNotFound
		}
		job = remote
		if job.Status == models.JobSucceeded {
			if data, ok = m.cache.loadContent(id); !ok {
				return nil, nil, models.ErrJobNotFound
			}
		}
	}
	switch job.Status {
	case models.JobSucceeded:
		return data, &job, nil
	case models.JobFailed:
		return nil, &job, fmt.Errorf("%w: %s", models.ErrJobFailed, job.Error)
	default:
		return nil, &job, models.ErrJobNotFinished
	}
}

// Subscribe streams snapshots of job id until it finishes. Call the
// returned func to stop early.
func (m *Manager) Subscribe(id string) (<-chan models.VideoJob, func(), error) {
	if job, ok := m.jobs.get(id); ok {
		ch, cancel := m.jobs.subscribe(id, job)
		return ch, cancel, nil
	}
	if job, ok := m.cache.loadJob(id); ok {
		ch, cancel := m.jobs.subscribe(id, job)
		return ch, cancel, nil
	}
	return nil, nil, models.ErrJobNotFound
}

// CancelSession fails queued jobs of sessionID and cancels its running ones.
func (m *Manager) CancelSession(sessionID string) int {
	m.dispatcher.CancelSession(sessionID)
	active := m.jobs.activeInSession(sessionID)
	for _, job := range active {
		if job.Status == models.JobQueued {
			m.fail(job.ID, models.ErrJobCancelled)
			continue
		}
		m.jobs.cancel(job.ID)
	}
	if len(active) > 0 {
		m.logger.Info("video jobs cancelled", zap.String("session_id", sessionID), zap.Int("count", len(active)))
	}
	return len(active)
}

// Sweep evicts finished jobs older than the result TTL.
func (m *Manager) Sweep(now time.Time) int {
	return len(m.jobs.evictFinished(now.Add(-m.resultTTL)))
}

type Stats struct {
	Jobs        int `json:"jobs"`
	Workers     int `json:"workers"`
	IdleWorkers int `json:"idle_workers"`
	Pending     int `json:"pending"`
}

func (m *Manager) Stats() Stats {
	running, idle := m.dispatcher.pool.stats()
	return Stats{
		Jobs:        m.jobs.len(),
		Workers:     running,
		IdleWorkers: idle,
		Pending:     len(m.dispatcher.JobQueue),
	}
}

// Close cancels running jobs and stops dispatching.
func (m *Manager) Close() {
	m.cancel()
}

func (m *Manager) runTask(task *videoTask) {
	ctx, cancel := context.WithCancel(m.ctx)
	defer cancel()
	m.jobs.setCancel(task.jobID, cancel)

	if _, ok := m.transition(task.jobID, func(job *models.VideoJob, _ *[]byte) {
		job.Status = models.JobRunning
		job.Stage = video.FirstStage()
	}); !ok {
		return
	}
	log := m.logger.With(zap.String("job_id", task.jobID))

	res, err := m.generator.Run(ctx, task.apiKey, task.req, func(stage string) {
		m.transition(task.jobID, func(job *models.VideoJob, _ *[]byte) {
			job.Stage = stage
		})
	})
	if err != nil {
		log.Warn("video job failed", zap.Error(err))
		m.fail(task.jobID, err)
		return
	}
	m.cache.cacheContent(task.jobID, res.Data)
	m.transition(task.jobID, func(job *models.VideoJob, data *[]byte) {
		job.Status = models.JobSucceeded
		job.Stage = ""
		job.MimeType = res.MimeType
		job.Size = len(res.Data)
		*data = res.Data
	})
	log.Info("video job succeeded", zap.Int("bytes", len(res.Data)))
}

func (m *Manager) fail(id string, err error) {
	m.transition(id, func(job *models.VideoJob, _ *[]byte) {
		job.Status = models.JobFailed
		job.Stage = ""
		job.Error = jobErrorMessage(err)
	})
}

func (m *Manager) transition(id string, fn func(*models.VideoJob, *[]byte)) (models.VideoJob, bool) {
	job, ok := m.jobs.update(id, fn)
	if !ok {
		return job, false
	}
	m.cache.cacheJob(job)
	m.cache.publishUpdate(job)
	return job, true
}

// jobErrorMessage is the user-visible error recorded on a failed job.
func jobErrorMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrJobCancelled), errors.Is(err, context.Canceled):
		return models.ErrJobCancelled.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "video generation timed out"
	case errors.Is(err, models.ErrKeyRejected):
		return models.ErrKeyRejected.Error()
	case errors.Is(err, models.ErrNoVideoURI):
		return models.ErrNoVideoURI.Error()
	case errors.Is(err, models.ErrVideoDownload):
		return models.ErrVideoDownload.Error()
	default:
		return err.Error()
	}
}
