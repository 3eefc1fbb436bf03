// Package video drives long-running upstream video operations to completion.
package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"omnigen/internal/models"
)

const DefaultPollInterval = 5 * time.Second

// CheckFunc queries the upstream operation once and returns its new state.
type CheckFunc func(ctx context.Context, handle models.JobHandle) (models.JobHandle, error)

// Poller waits for a JobHandle to finish. Checks are strictly sequential.
type Poller struct {
	interval time.Duration
	timeout  time.Duration
	retries  int
	logger   *zap.Logger
}

type PollerOption func(*Poller)

// WithTimeout bounds the whole wait; zero leaves it to the caller's context.
func WithTimeout(d time.Duration) PollerOption {
	return func(p *Poller) { p.timeout = d }
}

// WithStatusRetries tolerates n consecutive failed status checks.
func WithStatusRetries(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.retries = n
		}
	}
}

func WithLogger(l *zap.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPoller(interval time.Duration, opts ...PollerOption) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Poller{interval: interval, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait sleeps one interval before every check and returns once the handle
// reports done. A handle that is already done is returned without checking.
func (p *Poller) Wait(ctx context.Context, handle models.JobHandle, check CheckFunc) (models.JobHandle, error) {
	if handle.Done {
		return handle, nil
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	failures := 0
	for !handle.Done {
		select {
		case <-ctx.Done():
			return handle, fmt.Errorf("wait for video operation %s: %w", handle.Name, ctx.Err())
		case <-timer.C:
		}

		next, err := check(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return handle, fmt.Errorf("wait for video operation %s: %w", handle.Name, ctx.Err())
			}
			failures++
			if failures > p.retries {
				return handle, err
			}
			p.logger.Warn("video status check failed, retrying",
				zap.String("operation", handle.Name),
				zap.Int("attempt", failures),
				zap.Error(err))
			timer.Reset(p.interval)
			continue
		}
		failures = 0
		handle = next
		if !handle.Done {
			timer.Reset(p.interval)
		}
	}
	return handle, nil
}

// Resolve returns the video locator of a finished handle. It never calls
// upstream, so repeated calls agree.
func Resolve(handle models.JobHandle) (string, error) {
	if !handle.Done {
		return "", models.ErrJobNotFinished
	}
	if handle.Error != "" {
		return "", fmt.Errorf("%w: %s", models.ErrJobFailed, handle.Error)
	}
	if handle.VideoURI == "" {
		return "", models.ErrNoVideoURI
	}
	return handle.VideoURI, nil
}

// IsTimeout reports whether err came from the poller's deadline or the
// caller cancelling the wait.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
