// Package videogen implements video generation mode: acquire a key, submit the
// operation, poll it to completion and download the result.
package videogen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"omnigen/internal/models"
	"omnigen/internal/upstream"
	"omnigen/internal/video"
)

// keyRejectedMarker is how upstream reports an unusable selected key.
const keyRejectedMarker = "Requested entity was not found"

// KeyGate resolves the key a video request is billed to.
type KeyGate interface {
	Acquire(ctx context.Context) (string, error)
}

// ProgressFunc receives stage messages. It is called from the goroutine
// running Generate.
type ProgressFunc func(stage string)

type Service struct {
	backend upstream.Backend
	gate    KeyGate
	poller  *video.Poller
	fetcher *video.Fetcher
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(backend upstream.Backend, gate KeyGate, poller *video.Poller, fetcher *video.Fetcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fetcher == nil {
		fetcher = video.NewFetcher(nil)
	}
	return &Service{
		backend: backend,
		gate:    gate,
		poller:  poller,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

// Generate runs one video generation end to end. The returned result holds
// the video bytes; URL is left for the caller to fill.
func (s *Service) Generate(ctx context.Context, req models.VideoRequest, progress ProgressFunc) (*models.GenerationResult, error) {
	apiKey, err := s.Prepare(ctx, &req)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, apiKey, req, progress)
}

// Prepare validates req in place and acquires the key it will be billed to.
// It never calls the generation API.
func (s *Service) Prepare(ctx context.Context, req *models.VideoRequest) (string, error) {
	if err := req.Normalize(); err != nil {
		return "", err
	}
	return s.gate.Acquire(ctx)
}

// Run submits a prepared request, polls it to completion and downloads the
// video.
func (s *Service) Run(ctx context.Context, apiKey string, req models.VideoRequest, progress ProgressFunc) (*models.GenerationResult, error) {
	start := s.now()
	stage := video.FirstStage()
	report(progress, stage)

	handle, err := s.backend.SubmitVideo(ctx, apiKey, req)
	if err != nil {
		return nil, mapKeyError(err)
	}
	log := s.logger.With(zap.String("operation", handle.Name))
	log.Info("video operation started", zap.String("resolution", req.Resolution), zap.String("aspect_ratio", req.AspectRatio))

	check := func(ctx context.Context, h models.JobHandle) (models.JobHandle, error) {
		if next := video.StageAt(s.now().Sub(start)); next != stage {
			stage = next
			report(progress, stage)
		}
		return s.backend.CheckVideo(ctx, apiKey, h)
	}
	handle, err = s.poller.Wait(ctx, handle, check)
	if err != nil {
		return nil, mapKeyError(err)
	}
	uri, err := video.Resolve(handle)
	if err != nil {
		log.Warn("video operation finished without video", zap.Error(err))
		return nil, err
	}
	data, mime, err := s.fetcher.Fetch(ctx, uri, apiKey)
	if err != nil {
		return nil, err
	}
	log.Info("video downloaded", zap.Int("bytes", len(data)), zap.Duration("elapsed", s.now().Sub(start)))
	return &models.GenerationResult{
		MimeType:  mime,
		Prompt:    req.Prompt,
		Timestamp: s.now().UTC(),
		Data:      data,
	}, nil
}

func report(progress ProgressFunc, stage string) {
	if progress != nil {
		progress(stage)
	}
}

func mapKeyError(err error) error {
	if err != nil && strings.Contains(err.Error(), keyRejectedMarker) {
		return fmt.Errorf("%w: %w", models.ErrKeyRejected, err)
	}
	return err
}
