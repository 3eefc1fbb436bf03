// Package image implements image generation and editing mode.
package image

import (
	"context"
	"time"

	"go.uber.org/zap"

	"omnigen/internal/models"
	"omnigen/internal/upstream"
)

type Service struct {
	backend upstream.Backend
	logger  *zap.Logger
}

func NewService(backend upstream.Backend, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: backend, logger: logger}
}

// Generate creates an image, or edits req.BaseImage when one is supplied.
func (s *Service) Generate(ctx context.Context, req models.ImageRequest) (*models.GenerationResult, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	img, err := s.backend.GenerateImage(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("image generated",
		zap.String("aspect_ratio", req.AspectRatio),
		zap.Bool("edit", req.BaseImage != nil),
		zap.Int("bytes", len(img.Data)))
	return &models.GenerationResult{
		URL:       models.DataURL(img.MimeType, img.Data),
		MimeType:  img.MimeType,
		Prompt:    req.Prompt,
		Timestamp: time.Now().UTC(),
		Data:      img.Data,
	}, nil
}
