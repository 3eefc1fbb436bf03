// Package speech implements text-to-speech mode.
package speech

import (
	"context"
	"time"

	"go.uber.org/zap"

	"omnigen/internal/models"
	"omnigen/internal/upstream"
	"omnigen/internal/wav"
)

const MimeType = "audio/wav"

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

// Synthesize reads req.Text aloud and returns a playable WAV file.
func (s *Service) Synthesize(ctx context.Context, req models.SpeechRequest) (*models.GenerationResult, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	pcm, err := s.backend.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, err
	}
	buf, err := wav.DecodePCM16(pcm, wav.SpeechSampleRate, wav.SpeechChannels)
	if err != nil {
		return nil, err
	}
	return s.encode(buf, req.Text)
}

// EncodeBase64 wraps a base64 PCM payload, as returned by the speech API,
// in a WAV container.
func (s *Service) EncodeBase64(payload string, sampleRate, channels int) (*models.GenerationResult, error) {
	if sampleRate <= 0 {
		sampleRate = wav.SpeechSampleRate
	}
	if channels <= 0 {
		channels = wav.SpeechChannels
	}
	buf, err := wav.DecodePCM16Base64(payload, sampleRate, channels)
	if err != nil {
		return nil, err
	}
	return s.encode(buf, "")
}

func (s *Service) encode(buf *wav.Buffer, prompt string) (*models.GenerationResult, error) {
	data, err := wav.Encode(buf)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("speech encoded",
		zap.Int("frames", buf.Frames()),
		zap.Float64("seconds", buf.Duration()))
	return &models.GenerationResult{
		URL:       models.DataURL(MimeType, data),
		MimeType:  MimeType,
		Prompt:    prompt,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}
