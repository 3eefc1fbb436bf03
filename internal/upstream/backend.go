// Package upstream talks to the hosted generation API. Everything above it
// depends on the Backend interface so the studio can be tested offline.
package upstream

import (
	"context"

	"omnigen/internal/models"
)

// Image is inline image bytes returned by the image model.
type Image struct {
	Data     []byte
	MimeType string
}

// Backend is the subset of the hosted API the studio uses.
type Backend interface {
	GenerateImage(ctx context.Context, req models.ImageRequest) (*Image, error)
	// SubmitVideo starts a long-running video operation billed to apiKey.
	SubmitVideo(ctx context.Context, apiKey string, req models.VideoRequest) (models.JobHandle, error)
	// CheckVideo issues exactly one status query for handle.
	CheckVideo(ctx context.Context, apiKey string, handle models.JobHandle) (models.JobHandle, error)
	// SynthesizeSpeech returns raw mono 16-bit PCM at 24kHz.
	SynthesizeSpeech(ctx context.Context, req models.SpeechRequest) ([]byte, error)
}
