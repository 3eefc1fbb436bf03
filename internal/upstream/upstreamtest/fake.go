// Package upstreamtest provides a scripted upstream.Backend for tests.
package upstreamtest

import (
	"context"
	"sync"

	"omnigen/internal/models"
	"omnigen/internal/upstream"
)

// Backend returns canned responses and records calls.
type Backend struct {
	Image    *upstream.Image
	ImageErr error

	// Submitted is returned by SubmitVideo; each CheckVideo returns the
	// next entry of Checks, repeating the last one.
	Submitted models.JobHandle
	SubmitErr error
	Checks    []models.JobHandle
	CheckErr  error

	PCM       []byte
	SpeechErr error

	mu         sync.Mutex
	ImageReqs  []models.ImageRequest
	VideoReqs  []models.VideoRequest
	VideoKeys  []string
	CheckCalls int
	SpeechReqs []models.SpeechRequest
}

var _ upstream.Backend = (*Backend)(nil)

func (b *Backend) GenerateImage(_ context.Context, req models.ImageRequest) (*upstream.Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ImageReqs = append(b.ImageReqs, req)
	if b.ImageErr != nil {
		return nil, b.ImageErr
	}
	if b.Image == nil {
		return nil, models.ErrNoImageData
	}
	return b.Image, nil
}

func (b *Backend) SubmitVideo(_ context.Context, apiKey string, req models.VideoRequest) (models.JobHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.VideoReqs = append(b.VideoReqs, req)
	b.VideoKeys = append(b.VideoKeys, apiKey)
	if b.SubmitErr != nil {
		return models.JobHandle{}, b.SubmitErr
	}
	return b.Submitted, nil
}

func (b *Backend) CheckVideo(_ context.Context, _ string, handle models.JobHandle) (models.JobHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CheckCalls++
	if b.CheckErr != nil {
		return handle, b.CheckErr
	}
	if len(b.Checks) == 0 {
		return handle, nil
	}
	i := b.CheckCalls - 1
	if i >= len(b.Checks) {
		i = len(b.Checks) - 1
	}
	return b.Checks[i], nil
}

func (b *Backend) SynthesizeSpeech(_ context.Context, req models.SpeechRequest) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.SpeechReqs = append(b.SpeechReqs, req)
	if b.SpeechErr != nil {
		return nil, b.SpeechErr
	}
	if len(b.PCM) == 0 {
		return nil, models.ErrNoAudioData
	}
	return b.PCM, nil
}

// Checked returns the number of CheckVideo calls so far.
func (b *Backend) Checked() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.CheckCalls
}
