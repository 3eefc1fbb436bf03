package models

import "errors"

var (
	ErrEmptyPrompt        = errors.New("prompt is required")
	ErrInvalidAspectRatio = errors.New("unsupported aspect ratio")
	ErrInvalidResolution  = errors.New("unsupported resolution")
	ErrInvalidVoice       = errors.New("unsupported voice")
	ErrInvalidImage       = errors.New("reference image must be a non-empty image/* payload")
	ErrSessionNotFound    = errors.New("session not found")
	ErrJobNotFound        = errors.New("job not found")
	ErrJobNotFinished     = errors.New("job has not finished")
	ErrDispatcherBusy     = errors.New("too many video jobs in flight, try again later")
	ErrJobCancelled       = errors.New("video job cancelled")

	ErrMissingCredential = errors.New("API Key not found")
	ErrKeySelection      = errors.New("API Key selection failed. Please try again.")
	ErrKeyRejected       = errors.New("API Key error. Please try selecting your key again.")

	ErrNoResponse    = errors.New("no response generated")
	ErrNoImageData   = errors.New("No image data found in response")
	ErrNoAudioData   = errors.New("No audio data returned")
	ErrJobFailed     = errors.New("video generation job failed")
	ErrNoVideoURI    = errors.New("Video generation failed or no URI returned.")
	ErrVideoDownload = errors.New("Failed to download video bytes")
)
