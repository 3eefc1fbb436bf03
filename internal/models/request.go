package models

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// InlineImage is a reference image supplied to steer or edit a generation.
type InlineImage struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
}

// Validate checks the payload is a non-empty image.
func (i *InlineImage) Validate() error {
	if i == nil {
		return nil
	}
	if len(i.Data) == 0 || !strings.HasPrefix(strings.ToLower(i.MimeType), "image/") {
		return ErrInvalidImage
	}
	return nil
}

// DecodeInlineImage accepts the base64 body produced by a browser file reader,
// with or without the leading "data:<mime>;base64," prefix.
func DecodeInlineImage(encoded, mimeType string) (*InlineImage, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, nil
	}
	if strings.HasPrefix(encoded, "data:") {
		header, body, ok := strings.Cut(encoded, ",")
		if !ok {
			return nil, ErrInvalidImage
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		}
		encoded = body
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", ErrInvalidImage)
	}
	img := &InlineImage{Data: data, MimeType: mimeType}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

var imageAspectRatios = []string{"1:1", "3:4", "4:3", "16:9", "9:16"}

var videoAspectRatios = []string{"16:9", "9:16"}

var videoResolutions = []string{"720p", "1080p"}

// Voices lists the prebuilt speech personalities.
var Voices = []string{"Kore", "Puck", "Charon", "Fenrir", "Zephyr"}

const (
	DefaultImageAspectRatio = "1:1"
	DefaultVideoAspectRatio = "16:9"
	DefaultVideoResolution  = "720p"
	DefaultVoice            = "Kore"
)

// ImageRequest generates a new image, or edits BaseImage when present.
type ImageRequest struct {
	Prompt      string       `json:"prompt"`
	AspectRatio string       `json:"aspect_ratio"`
	BaseImage   *InlineImage `json:"base_image,omitempty"`
}

func (r *ImageRequest) Normalize() error {
	r.Prompt = strings.TrimSpace(r.Prompt)
	if r.Prompt == "" {
		return ErrEmptyPrompt
	}
	if r.AspectRatio == "" {
		r.AspectRatio = DefaultImageAspectRatio
	}
	if !contains(imageAspectRatios, r.AspectRatio) {
		return fmt.Errorf("%w: %s", ErrInvalidAspectRatio, r.AspectRatio)
	}
	return r.BaseImage.Validate()
}

// VideoRequest generates a short clip, optionally from a start frame.
type VideoRequest struct {
	Prompt      string       `json:"prompt"`
	Resolution  string       `json:"resolution"`
	AspectRatio string       `json:"aspect_ratio"`
	Image       *InlineImage `json:"image,omitempty"`
}

// Normalize fills defaults. A start image alone is enough to generate.
func (r *VideoRequest) Normalize() error {
	r.Prompt = strings.TrimSpace(r.Prompt)
	if r.Prompt == "" && r.Image == nil {
		return ErrEmptyPrompt
	}
	if r.Resolution == "" {
		r.Resolution = DefaultVideoResolution
	}
	if !contains(videoResolutions, r.Resolution) {
		return fmt.Errorf("%w: %s", ErrInvalidResolution, r.Resolution)
	}
	if r.AspectRatio == "" {
		r.AspectRatio = DefaultVideoAspectRatio
	}
	if !contains(videoAspectRatios, r.AspectRatio) {
		return fmt.Errorf("%w: %s", ErrInvalidAspectRatio, r.AspectRatio)
	}
	return r.Image.Validate()
}

// SpeechRequest synthesizes Text with a prebuilt voice.
type SpeechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

func (r *SpeechRequest) Normalize() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyPrompt
	}
	if r.Voice == "" {
		r.Voice = DefaultVoice
	}
	if !contains(Voices, r.Voice) {
		return fmt.Errorf("%w: %s", ErrInvalidVoice, r.Voice)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
