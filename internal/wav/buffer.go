// Package wav converts raw PCM speech output into playable RIFF/WAVE containers.
package wav

import (
	"errors"
	"math"
)

const (
	HeaderSize    = 44
	BitsPerSample = 16
	bytesPerInt16 = 2

	// SpeechSampleRate and SpeechChannels describe the raw PCM returned by the TTS model.
	SpeechSampleRate = 24000
	SpeechChannels   = 1
)

var (
	ErrEmptyBuffer   = errors.New("audio buffer is empty")
	ErrInvalidBuffer = errors.New("audio buffer is malformed")
	ErrInvalidHeader = errors.New("not a 16-bit PCM wave file")
)

// Buffer is a decoded multi-channel audio buffer with samples in [-1, 1].
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// NewBuffer allocates a zeroed buffer of frames per channel.
func NewBuffer(sampleRate, channels, frames int) *Buffer {
	data := make([][]float32, channels)
	for i := range data {
		data[i] = make([]float32, frames)
	}
	return &Buffer{SampleRate: sampleRate, Channels: data}
}

// NumChannels reports the channel count.
func (b *Buffer) NumChannels() int {
	return len(b.Channels)
}

// Frames reports the number of samples per channel.
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

func (b *Buffer) validate() error {
	if b == nil || len(b.Channels) == 0 || b.Frames() == 0 {
		return ErrEmptyBuffer
	}
	if b.SampleRate <= 0 {
		return ErrInvalidBuffer
	}
	frames := b.Frames()
	for _, ch := range b.Channels {
		if len(ch) != frames {
			return ErrInvalidBuffer
		}
	}
	return checkHeaderFields(b.SampleRate, len(b.Channels), frames)
}

// checkHeaderFields rejects shapes whose header fields do not fit the 16 and
// 32 bit slots of the fmt and data chunks.
func checkHeaderFields(sampleRate, channels, frames int) error {
	blockAlign := uint64(channels) * bytesPerInt16
	if blockAlign > math.MaxUint16 || uint64(sampleRate) > math.MaxUint32 {
		return ErrInvalidBuffer
	}
	if uint64(sampleRate)*blockAlign > math.MaxUint32 {
		return ErrInvalidBuffer
	}
	if uint64(frames)*blockAlign+HeaderSize-8 > math.MaxUint32 {
		return ErrInvalidBuffer
	}
	return nil
}
