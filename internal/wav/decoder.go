package wav

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// DecodePCM16Base64 decodes the base64 payload returned by the speech model.
func DecodePCM16Base64(payload string, sampleRate, channels int) (*Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode pcm payload: %w", err)
	}
	return DecodePCM16(raw, sampleRate, channels)
}

// DecodePCM16 turns interleaved signed 16-bit little-endian samples into a
// Buffer, dividing each sample by 32768. A dangling odd byte is dropped.
func DecodePCM16(raw []byte, sampleRate, channels int) (*Buffer, error) {
	if channels <= 0 || sampleRate <= 0 {
		return nil, ErrInvalidBuffer
	}
	samples := len(raw) / bytesPerInt16
	frames := samples / channels
	if frames == 0 {
		return nil, ErrEmptyBuffer
	}
	if err := checkHeaderFields(sampleRate, channels, frames); err != nil {
		return nil, err
	}
	buf := NewBuffer(sampleRate, channels, frames)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			idx := (i*channels + c) * bytesPerInt16
			s := int16(binary.LittleEndian.Uint16(raw[idx:]))
			buf.Channels[c][i] = float32(s) / 32768
		}
	}
	return buf, nil
}

// Format describes the fmt chunk of a parsed wave file.
type Format struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	ByteRate      int
	BlockAlign    int
	BitsPerSample int
}

// Decode parses a 16-bit PCM wave file, skipping unknown chunks.
func Decode(data []byte) (*Buffer, error) {
	format, pcm, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return DecodePCM16(pcm, format.SampleRate, format.Channels)
}

// Parse returns the fmt chunk and the raw data chunk of a wave file.
func Parse(data []byte) (*Format, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, nil, ErrInvalidHeader
	}
	var (
		format *Format
		pcm    []byte
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4:]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return nil, nil, ErrInvalidHeader
		}
		switch id {
		case "fmt ":
			if size < fmtChunkSize {
				return nil, nil, ErrInvalidHeader
			}
			format = &Format{
				AudioFormat:   binary.LittleEndian.Uint16(data[body:]),
				Channels:      int(binary.LittleEndian.Uint16(data[body+2:])),
				SampleRate:    int(binary.LittleEndian.Uint32(data[body+4:])),
				ByteRate:      int(binary.LittleEndian.Uint32(data[body+8:])),
				BlockAlign:    int(binary.LittleEndian.Uint16(data[body+12:])),
				BitsPerSample: int(binary.LittleEndian.Uint16(data[body+14:])),
			}
		case "data":
			pcm = data[body : body+size]
		}
		off = body + size + size%2
	}
	if format == nil || pcm == nil {
		return nil, nil, ErrInvalidHeader
	}
	if format.AudioFormat != formatPCM || format.BitsPerSample != BitsPerSample {
		return nil, nil, ErrInvalidHeader
	}
	return format, pcm, nil
}
