package wav

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestEncodeMonoSilence(t *testing.T) {
	buf := NewBuffer(24000, 1, 3)
	out, err := Encode(buf)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if len(out) != 50 {
		t.Fatalf("length = %d, want 50", len(out))
	}
	for i, b := range out[44:] {
		if b != 0 {
			t.Fatalf("data byte %d = %d, want 0", i, b)
		}
	}
	if got := binary.LittleEndian.Uint16(out[22:24]); got != 1 {
		t.Fatalf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(out[24:28]); got != 24000 {
		t.Fatalf("sample rate = %d, want 24000", got)
	}
}

func TestEncodeHeaderFields(t *testing.T) {
	buf := NewBuffer(44100, 2, 10)
	out, err := Encode(buf)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	checks := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"riff size", binary.LittleEndian.Uint32(out[4:8]), uint32(len(out) - 8)},
		{"fmt size", binary.LittleEndian.Uint32(out[16:20]), 16},
		{"format", uint32(binary.LittleEndian.Uint16(out[20:22])), 1},
		{"channels", uint32(binary.LittleEndian.Uint16(out[22:24])), 2},
		{"sample rate", binary.LittleEndian.Uint32(out[24:28]), 44100},
		{"byte rate", binary.LittleEndian.Uint32(out[28:32]), 44100 * 2 * 2},
		{"block align", uint32(binary.LittleEndian.Uint16(out[32:34])), 4},
		{"bits", uint32(binary.LittleEndian.Uint16(out[34:36])), 16},
		{"data size", binary.LittleEndian.Uint32(out[40:44]), 10 * 2 * 2},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	for _, tag := range []struct {
		off  int
		want string
	}{{0, "RIFF"}, {8, "WAVE"}, {12, "fmt "}, {36, "data"}} {
		if got := string(out[tag.off : tag.off+4]); got != tag.want {
			t.Errorf("tag at %d = %q, want %q", tag.off, got, tag.want)
		}
	}
}

func TestEncodeLengthInvariant(t *testing.T) {
	for _, tc := range []struct{ channels, frames int }{{1, 1}, {1, 1000}, {2, 7}, {6, 33}} {
		out, err := Encode(NewBuffer(8000, tc.channels, tc.frames))
		if err != nil {
			t.Fatalf("Encode(%d ch, %d frames): %v", tc.channels, tc.frames, err)
		}
		if want := 44 + tc.frames*tc.channels*2; len(out) != want {
			t.Errorf("Encode(%d ch, %d frames) length = %d, want %d", tc.channels, tc.frames, len(out), want)
		}
	}
}

func TestEncodeClampsAndRails(t *testing.T) {
	buf := &Buffer{SampleRate: 8000, Channels: [][]float32{{1, -1, 2.5, -7, 0.5, float32(math.NaN())}}}
	out, err := Encode(buf)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	want := []int16{32767, -32768, 32767, -32768, 16383, 0}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(out[44+i*2:]))
		if got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestEncodeInterleavesChannels(t *testing.T) {
	buf := &Buffer{SampleRate: 8000, Channels: [][]float32{{0.25, 0.5}, {-0.25, -0.5}}}
	out, err := Encode(buf)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	want := []int16{8191, -8192, 16383, -16384}
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(out[44+i*2:])); got != w {
			t.Errorf("interleaved sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestEncodeRejectsBadBuffers(t *testing.T) {
	cases := map[string]*Buffer{
		"nil":         nil,
		"no channels": {SampleRate: 8000},
		"no frames":   NewBuffer(8000, 1, 0),
		"bad rate":    NewBuffer(0, 1, 4),
		"ragged":      {SampleRate: 8000, Channels: [][]float32{{0, 0}, {0}}},
		"too many ch": NewBuffer(24000, 65537, 1),
		"block align": NewBuffer(24000, 32768, 1),
		"huge rate":   NewBuffer(math.MaxUint32+1, 1, 1),
		"byte rate":   NewBuffer(math.MaxInt32, 2, 1),
	}
	for name, buf := range cases {
		if _, err := Encode(buf); !errors.Is(err, ErrEmptyBuffer) && !errors.Is(err, ErrInvalidBuffer) {
			t.Errorf("%s: expected buffer error, got %v", name, err)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := NewBuffer(22050, 2, 256)
	for i := 0; i < 256; i++ {
		src.Channels[0][i] = float32(math.Sin(float64(i) / 10))
		src.Channels[1][i] = float32(math.Cos(float64(i)/7)) * 0.8
	}
	out, err := Encode(src)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	format, _, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if format.SampleRate != 22050 || format.Channels != 2 || format.BitsPerSample != 16 {
		t.Fatalf("unexpected format %+v", format)
	}
	got, err := Decode(out)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got.Frames() != src.Frames() || got.NumChannels() != src.NumChannels() {
		t.Fatalf("shape mismatch: %dx%d", got.NumChannels(), got.Frames())
	}
	const tolerance = 2.0 / 32768
	for c := range src.Channels {
		for i := range src.Channels[c] {
			if diff := math.Abs(float64(got.Channels[c][i] - src.Channels[c][i])); diff > tolerance {
				t.Fatalf("channel %d sample %d drifted by %g", c, i, diff)
			}
		}
	}
}

func TestDecodePCM16Base64(t *testing.T) {
	raw := make([]byte, 7) // three samples plus a dangling byte
	binary.LittleEndian.PutUint16(raw[0:], uint16(0x4000))
	minVal := int16(-32768)
	binary.LittleEndian.PutUint16(raw[2:], uint16(minVal))
	binary.LittleEndian.PutUint16(raw[4:], 0)
	buf, err := DecodePCM16Base64(base64.StdEncoding.EncodeToString(raw), SpeechSampleRate, SpeechChannels)
	if err != nil {
		t.Fatalf("DecodePCM16Base64 error: %v", err)
	}
	if buf.SampleRate != 24000 || buf.NumChannels() != 1 || buf.Frames() != 3 {
		t.Fatalf("unexpected buffer shape: rate=%d ch=%d frames=%d", buf.SampleRate, buf.NumChannels(), buf.Frames())
	}
	want := []float32{0.5, -1, 0}
	for i, w := range want {
		if buf.Channels[0][i] != w {
			t.Errorf("sample %d = %v, want %v", i, buf.Channels[0][i], w)
		}
	}
}

func TestDecodePCM16Errors(t *testing.T) {
	if _, err := DecodePCM16Base64("%%%", 24000, 1); err == nil {
		t.Fatalf("expected base64 error")
	}
	if _, err := DecodePCM16([]byte{1}, 24000, 1); !errors.Is(err, ErrEmptyBuffer) {
		t.Fatalf("expected ErrEmptyBuffer, got %v", err)
	}
	if _, err := DecodePCM16([]byte{1, 2}, 24000, 0); !errors.Is(err, ErrInvalidBuffer) {
		t.Fatalf("expected ErrInvalidBuffer, got %v", err)
	}
	if _, err := Decode([]byte("not a wave file")); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
}
