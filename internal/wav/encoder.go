package wav

import "encoding/binary"

const (
	formatPCM    = 1
	fmtChunkSize = 16
)

// Encode writes buf as a 16-bit PCM WAVE file: a 44 byte header followed by
// frames*channels interleaved little-endian samples.
func Encode(buf *Buffer) ([]byte, error) {
	if err := buf.validate(); err != nil {
		return nil, err
	}
	channels := buf.NumChannels()
	frames := buf.Frames()
	dataLen := frames * channels * bytesPerInt16
	out := make([]byte, HeaderSize+dataLen)

	off := writeHeader(out, channels, buf.SampleRate, dataLen)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			off = putInt16(out, off, quantize(buf.Channels[c][i]))
		}
	}
	return out, nil
}

func writeHeader(b []byte, channels, sampleRate, dataLen int) int {
	off := putTag(b, 0, "RIFF")
	off = putUint32(b, off, uint32(HeaderSize+dataLen-8))
	off = putTag(b, off, "WAVE")

	off = putTag(b, off, "fmt ")
	off = putUint32(b, off, fmtChunkSize)
	off = putUint16(b, off, formatPCM)
	off = putUint16(b, off, uint16(channels))
	off = putUint32(b, off, uint32(sampleRate))
	off = putUint32(b, off, uint32(sampleRate*bytesPerInt16*channels))
	off = putUint16(b, off, uint16(channels*bytesPerInt16))
	off = putUint16(b, off, BitsPerSample)

	off = putTag(b, off, "data")
	return putUint32(b, off, uint32(dataLen))
}

// quantize clamps to [-1, 1] and scales asymmetrically so 1.0 lands on 32767
// and -1.0 on -32768.
func quantize(s float32) int16 {
	v := float64(s)
	if v != v { // NaN
		v = 0
	}
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	if v < 0 {
		return int16(v * 32768)
	}
	return int16(v * 32767)
}

func putTag(b []byte, off int, tag string) int {
	return off + copy(b[off:off+4], tag)
}

func putUint16(b []byte, off int, v uint16) int {
	binary.LittleEndian.PutUint16(b[off:], v)
	return off + 2
}

func putUint32(b []byte, off int, v uint32) int {
	binary.LittleEndian.PutUint32(b[off:], v)
	return off + 4
}

func putInt16(b []byte, off int, v int16) int {
	return putUint16(b, off, uint16(v))
}
