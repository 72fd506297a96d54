package samples

import (
	"errors"
	"time"
)

var (
	ErrUnknownSample     = errors.New("sample is not registered in the library")
	ErrUnsupportedFormat = errors.New("unsupported sample format")
	ErrUnsupportedLayout = errors.New("unsupported channel layout")
	ErrEmptyBuffer       = errors.New("decoded sample is empty")
)

// Buffer is a decoded sample: interleaved stereo float32 frames at a
// fixed rate. Buffers are immutable after creation; the library hands
// out shared references.
type Buffer struct {
	Data       []float32 // interleaved L/R
	SampleRate int
}

// Frames returns the number of stereo frames.
func (b *Buffer) Frames() int {
	if b == nil {
		return 0
	}
	return len(b.Data) / 2
}

// Duration returns the playback length at the buffer's rate.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Seconds returns the playback length as float seconds.
func (b *Buffer) Seconds() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Resampled returns a copy of the buffer converted to rate. The
// receiver is returned unchanged when it already matches.
func (b *Buffer) Resampled(rate int) *Buffer {
	if b == nil || b.SampleRate == rate {
		return b
	}
	return &Buffer{
		Data:       resample(b.Data, b.SampleRate, rate),
		SampleRate: rate,
	}
}

// toStereo converts an interleaved frame stream with the given channel
// count to stereo. Mono is duplicated into both channels.
func toStereo(data []float32, channels int) ([]float32, error) {
	switch channels {
	case 2:
		return data, nil
	case 1:
		out := make([]float32, len(data)*2)
		for i, s := range data {
			out[2*i] = s
			out[2*i+1] = s
		}
		return out, nil
	default:
		return nil, ErrUnsupportedLayout
	}
}

// resample converts stereo interleaved frames between rates using linear
// interpolation. Good enough for practice assets; anything mastering-
// grade ships at the engine rate to begin with.
func resample(data []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(data) < 2 {
		return data
	}
	inFrames := len(data) / 2
	outFrames := int(float64(inFrames) * float64(to) / float64(from))
	if outFrames < 1 {
		outFrames = 1
	}
	out := make([]float32, outFrames*2)
	ratio := float64(from) / float64(to)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))
		next := idx + 1
		if next >= inFrames {
			next = inFrames - 1
		}
		out[2*i] = data[2*idx]*(1-frac) + data[2*next]*frac
		out[2*i+1] = data[2*idx+1]*(1-frac) + data[2*next+1]*frac
	}
	return out
}
