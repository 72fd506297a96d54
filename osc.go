package audiocore

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/JoaoLima0710/Aprenda-viol-o-com-qualidade-sub000/samples"
)

// Waveform selects the tone generator shape.
type Waveform string

const (
	WaveSine     Waveform = "sine"
	WaveSquare   Waveform = "square"
	WaveTriangle Waveform = "triangle"
	WaveSawtooth Waveform = "sawtooth"
)

// oscAmplitude keeps generated tones below sample peaks so stacked
// playback does not clip.
const oscAmplitude = 0.8

// oscSource streams a finite tone as stereo float32 frames. A short
// attack/release ramp keeps the edges click-free.
type oscSource struct {
	sampleRate int
	freq       float64
	wave       Waveform
	frames     int
	ramp       int
	pos        int
}

func newOscSource(sampleRate int, freq float64, wave Waveform, duration float64) *oscSource {
	if wave == "" {
		wave = WaveSine
	}
	frames := int(duration * float64(sampleRate))
	ramp := sampleRate * 5 / 1000 // 5ms
	if ramp*2 > frames {
		ramp = frames / 2
	}
	return &oscSource{
		sampleRate: sampleRate,
		freq:       freq,
		wave:       wave,
		frames:     frames,
		ramp:       ramp,
	}
}

func (o *oscSource) Read(p []byte) (int, error) {
	if o.pos >= o.frames {
		return 0, io.EOF
	}
	n := len(p) / bytesPerFrame
	if remaining := o.frames - o.pos; n > remaining {
		n = remaining
	}
	if n == 0 {
		return 0, nil
	}
	for i := 0; i < n; i++ {
		frame := o.pos + i
		t := float64(frame) / float64(o.sampleRate)
		s := o.sample(t) * o.envelope(frame) * oscAmplitude
		putStereoFrame(p, i, float32(s))
	}
	o.pos += n
	return n * bytesPerFrame, nil
}

func (o *oscSource) sample(t float64) float64 {
	phase := math.Mod(o.freq*t, 1.0)
	switch o.wave {
	case WaveSquare:
		if phase < 0.5 {
			return 1
		}
		return -1
	case WaveTriangle:
		return 1 - 4*math.Abs(phase-0.5)
	case WaveSawtooth:
		return 2*phase - 1
	default:
		return math.Sin(2 * math.Pi * o.freq * t)
	}
}

func (o *oscSource) envelope(frame int) float64 {
	if o.ramp == 0 {
		return 1
	}
	if frame < o.ramp {
		return float64(frame) / float64(o.ramp)
	}
	if tail := o.frames - frame; tail < o.ramp {
		return float64(tail) / float64(o.ramp)
	}
	return 1
}

// bufferSource streams a decoded sample buffer as stereo float32 frames.
type bufferSource struct {
	buf   *samples.Buffer
	frame int
}

func newBufferSource(buf *samples.Buffer) *bufferSource {
	return &bufferSource{buf: buf}
}

func (b *bufferSource) Read(p []byte) (int, error) {
	total := b.buf.Frames()
	if b.frame >= total {
		return 0, io.EOF
	}
	n := len(p) / bytesPerFrame
	if remaining := total - b.frame; n > remaining {
		n = remaining
	}
	if n == 0 {
		return 0, nil
	}
	for i := 0; i < n; i++ {
		idx := (b.frame + i) * 2
		putStereoLR(p, i, b.buf.Data[idx], b.buf.Data[idx+1])
	}
	b.frame += n
	return n * bytesPerFrame, nil
}

// prerollReader prepends silence ahead of a source, which realizes
// "start at t+when" sample-accurately instead of trusting a timer.
type prerollReader struct {
	silence int // remaining bytes of silence
	src     io.Reader
}

func withPreroll(src io.Reader, frames int) io.Reader {
	if frames <= 0 {
		return src
	}
	return &prerollReader{silence: frames * bytesPerFrame, src: src}
}

func (r *prerollReader) Read(p []byte) (int, error) {
	if r.silence > 0 {
		n := len(p)
		if n > r.silence {
			n = r.silence
		}
		for i := 0; i < n; i++ {
			p[i] = 0
		}
		r.silence -= n
		return n, nil
	}
	return r.src.Read(p)
}

func putStereoFrame(buf []byte, frame int, v float32) {
	putStereoLR(buf, frame, v, v)
}

func putStereoLR(buf []byte, frame int, l, r float32) {
	off := frame * bytesPerFrame
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(l))
	binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(r))
}
