package audiocore

import (
	"fmt"
	"sync"
	"time"

	"github.com/JoaoLima0710/Aprenda-viol-o-com-qualidade-sub000/samples"
)

// SampleResolver resolves named samples for PlaySample. Satisfied by
// *samples.Library; the bus never loads assets itself.
type SampleResolver interface {
	Resolve(name string) (*samples.Buffer, error)
}

// PlaybackRequest describes one sound. Which fields matter depends on
// the entry point: PlayBuffer reads Buffer, PlayOscillator reads
// Frequency/Waveform/Duration, PlaySample reads Sample. Channel is
// always required. Volume is clamped to [0,1]; zero selects the
// channel's default. When is an offset in seconds on the audio clock;
// zero means now.
type PlaybackRequest struct {
	Buffer    *samples.Buffer
	Frequency float64
	Waveform  Waveform
	Sample    string
	Channel   string
	Volume    float64
	When      float64
	Duration  float64
}

// Bus is the single authority for constructing playback chains. Every
// sound the application emits passes through here; no other component
// creates sound-producing nodes or touches their start/stop primitives.
//
// Failures are non-throwing: each Play method returns false after
// reporting the cause to the error handler, so callers always have a
// cheap local failure path.
type Bus struct {
	engine   *Engine
	mixer    *Mixer
	resolver SampleResolver

	mu            sync.RWMutex
	synthFallback bool

	errorHandler ErrorHandler
}

// NewBus creates the bus. resolver may be nil when the application
// never calls PlaySample.
func NewBus(engine *Engine, mixer *Mixer, resolver SampleResolver, handler ErrorHandler) *Bus {
	if handler == nil {
		handler = &DefaultErrorHandler{}
	}
	return &Bus{
		engine:       engine,
		mixer:        mixer,
		resolver:     resolver,
		errorHandler: handler,
	}
}

// PlayBuffer schedules a decoded sample buffer on a channel. It returns
// true on successful scheduling, false if the engine is not ready, the
// channel is unknown, or the buffer is invalid.
func (b *Bus) PlayBuffer(req PlaybackRequest) bool {
	ch, ok := b.validate(req, "buffer")
	if !ok {
		return false
	}
	if req.Buffer == nil || len(req.Buffer.Data) == 0 {
		b.report(fmt.Errorf("play buffer on %q: %w", req.Channel, ErrInvalidBuffer))
		return false
	}

	buf := req.Buffer
	if rate := b.engine.SampleRate(); buf.SampleRate != rate {
		buf = buf.Resampled(rate)
	}

	when := startOffset(req.When)
	r := withPreroll(newBufferSource(buf), offsetFrames(when, b.engine.SampleRate()))
	lifetime := secondsToDuration(when + buf.Seconds())

	if err := ch.play(r, b.perCallGain(req, ch), lifetime); err != nil {
		b.report(fmt.Errorf("play buffer on %q: %w", req.Channel, err))
		return false
	}
	return true
}

// PlayOscillator schedules a generated tone. The generator is stopped
// at when+duration by construction: the source drains after exactly
// that many frames.
func (b *Bus) PlayOscillator(req PlaybackRequest) bool {
	ch, ok := b.validate(req, "oscillator")
	if !ok {
		return false
	}
	if req.Frequency <= 0 || req.Duration <= 0 {
		b.report(fmt.Errorf("play oscillator on %q (freq=%.2f dur=%.2f): %w",
			req.Channel, req.Frequency, req.Duration, ErrInvalidRequest))
		return false
	}

	rate := b.engine.SampleRate()
	when := startOffset(req.When)
	src := newOscSource(rate, req.Frequency, req.Waveform, req.Duration)
	r := withPreroll(src, offsetFrames(when, rate))
	lifetime := secondsToDuration(when + req.Duration)

	if err := ch.play(r, b.perCallGain(req, ch), lifetime); err != nil {
		b.report(fmt.Errorf("play oscillator on %q: %w", req.Channel, err))
		return false
	}
	return true
}

// PlaySample resolves a named sample through the library and plays it.
// When resolution fails and synth fallback mode is engaged, a
// synthesized stand-in plays instead so practice is not blocked by a
// missing asset.
func (b *Bus) PlaySample(req PlaybackRequest) bool {
	if req.Sample == "" {
		b.report(fmt.Errorf("play sample: %w: empty name", ErrInvalidRequest))
		return false
	}
	if b.resolver == nil {
		b.report(fmt.Errorf("play sample %q: no resolver configured", req.Sample))
		return false
	}

	buf, err := b.resolver.Resolve(req.Sample)
	if err != nil {
		if !b.SynthFallbackEnabled() {
			b.report(fmt.Errorf("play sample %q: %w", req.Sample, err))
			return false
		}
		buf = samples.Synthesize(req.Sample, b.engine.SampleRate())
		if buf == nil {
			b.report(fmt.Errorf("play sample %q: synthesis fallback failed: %w", req.Sample, err))
			return false
		}
	}

	req.Buffer = buf
	return b.PlayBuffer(req)
}

// EnableSynthFallback switches PlaySample between asset-backed and
// synthesis-backed playback. The Resilience service flips this when
// sample loading fails.
func (b *Bus) EnableSynthFallback(enabled bool) {
	b.mu.Lock()
	b.synthFallback = enabled
	b.mu.Unlock()
}

// SynthFallbackEnabled reports whether synthesis fallback is engaged.
func (b *Bus) SynthFallbackEnabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.synthFallback
}

// validate covers the checks shared by every entry point: engine
// readiness and channel existence.
func (b *Bus) validate(req PlaybackRequest, kind string) (*Channel, bool) {
	if !b.engine.IsReady() {
		b.report(fmt.Errorf("play %s on %q: %w", kind, req.Channel, ErrNotReady))
		return nil, false
	}
	ch := b.mixer.Channel(req.Channel)
	if ch == nil {
		b.report(fmt.Errorf("play %s: %w: %q", kind, ErrUnknownChannel, req.Channel))
		return nil, false
	}
	return ch, true
}

func (b *Bus) perCallGain(req PlaybackRequest, ch *Channel) float64 {
	if req.Volume <= 0 {
		return ch.DefaultVolume()
	}
	return clamp01(req.Volume)
}

func (b *Bus) report(err error) {
	b.errorHandler.HandleError(err)
}

func startOffset(when float64) float64 {
	if when < 0 {
		return 0
	}
	return when
}

func offsetFrames(when float64, sampleRate int) int {
	return int(when * float64(sampleRate))
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
