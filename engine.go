package audiocore

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EngineState tracks the engine lifecycle.
type EngineState int

const (
	StateUninitialized EngineState = iota // constructed, no device yet
	StateReady                            // device open, clock running
	StateSuspended                        // device suspended, clock frozen
	StateClosed                           // terminal
)

func (s EngineState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateSuspended:
		return "suspended"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Process-wide singleton guard. The audio device is a process-wide
// resource, so constructing a second Engine while one is live is an
// error, not a race to be won.
var (
	engineGuardMu sync.Mutex
	engineLive    bool
)

// EngineConfig holds configuration for engine construction.
type EngineConfig struct {
	SampleRate   int          // default 44100
	OpenDevice   DeviceOpener // optional: defaults to the oto-backed device
	ErrorHandler ErrorHandler // optional: defaults to DefaultErrorHandler
	SilentUnlock bool         // play a one-shot silent buffer on initialize
	// to unlock output on mobile platforms
}

// Engine is the sole owner of the audio device and the authoritative
// audio clock. It is constructed eagerly but opens the device lazily:
// Initialize refuses to run until a user gesture has been recorded, so
// no sound pipeline exists before a human asked for one.
type Engine struct {
	id   uuid.UUID
	name string

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc

	config      EngineConfig
	device      Device
	deviceReady <-chan struct{}
	state       EngineState
	gestureSeen bool

	// Audio clock bookkeeping. The clock starts at initialize and is
	// frozen across suspend spans so scheduled audio times stay valid.
	startedAt      time.Time
	suspendedAt    time.Time
	suspendedTotal time.Duration

	errorHandler ErrorHandler
}

// NewEngine constructs the engine singleton. It does not open the audio
// device; call NotifyUserGesture followed by Initialize for that.
// A second call while another engine is live fails with ErrEngineExists.
func NewEngine(config EngineConfig) (*Engine, error) {
	engineGuardMu.Lock()
	defer engineGuardMu.Unlock()

	if engineLive {
		return nil, ErrEngineExists
	}

	if config.SampleRate <= 0 {
		config.SampleRate = 44100
	} else if config.SampleRate < 8000 {
		return nil, fmt.Errorf("SampleRate must be at least 8000 Hz, got %d", config.SampleRate)
	} else if config.SampleRate > 192000 {
		return nil, fmt.Errorf("SampleRate cannot exceed 192000 Hz, got %d", config.SampleRate)
	}
	if config.OpenDevice == nil {
		config.OpenDevice = openOtoDevice
	}
	if config.ErrorHandler == nil {
		config.ErrorHandler = &DefaultErrorHandler{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	engineLive = true
	return &Engine{
		id:           uuid.New(),
		name:         "Audio Control Core",
		ctx:          ctx,
		cancel:       cancel,
		config:       config,
		state:        StateUninitialized,
		errorHandler: config.ErrorHandler,
	}, nil
}

// NotifyUserGesture records that a qualifying user interaction happened.
// Initialize is a no-op precondition failure until this has been called
// at least once for the engine's lifetime.
func (e *Engine) NotifyUserGesture() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gestureSeen = true
}

// Initialize opens the audio device. It is idempotent: a second call
// while ready is a no-op. It fails with ErrNoUserGesture before a user
// gesture has been recorded, with ErrEngineClosed after Close, and with
// an error wrapping ErrDeviceOpen when the host platform lacks audio
// support.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateClosed:
		return ErrEngineClosed
	case StateReady, StateSuspended:
		return nil
	}
	if !e.gestureSeen {
		return ErrNoUserGesture
	}

	device, ready, err := e.config.OpenDevice(e.config.SampleRate)
	if err != nil {
		return fmt.Errorf("engine initialization failed: %w", err)
	}

	if ready != nil {
		select {
		case <-ready:
		case <-ctx.Done():
			device.Close()
			return fmt.Errorf("engine initialization cancelled: %w", ctx.Err())
		case <-e.ctx.Done():
			device.Close()
			return ErrEngineClosed
		}
	}

	e.device = device
	e.deviceReady = ready
	e.state = StateReady
	e.startedAt = time.Now()
	e.suspendedTotal = 0

	if e.config.SilentUnlock {
		e.playUnlockSampleLocked()
	}
	return nil
}

// Suspend pauses the audio device and freezes the audio clock.
func (e *Engine) Suspend() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateClosed:
		return ErrEngineClosed
	case StateSuspended:
		return nil
	case StateUninitialized:
		return ErrNotReady
	}

	if err := e.device.Suspend(); err != nil {
		return fmt.Errorf("engine suspend failed: %w", err)
	}
	e.suspendedAt = time.Now()
	e.state = StateSuspended
	return nil
}

// Resume restarts a suspended device and unfreezes the audio clock.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateClosed:
		return ErrEngineClosed
	case StateReady:
		return nil
	case StateUninitialized:
		return ErrNotSuspended
	}

	if err := e.device.Resume(); err != nil {
		return fmt.Errorf("engine resume failed: %w", err)
	}
	e.suspendedTotal += time.Since(e.suspendedAt)
	e.state = StateReady
	return nil
}

// Close tears the engine down. Close is terminal: no further Initialize
// is permitted on this instance. It releases the singleton guard so a
// fresh engine may be constructed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateClosed {
		return nil
	}

	var err error
	if e.device != nil {
		err = e.device.Close()
	}
	e.cancel()
	e.state = StateClosed
	e.device = nil

	engineGuardMu.Lock()
	engineLive = false
	engineGuardMu.Unlock()

	if err != nil {
		return fmt.Errorf("engine close: %w", err)
	}
	return nil
}

// IsReady reports whether the engine can accept playback. The Bus checks
// this before every playback attempt.
func (e *Engine) IsReady() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == StateReady
}

// State returns the current lifecycle state.
func (e *Engine) State() EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// GetID returns the engine's UUID.
func (e *Engine) GetID() uuid.UUID {
	return e.id
}

// GetName returns the engine name.
func (e *Engine) GetName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.name
}

// SampleRate returns the configured output rate in Hz.
func (e *Engine) SampleRate() int {
	return e.config.SampleRate
}

// Now returns the authoritative audio clock in seconds since Initialize.
// The clock excludes time spent suspended, so events scheduled against it
// stay aligned with what the device actually rendered. Before initialize
// and after close it reads zero.
func (e *Engine) Now() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nowLocked()
}

func (e *Engine) nowLocked() float64 {
	switch e.state {
	case StateReady:
		return (time.Since(e.startedAt) - e.suspendedTotal).Seconds()
	case StateSuspended:
		return (e.suspendedAt.Sub(e.startedAt) - e.suspendedTotal).Seconds()
	}
	return 0
}

// attachPlayer creates a device player for an already gain-staged frame
// stream. It is unexported on purpose: only the Mixer calls it, so every
// sound reaches the device through a mixer channel, never directly.
func (e *Engine) attachPlayer(r io.Reader) (Player, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state != StateReady {
		return nil, ErrNotReady
	}
	if err := e.device.Err(); err != nil {
		return nil, fmt.Errorf("audio device failed: %w", err)
	}
	return e.device.NewPlayer(r), nil
}

// playUnlockSampleLocked issues a one-time silent playback directly on
// the device. Some mobile platforms refuse to emit any audio until a
// sample has been played from a gesture context; this is the single
// documented exception to "only the Bus plays".
func (e *Engine) playUnlockSampleLocked() {
	frames := e.config.SampleRate / 100 // 10ms of silence
	silent := make([]byte, frames*bytesPerFrame)
	p := e.device.NewPlayer(&memReader{data: silent})
	p.Play()
	go func() {
		timer := time.NewTimer(50 * time.Millisecond)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-e.ctx.Done():
		}
		if err := p.Close(); err != nil {
			e.errorHandler.HandleError(fmt.Errorf("unlock sample close: %w", err))
		}
	}()
}

// memReader streams a fixed byte slice, then EOF.
type memReader struct {
	data []byte
	pos  int
}

func (r *memReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
