package audiocore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/JoaoLima0710/Aprenda-viol-o-com-qualidade-sub000/samples"
)

// FailureType is the error taxonomy surfaced to the UI.
type FailureType string

const (
	FailureInitialization   FailureType = "initialization"
	FailureSampleLoad       FailureType = "sample_load"
	FailurePlayback         FailureType = "playback"
	FailureContextSuspended FailureType = "context_suspended"
	FailureNetwork          FailureType = "network"
	FailurePermission       FailureType = "permission"
	FailureUnknown          FailureType = "unknown"
)

// FailureContext labels the operation category a failure came from, and
// is the key retry counters are tracked under.
type FailureContext string

const (
	ContextInitialization FailureContext = "initialization"
	ContextSampleLoad     FailureContext = "sample_load"
	ContextPlayback       FailureContext = "playback"
)

// Failure is one classified failure record kept in the bounded history
// for diagnostics and UI display.
type Failure struct {
	Type        FailureType
	Message     string
	Recoverable bool
	RetryCount  int
	Timestamp   time.Time
}

// UserNotifier receives the user-visible side of failure handling. Every
// detected failure produces either a state change or a message with an
// actionable recovery step, never silence.
type UserNotifier interface {
	// NotifyFailure surfaces a failure; canRetry indicates whether a
	// "Try Again" affordance should be offered.
	NotifyFailure(f Failure, canRetry bool)
	// NotifyRecovery reports that the given operation category works
	// again.
	NotifyRecovery(fctx FailureContext)
	// NotifyFallback reports a degraded-mode substitution.
	NotifyFallback(message string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) NotifyFailure(Failure, bool)   {}
func (NopNotifier) NotifyRecovery(FailureContext) {}
func (NopNotifier) NotifyFallback(string)         {}

// ResilienceConfig holds configuration for the resilience service.
type ResilienceConfig struct {
	MaxRetries       int             // automatic attempts per context; default 3
	Backoff          []time.Duration // retry delays, capped at the last entry; default 1s/2s/4s
	HistoryLimit     int             // bounded failure history; default 32
	FailureThreshold int             // total failures before auto recovery is disabled; default 10
	Notifier         UserNotifier    // optional; defaults to NopNotifier
	ErrorHandler     ErrorHandler    // optional; defaults to DefaultErrorHandler
	// RetryOp overrides the recovery operation, used by tests. The
	// default re-initializes (or resumes) the engine; playback is never
	// auto-retried to avoid audible repetition.
	RetryOp func(FailureContext) error
}

// Resilience detects, classifies and recovers from audio failures. It
// wraps calls into the Engine and Bus rather than replacing them: the
// Bus keeps its cheap boolean failure path, while anything unexpected is
// escalated here and translated into the taxonomy.
type Resilience struct {
	engine *Engine
	bus    *Bus
	config ResilienceConfig

	mu            sync.Mutex
	history       []Failure
	retryCounts   map[FailureContext]int
	totalFailures int
	disabled      bool
}

// NewResilience creates the service around a live engine and bus.
func NewResilience(engine *Engine, bus *Bus, config ResilienceConfig) *Resilience {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if len(config.Backoff) == 0 {
		config.Backoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 32
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 10
	}
	if config.Notifier == nil {
		config.Notifier = NopNotifier{}
	}
	if config.ErrorHandler == nil {
		config.ErrorHandler = &DefaultErrorHandler{}
	}

	r := &Resilience{
		engine:      engine,
		bus:         bus,
		config:      config,
		retryCounts: make(map[FailureContext]int),
	}
	if r.config.RetryOp == nil {
		r.config.RetryOp = r.defaultRetryOp
	}
	return r
}

// Classify maps an error onto the failure taxonomy and reports whether
// the category is recoverable.
func (r *Resilience) Classify(err error) (FailureType, bool) {
	switch {
	case errors.Is(err, ErrDeviceOpen), errors.Is(err, ErrEngineClosed):
		// Unsupported platform or terminal engine: retrying cannot help.
		return FailureInitialization, false
	case errors.Is(err, ErrPermission):
		return FailurePermission, false
	case errors.Is(err, ErrNoUserGesture), errors.Is(err, ErrEngineExists):
		return FailureInitialization, true
	case errors.Is(err, samples.ErrUnknownSample),
		errors.Is(err, samples.ErrUnsupportedFormat),
		errors.Is(err, samples.ErrUnsupportedLayout),
		errors.Is(err, samples.ErrEmptyBuffer):
		return FailureSampleLoad, true
	case errors.Is(err, ErrNotReady):
		if r.engine != nil && r.engine.State() == StateSuspended {
			return FailureContextSuspended, true
		}
		return FailurePlayback, true
	case errors.Is(err, ErrUnknownChannel),
		errors.Is(err, ErrInvalidBuffer),
		errors.Is(err, ErrInvalidRequest):
		return FailurePlayback, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureNetwork, true
	}
	return FailureUnknown, true
}

// HandleFailure classifies err, records it, surfaces it to the user,
// and starts an automatic recovery attempt when autoRetry is set, the
// category is recoverable, and the retry ceiling has not been hit.
// It returns true when a recovery path (retry or fallback) was engaged.
func (r *Resilience) HandleFailure(err error, fctx FailureContext, autoRetry bool) bool {
	if err == nil {
		return false
	}

	ftype, recoverable := r.Classify(err)

	r.mu.Lock()
	failure := Failure{
		Type:        ftype,
		Message:     err.Error(),
		Recoverable: recoverable,
		RetryCount:  r.retryCounts[fctx],
		Timestamp:   time.Now(),
	}
	r.appendHistoryLocked(failure)
	r.totalFailures++
	if !r.disabled && r.totalFailures >= r.config.FailureThreshold {
		r.disabled = true
		r.config.ErrorHandler.HandleError(
			fmt.Errorf("%w (after %d failures)", ErrRecoveryHalted, r.totalFailures))
	}
	disabled := r.disabled
	r.mu.Unlock()

	if disabled {
		r.config.Notifier.NotifyFailure(failure, false)
		return false
	}

	r.config.Notifier.NotifyFailure(failure, recoverable)

	if ftype == FailureSampleLoad {
		// Degraded mode: keep practice going on synthesized playback.
		r.bus.EnableSynthFallback(true)
		r.config.Notifier.NotifyFallback(
			"sample unavailable, switching to synthesized playback")
		return true
	}

	if !autoRetry || !recoverable {
		return false
	}
	if ftype != FailureInitialization && ftype != FailureContextSuspended {
		// Replaying failed audio automatically would be audible; only
		// engine-level recovery is retried without a human.
		return false
	}
	return r.attemptRetry(fctx)
}

// attemptRetry schedules one backoff-delayed retry for the context.
// Returns false once the per-context ceiling is reached.
func (r *Resilience) attemptRetry(fctx FailureContext) bool {
	r.mu.Lock()
	attempt := r.retryCounts[fctx]
	if attempt >= r.config.MaxRetries {
		r.mu.Unlock()
		r.config.ErrorHandler.HandleError(
			fmt.Errorf("%w: %s retry ceiling reached", ErrRecoveryHalted, fctx))
		return false
	}
	r.retryCounts[fctx] = attempt + 1
	delay := r.config.Backoff[min(attempt, len(r.config.Backoff)-1)]
	r.mu.Unlock()

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-r.engine.ctx.Done():
			return
		}
		if err := r.config.RetryOp(fctx); err != nil {
			r.HandleFailure(err, fctx, true)
			return
		}
		r.recovered(fctx)
	}()
	return true
}

// ManualRetry runs the recovery operation immediately, bypassing
// backoff. It is the "Try Again" action and works even after automatic
// recovery has been disabled; success re-arms automatic recovery.
func (r *Resilience) ManualRetry(fctx FailureContext) bool {
	if err := r.config.RetryOp(fctx); err != nil {
		r.HandleFailure(err, fctx, false)
		return false
	}

	r.mu.Lock()
	r.disabled = false
	r.totalFailures = 0
	r.mu.Unlock()

	r.recovered(fctx)
	return true
}

// FailureHistory returns a copy of the bounded failure history, newest
// last.
func (r *Resilience) FailureHistory() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Failure, len(r.history))
	copy(out, r.history)
	return out
}

// ClearHistory drops accumulated failure records.
func (r *Resilience) ClearHistory() {
	r.mu.Lock()
	r.history = nil
	r.mu.Unlock()
}

// RetryCount returns the automatic attempts consumed for a context.
func (r *Resilience) RetryCount(fctx FailureContext) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryCounts[fctx]
}

// RecoveryDisabled reports whether the failure threshold tripped.
func (r *Resilience) RecoveryDisabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabled
}

func (r *Resilience) recovered(fctx FailureContext) {
	r.mu.Lock()
	delete(r.retryCounts, fctx)
	r.history = nil // history clears on successful recovery
	r.mu.Unlock()
	r.config.Notifier.NotifyRecovery(fctx)
}

func (r *Resilience) appendHistoryLocked(f Failure) {
	r.history = append(r.history, f)
	if len(r.history) > r.config.HistoryLimit {
		r.history = r.history[len(r.history)-r.config.HistoryLimit:]
	}
}

// defaultRetryOp re-initializes or resumes the engine. Playback is
// deliberately absent here.
func (r *Resilience) defaultRetryOp(fctx FailureContext) error {
	switch fctx {
	case ContextInitialization:
		return r.engine.Initialize(context.Background())
	default:
		if r.engine.State() == StateSuspended {
			return r.engine.Resume()
		}
		return r.engine.Initialize(context.Background())
	}
}
