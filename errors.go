package audiocore

import (
	"errors"
	"fmt"
	"log"
)

// Sentinel errors for the expected, caller-checked failure paths. The Bus
// reports these to the configured ErrorHandler and returns false instead of
// propagating them; the Resilience service classifies anything wrapped
// around them into the failure taxonomy.
var (
	ErrEngineExists   = errors.New("an audio engine already exists for this process")
	ErrEngineClosed   = errors.New("audio engine has been closed")
	ErrNoUserGesture  = errors.New("audio engine requires a user gesture before initialization")
	ErrNotReady       = errors.New("audio engine is not ready")
	ErrNotSuspended   = errors.New("audio engine is not suspended")
	ErrUnknownChannel = errors.New("mixer channel is not declared")
	ErrInvalidBuffer  = errors.New("playback buffer is empty or invalid")
	ErrInvalidRequest = errors.New("playback request is invalid")
	ErrDeviceOpen     = errors.New("audio device could not be opened")
	ErrPermission     = errors.New("audio output permission denied")
	ErrRecoveryHalted = errors.New("automatic recovery disabled after repeated failures")
)

// ErrorHandler is the error boundary for the core. Playback-level failures
// surface as boolean returns; everything unexpected funnels through here so
// no failure passes silently.
type ErrorHandler interface {
	HandleError(error)
}

// DefaultErrorHandler logs errors through the standard logger.
type DefaultErrorHandler struct{}

// HandleError implements ErrorHandler.
func (h *DefaultErrorHandler) HandleError(err error) {
	log.Printf("audiocore: %v", err)
}

// FuncErrorHandler adapts a plain function into an ErrorHandler, which keeps
// test wiring and UI callbacks cheap.
type FuncErrorHandler func(error)

// HandleError implements ErrorHandler.
func (h FuncErrorHandler) HandleError(err error) {
	if h != nil {
		h(err)
	}
}

// LoggingErrorHandler wraps another handler and additionally passes every
// error to a logger callback.
type LoggingErrorHandler struct {
	underlying ErrorHandler
	logger     func(error)
}

// NewLoggingErrorHandler creates a new logging error handler.
func NewLoggingErrorHandler(underlying ErrorHandler, logger func(error)) *LoggingErrorHandler {
	return &LoggingErrorHandler{
		underlying: underlying,
		logger:     logger,
	}
}

// HandleError implements ErrorHandler.
func (h *LoggingErrorHandler) HandleError(err error) {
	if h.logger != nil {
		h.logger(err)
	}
	if h.underlying != nil {
		h.underlying.HandleError(err)
	}
}

// PanicErrorHandler panics on any error (useful during development).
type PanicErrorHandler struct{}

// HandleError implements ErrorHandler.
func (h *PanicErrorHandler) HandleError(err error) {
	panic(fmt.Sprintf("audiocore error: %v", err))
}
