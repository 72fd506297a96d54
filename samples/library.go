package samples

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Library is the named sample registry consumed by the bus. Buffers are
// normalized to the library's rate on registration, so the playback path
// never resamples.
type Library struct {
	mu    sync.RWMutex
	rate  int
	store map[string]*Buffer
}

// NewLibrary creates a library targeting the engine's output rate.
func NewLibrary(sampleRate int) *Library {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &Library{
		rate:  sampleRate,
		store: make(map[string]*Buffer),
	}
}

// SampleRate returns the library's target rate in Hz.
func (l *Library) SampleRate() int { return l.rate }

// Register stores a decoded buffer under name, converting it to the
// library rate if needed. Registering the same name twice replaces the
// previous buffer.
func (l *Library) Register(name string, buf *Buffer) error {
	if name == "" {
		return fmt.Errorf("sample name is required")
	}
	if buf == nil || len(buf.Data) == 0 {
		return ErrEmptyBuffer
	}

	normalized := buf
	if buf.SampleRate != l.rate {
		normalized = &Buffer{
			Data:       resample(buf.Data, buf.SampleRate, l.rate),
			SampleRate: l.rate,
		}
	}

	l.mu.Lock()
	l.store[name] = normalized
	l.mu.Unlock()
	return nil
}

// LoadWAV decodes and registers a WAV stream.
func (l *Library) LoadWAV(name string, r io.ReadSeeker) error {
	buf, err := DecodeWAV(r)
	if err != nil {
		return fmt.Errorf("loading sample %q: %w", name, err)
	}
	return l.Register(name, buf)
}

// LoadMP3 decodes and registers an MP3 stream.
func (l *Library) LoadMP3(name string, r io.Reader) error {
	buf, err := DecodeMP3(r)
	if err != nil {
		return fmt.Errorf("loading sample %q: %w", name, err)
	}
	return l.Register(name, buf)
}

// LoadOgg decodes and registers an Ogg Vorbis stream.
func (l *Library) LoadOgg(name string, r io.Reader) error {
	buf, err := DecodeOgg(r)
	if err != nil {
		return fmt.Errorf("loading sample %q: %w", name, err)
	}
	return l.Register(name, buf)
}

// LoadFile decodes and registers a sample file, dispatching on the
// extension.
func (l *Library) LoadFile(name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("loading sample %q: %w", name, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return l.LoadWAV(name, f)
	case ".mp3":
		return l.LoadMP3(name, f)
	case ".ogg", ".oga":
		return l.LoadOgg(name, f)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Resolve returns the buffer registered under name, or an error wrapping
// ErrUnknownSample.
func (l *Library) Resolve(name string) (*Buffer, error) {
	l.mu.RLock()
	buf, ok := l.store[name]
	l.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSample, name)
	}
	return buf, nil
}

// Names returns the registered sample names.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.store))
	for name := range l.store {
		names = append(names, name)
	}
	return names
}

// Forget removes a registered sample.
func (l *Library) Forget(name string) {
	l.mu.Lock()
	delete(l.store, name)
	l.mu.Unlock()
}
