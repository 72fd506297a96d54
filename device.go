package audiocore

import (
	"fmt"
	"io"

	"github.com/hajimehoshi/oto/v2"
)

// Device is the audio processing context seam. Exactly one live Device
// exists per process; the Engine is its sole owner. The production
// implementation is backed by oto, which drives the platform's audio
// output (ALSA/WASAPI/CoreAudio/AAudio). Tests inject their own.
//
// oto has no true close primitive, so Close on the production device
// suspends output and marks the handle terminal.
type Device interface {
	// NewPlayer creates a playback stream reading interleaved stereo
	// float32 little-endian frames from r.
	NewPlayer(r io.Reader) Player
	Suspend() error
	Resume() error
	Close() error
	// Err reports a device fault. The engine polls it before handing
	// out a player, so a dead device fails playback instead of feeding
	// a broken stream.
	Err() error
}

// Player is one playback stream on the device. SetVolume applies live,
// which is how the Mixer keeps channel gains authoritative while sounds
// are in flight.
type Player interface {
	Play()
	IsPlaying() bool
	SetVolume(volume float64)
	Close() error
}

// DeviceOpener opens the process audio device. The returned channel is
// closed once the device is ready to accept players; on some platforms
// that only happens after a user interaction with the page or app.
type DeviceOpener func(sampleRate int) (Device, <-chan struct{}, error)

// bytesPerFrame is stereo float32: two channels, four bytes each.
const bytesPerFrame = 8

type otoDevice struct {
	ctx    *oto.Context
	closed bool
}

// openOtoDevice is the default DeviceOpener.
func openOtoDevice(sampleRate int) (Device, <-chan struct{}, error) {
	// Bit depth 0 selects 32-bit float little-endian output.
	ctx, ready, err := oto.NewContext(sampleRate, 2, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDeviceOpen, err)
	}
	return &otoDevice{ctx: ctx}, ready, nil
}

func (d *otoDevice) NewPlayer(r io.Reader) Player {
	return d.ctx.NewPlayer(r)
}

func (d *otoDevice) Suspend() error {
	return d.ctx.Suspend()
}

func (d *otoDevice) Resume() error {
	return d.ctx.Resume()
}

func (d *otoDevice) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.ctx.Suspend()
}

func (d *otoDevice) Err() error {
	return d.ctx.Err()
}
