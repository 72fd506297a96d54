package audiocore

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Conventional channel names. The set is open, exercises may declare
// their own routes, but everything the application ships uses these.
const (
	ChannelChords    = "chords"
	ChannelScales    = "scales"
	ChannelMetronome = "metronome"
	ChannelEffects   = "effects"
)

// ChannelConfig holds per-channel creation options.
type ChannelConfig struct {
	DefaultVolume float64 // used when a playback request carries no volume; default 1.0
}

// Mixer is the named-channel routing and volume authority. Channels are
// gain stages multiplexed into the engine's device; the master mute is a
// gain distinct from per-channel gains, so channel volumes stay legible
// while globally muted.
type Mixer struct {
	engine *Engine

	mu           sync.RWMutex
	channels     map[string]*Channel
	masterVolume float64
	masterMuted  bool
}

// NewMixer creates a mixer bound to the engine.
func NewMixer(engine *Engine) *Mixer {
	return &Mixer{
		engine:       engine,
		channels:     make(map[string]*Channel),
		masterVolume: 1.0,
	}
}

// CreateChannel declares a named channel with default configuration.
// It is idempotent: a second call for the same name returns the existing
// channel unchanged.
func (m *Mixer) CreateChannel(name string) (*Channel, error) {
	return m.CreateChannelWithConfig(name, ChannelConfig{})
}

// CreateChannelWithConfig declares a named channel. The gain stage is
// wired to the engine's output exactly once per name.
func (m *Mixer) CreateChannelWithConfig(name string, config ChannelConfig) (*Channel, error) {
	if name == "" {
		return nil, fmt.Errorf("channel name is required")
	}
	if config.DefaultVolume <= 0 || config.DefaultVolume > 1 {
		config.DefaultVolume = 1.0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, exists := m.channels[name]; exists {
		return ch, nil
	}
	ch := &Channel{
		name:          name,
		mixer:         m,
		volume:        config.DefaultVolume,
		defaultVolume: config.DefaultVolume,
		active:        make(map[uint64]*playbackChain),
	}
	m.channels[name] = ch
	return ch, nil
}

// Channel returns the named channel, or nil if it was never declared.
// Callers must treat nil as "route unavailable", not as a retry target.
func (m *Mixer) Channel(name string) *Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channels[name]
}

// ChannelNames returns the declared channel names.
func (m *Mixer) ChannelNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// SetChannelVolume sets a channel's gain, clamped to [0,1].
func (m *Mixer) SetChannelVolume(name string, volume float64) error {
	ch := m.Channel(name)
	if ch == nil {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	ch.mu.Lock()
	ch.volume = clamp01(volume)
	ch.mu.Unlock()
	ch.refreshGains()
	return nil
}

// SetChannelMuted mutes or unmutes one channel.
func (m *Mixer) SetChannelMuted(name string, muted bool) error {
	ch := m.Channel(name)
	if ch == nil {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	ch.mu.Lock()
	ch.muted = muted
	ch.mu.Unlock()
	ch.refreshGains()
	return nil
}

// Mute engages the master mute. Per-channel volumes are untouched.
func (m *Mixer) Mute() {
	m.setMasterMuted(true)
}

// Unmute releases the master mute.
func (m *Mixer) Unmute() {
	m.setMasterMuted(false)
}

// ToggleMute flips the master mute and returns the new state.
func (m *Mixer) ToggleMute() bool {
	m.mu.Lock()
	m.masterMuted = !m.masterMuted
	muted := m.masterMuted
	m.mu.Unlock()
	m.refreshAllGains()
	return muted
}

// IsMuted reports the master mute state.
func (m *Mixer) IsMuted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.masterMuted
}

// SetMasterVolume sets the master gain, clamped to [0,1].
func (m *Mixer) SetMasterVolume(volume float64) {
	m.mu.Lock()
	m.masterVolume = clamp01(volume)
	m.mu.Unlock()
	m.refreshAllGains()
}

// MasterVolume returns the master gain.
func (m *Mixer) MasterVolume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.masterVolume
}

func (m *Mixer) setMasterMuted(muted bool) {
	m.mu.Lock()
	m.masterMuted = muted
	m.mu.Unlock()
	m.refreshAllGains()
}

func (m *Mixer) refreshAllGains() {
	m.mu.RLock()
	channels := make([]*Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		channels = append(channels, ch)
	}
	m.mu.RUnlock()

	for _, ch := range channels {
		ch.refreshGains()
	}
}

// masterFactor is the gain contributed by the master stage.
func (m *Mixer) masterFactor() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.masterMuted {
		return 0
	}
	return m.masterVolume
}

// Channel is one named gain stage. Volume and mute are mutated only
// through the Mixer; the Bus attaches playback chains but never touches
// gains beyond the per-call stage it owns.
type Channel struct {
	name          string
	mixer         *Mixer
	mu            sync.RWMutex
	volume        float64
	defaultVolume float64
	muted         bool
	active        map[uint64]*playbackChain
	nextChainID   uint64
}

// playbackChain is one live sound routed through this channel: the
// per-call gain stage plus the device player it feeds.
type playbackChain struct {
	id      uint64
	perCall float64
	player  Player
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Volume returns the channel gain.
func (c *Channel) Volume() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.volume
}

// Muted reports whether this channel is individually muted.
func (c *Channel) Muted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muted
}

// DefaultVolume returns the gain used for requests without one.
func (c *Channel) DefaultVolume() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultVolume
}

// ActiveChains returns the number of sounds currently routed through
// this channel, for diagnostics.
func (c *Channel) ActiveChains() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.active)
}

// play attaches a playback chain: frame stream -> per-call gain ->
// this channel's gain -> master -> device. Called only by the Bus.
// lifetime is the total stream duration including any start offset;
// the chain detaches itself shortly after that elapses.
func (c *Channel) play(r io.Reader, perCall float64, lifetime time.Duration) error {
	player, err := c.mixer.engine.attachPlayer(r)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.nextChainID++
	chain := &playbackChain{id: c.nextChainID, perCall: clamp01(perCall), player: player}
	c.active[chain.id] = chain
	c.mu.Unlock()

	player.SetVolume(c.effectiveGain(chain.perCall))
	player.Play()

	go c.reap(chain, lifetime)
	return nil
}

// reap detaches and closes a chain once its stream has drained. A short
// linger covers device buffering after the final frame.
func (c *Channel) reap(chain *playbackChain, lifetime time.Duration) {
	timer := time.NewTimer(lifetime + 250*time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-c.mixer.engine.ctx.Done():
	}

	c.mu.Lock()
	delete(c.active, chain.id)
	c.mu.Unlock()

	if err := chain.player.Close(); err != nil {
		c.mixer.engine.errorHandler.HandleError(
			fmt.Errorf("closing playback chain on %q: %w", c.name, err))
	}
}

// effectiveGain folds the per-call, channel and master stages.
func (c *Channel) effectiveGain(perCall float64) float64 {
	c.mu.RLock()
	volume, muted := c.volume, c.muted
	c.mu.RUnlock()

	if muted {
		return 0
	}
	return perCall * volume * c.mixer.masterFactor()
}

// refreshGains re-applies the folded gain to every live chain. Volume
// changes therefore land on sounds already in flight.
func (c *Channel) refreshGains() {
	c.mu.RLock()
	chains := make([]*playbackChain, 0, len(c.active))
	for _, chain := range c.active {
		chains = append(chains, chain)
	}
	c.mu.RUnlock()

	for _, chain := range chains {
		chain.player.SetVolume(c.effectiveGain(chain.perCall))
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
