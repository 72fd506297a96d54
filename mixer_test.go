package audiocore

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/JoaoLima0710/Aprenda-viol-o-com-qualidade-sub000/samples"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCreateChannelIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t)
	mixer := NewMixer(engine)

	first, err := mixer.CreateChannelWithConfig(ChannelChords, ChannelConfig{DefaultVolume: 0.7})
	if err != nil {
		t.Fatalf("CreateChannelWithConfig: %v", err)
	}
	second, err := mixer.CreateChannelWithConfig(ChannelChords, ChannelConfig{DefaultVolume: 0.2})
	if err != nil {
		t.Fatalf("second CreateChannelWithConfig: %v", err)
	}

	if first != second {
		t.Error("second create returned a different channel")
	}
	if got := second.DefaultVolume(); !almostEqual(got, 0.7) {
		t.Errorf("DefaultVolume() = %v, want original 0.7", got)
	}

	if _, err := mixer.CreateChannel(""); err == nil {
		t.Error("CreateChannel with empty name succeeded")
	}
}

func TestChannelLookup(t *testing.T) {
	engine, _ := newTestEngine(t)
	mixer := NewMixer(engine)
	mixer.CreateChannel(ChannelMetronome)

	if ch := mixer.Channel(ChannelMetronome); ch == nil {
		t.Error("Channel(metronome) = nil")
	}
	if ch := mixer.Channel("undeclared"); ch != nil {
		t.Error("Channel(undeclared) != nil")
	}
	if err := mixer.SetChannelVolume("undeclared", 0.5); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("SetChannelVolume(undeclared) = %v, want ErrUnknownChannel", err)
	}
	if err := mixer.SetChannelMuted("undeclared", true); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("SetChannelMuted(undeclared) = %v, want ErrUnknownChannel", err)
	}
}

func TestChannelVolumeIsolation(t *testing.T) {
	engine, device := newTestEngine(t)
	mixer := NewMixer(engine)

	chords, _ := mixer.CreateChannel(ChannelChords)
	metronome, _ := mixer.CreateChannel(ChannelMetronome)
	mixer.SetChannelVolume(ChannelChords, 0.5)
	mixer.SetChannelVolume(ChannelMetronome, 0.3)

	buf := samples.Silence(engine.SampleRate(), 0.1)
	if err := chords.play(newBufferSource(buf), 1.0, time.Second); err != nil {
		t.Fatalf("chords play: %v", err)
	}
	if err := metronome.play(newBufferSource(buf), 1.0, time.Second); err != nil {
		t.Fatalf("metronome play: %v", err)
	}

	if got := device.player(0).Volume(); !almostEqual(got, 0.5) {
		t.Errorf("chords player volume = %v, want 0.5", got)
	}
	if got := device.player(1).Volume(); !almostEqual(got, 0.3) {
		t.Errorf("metronome player volume = %v, want 0.3", got)
	}

	// Changing one channel mid-flight leaves the other alone.
	mixer.SetChannelVolume(ChannelChords, 0.8)
	if got := device.player(0).Volume(); !almostEqual(got, 0.8) {
		t.Errorf("chords player volume after change = %v, want 0.8", got)
	}
	if got := device.player(1).Volume(); !almostEqual(got, 0.3) {
		t.Errorf("metronome player volume after chords change = %v, want 0.3", got)
	}
}

func TestMasterMuteDistinctFromChannelGains(t *testing.T) {
	engine, device := newTestEngine(t)
	mixer := NewMixer(engine)

	chords, _ := mixer.CreateChannel(ChannelChords)
	mixer.SetChannelVolume(ChannelChords, 0.5)

	buf := samples.Silence(engine.SampleRate(), 0.1)
	if err := chords.play(newBufferSource(buf), 1.0, time.Second); err != nil {
		t.Fatalf("play: %v", err)
	}

	mixer.Mute()
	if !mixer.IsMuted() {
		t.Error("IsMuted() = false after Mute")
	}
	if got := device.player(0).Volume(); got != 0 {
		t.Errorf("player volume = %v while master muted, want 0", got)
	}
	// The channel's own gain survives the master mute.
	if got := chords.Volume(); !almostEqual(got, 0.5) {
		t.Errorf("channel volume = %v while master muted, want 0.5", got)
	}

	mixer.Unmute()
	if got := device.player(0).Volume(); !almostEqual(got, 0.5) {
		t.Errorf("player volume = %v after Unmute, want 0.5", got)
	}

	if muted := mixer.ToggleMute(); !muted {
		t.Error("ToggleMute() = false, want true")
	}
	if muted := mixer.ToggleMute(); muted {
		t.Error("second ToggleMute() = true, want false")
	}
}

func TestMasterVolumeFoldsIntoChains(t *testing.T) {
	engine, device := newTestEngine(t)
	mixer := NewMixer(engine)

	chords, _ := mixer.CreateChannel(ChannelChords)
	buf := samples.Silence(engine.SampleRate(), 0.1)
	if err := chords.play(newBufferSource(buf), 0.5, time.Second); err != nil {
		t.Fatalf("play: %v", err)
	}

	mixer.SetMasterVolume(0.4)
	if got := device.player(0).Volume(); !almostEqual(got, 0.5*0.4) {
		t.Errorf("player volume = %v, want 0.2", got)
	}

	mixer.SetMasterVolume(3.0)
	if got := mixer.MasterVolume(); got != 1.0 {
		t.Errorf("MasterVolume() = %v after overdrive, want clamped 1.0", got)
	}
}

func TestChannelMute(t *testing.T) {
	engine, device := newTestEngine(t)
	mixer := NewMixer(engine)

	chords, _ := mixer.CreateChannel(ChannelChords)
	scales, _ := mixer.CreateChannel(ChannelScales)

	buf := samples.Silence(engine.SampleRate(), 0.1)
	chords.play(newBufferSource(buf), 1.0, time.Second)
	scales.play(newBufferSource(buf), 1.0, time.Second)

	if err := mixer.SetChannelMuted(ChannelChords, true); err != nil {
		t.Fatalf("SetChannelMuted: %v", err)
	}
	if !chords.Muted() {
		t.Error("chords not muted")
	}
	if got := device.player(0).Volume(); got != 0 {
		t.Errorf("muted channel player volume = %v, want 0", got)
	}
	if got := device.player(1).Volume(); !almostEqual(got, 1.0) {
		t.Errorf("unmuted channel player volume = %v, want 1.0", got)
	}

	mixer.SetChannelMuted(ChannelChords, false)
	if got := device.player(0).Volume(); !almostEqual(got, 1.0) {
		t.Errorf("player volume after unmute = %v, want 1.0", got)
	}
}

func TestChainReaping(t *testing.T) {
	engine, device := newTestEngine(t)
	mixer := NewMixer(engine)

	chords, _ := mixer.CreateChannel(ChannelChords)
	buf := samples.Silence(engine.SampleRate(), 0.01)
	if err := chords.play(newBufferSource(buf), 1.0, 10*time.Millisecond); err != nil {
		t.Fatalf("play: %v", err)
	}
	if got := chords.ActiveChains(); got != 1 {
		t.Fatalf("ActiveChains() = %d, want 1", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if chords.ActiveChains() == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := chords.ActiveChains(); got != 0 {
		t.Fatalf("ActiveChains() = %d after lifetime, want 0", got)
	}
	p := device.player(0)
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if !closed {
		t.Error("player not closed after reaping")
	}
}

func TestPlayRequiresReadyEngine(t *testing.T) {
	engine, _ := newTestEngine(t)
	mixer := NewMixer(engine)
	chords, _ := mixer.CreateChannel(ChannelChords)

	if err := engine.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	buf := samples.Silence(engine.SampleRate(), 0.1)
	if err := chords.play(newBufferSource(buf), 1.0, time.Second); !errors.Is(err, ErrNotReady) {
		t.Errorf("play while suspended = %v, want ErrNotReady", err)
	}
}
