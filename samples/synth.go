package samples

import (
	"hash/fnv"
	"math"
)

// Synthesized stand-ins. When an asset fails to load, practice must not
// stop; these generators produce a deterministic placeholder per sample
// name so the same exercise always sounds the same.

// Synthesize produces a fallback buffer for the named sample. Click-ish
// names get a metronome click; everything else gets a plucked tone whose
// pitch is derived from the name.
func Synthesize(name string, sampleRate int) *Buffer {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	if isClickName(name) {
		return Click(sampleRate, false)
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	// Map the name hash onto two octaves above A3 (220 Hz).
	semitone := float64(h.Sum32() % 24)
	freq := 220.0 * math.Pow(2, semitone/12.0)
	return Pluck(sampleRate, freq, 0.6)
}

// Click generates a short metronome click. Accented clicks (downbeats)
// sit a fifth higher and slightly louder.
func Click(sampleRate int, accent bool) *Buffer {
	freq := 880.0
	gain := 0.55
	if accent {
		freq = 1318.5
		gain = 0.70
	}
	n := sampleRate * 30 / 1000 // 30ms
	data := make([]float32, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		p := float64(i) / float64(n)
		env := adsr(p, 0.05, 0.6, 0.0, 0.2)
		s := fm(t, freq, 2.0, 1.2*env) * env * gain
		writeStereo(data, i, softSat(s))
	}
	return &Buffer{Data: data, SampleRate: sampleRate}
}

// Pluck generates a plucked-string-ish FM tone with a bell attack.
func Pluck(sampleRate int, freq, duration float64) *Buffer {
	if freq <= 0 || duration <= 0 {
		return nil
	}
	n := int(duration * float64(sampleRate))
	data := make([]float32, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		p := float64(i) / float64(n)
		env := adsr(p, 0.01, 0.5, 0.12, 0.3)
		s := fm(t, freq, 2.0, 3.0*env) * env * 0.45
		s += math.Sin(2*math.Pi*freq*2*t) * env * 0.08
		writeStereo(data, i, softSat(s))
	}
	return &Buffer{Data: data, SampleRate: sampleRate}
}

// Silence generates a zero buffer, used by the engine unlock path and
// by tests.
func Silence(sampleRate int, duration float64) *Buffer {
	n := int(duration * float64(sampleRate))
	if n < 1 {
		n = 1
	}
	return &Buffer{Data: make([]float32, n*2), SampleRate: sampleRate}
}

func isClickName(name string) bool {
	switch name {
	case "click", "beat", "downbeat", "metronome", "metronome_click":
		return true
	}
	return false
}

func writeStereo(data []float32, frame int, s float64) {
	v := float32(s)
	data[2*frame] = v
	data[2*frame+1] = v
}

// adsr returns an envelope at normalized progress [0,1].
// attack/decay/release are fractions of the total duration.
func adsr(progress, attack, decay, sustain, release float64) float64 {
	switch {
	case progress < attack:
		return progress / attack
	case progress < attack+decay:
		return 1.0 - (progress-attack)/decay*(1.0-sustain)
	case progress < 1.0-release:
		return sustain
	default:
		return sustain * (1.0 - (progress-(1.0-release))/release)
	}
}

// fm returns an FM-synthesized sample.
func fm(t, carrier, modRatio, modIdx float64) float64 {
	mod := math.Sin(2 * math.Pi * carrier * modRatio * t)
	return math.Sin(2*math.Pi*carrier*t + modIdx*mod)
}

// softSat applies gentle saturation so stacked partials never clip hard.
func softSat(x float64) float64 {
	if x > 1.0 {
		return 1.0 - 0.5/x
	}
	if x < -1.0 {
		return -1.0 + 0.5/(-x)
	}
	return x - x*x*x/3.0
}
