// Package audiocore is the real-time audio control core of the practice
// application. It owns the single audio output device for the process,
// routes every sound through named mixer channels, and recovers from
// audio failures without silent breakage.
//
// The package is organized around four cooperating components:
//   - Engine: sole owner of the audio device and the authoritative
//     audio clock; created once per process behind a singleton guard
//   - Mixer: named gain channels (chords, scales, metronome, effects)
//     multiplexed into the device, plus a master mute
//   - Bus: the only component allowed to construct playback chains;
//     all emission goes through PlayBuffer, PlayOscillator or PlaySample
//   - Resilience: classifies failures, retries with backoff, and falls
//     back to synthesized playback when samples are unavailable
//
// Session lifecycle tracking lives in the lifecycle subpackage and
// ahead-of-time rhythm scheduling in the scheduler subpackage; neither
// touches device-level primitives directly.
package audiocore
