// Package samples provides the named sample library backing the audio
// bus. It decodes WAV, MP3 and Ogg Vorbis assets into interleaved stereo
// float32 buffers at the engine's output rate, caches them, and can
// synthesize deterministic stand-ins when an asset is missing so a
// practice exercise is never blocked by a failed download.
package samples
