package samples

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// DecodeWAV decodes a PCM WAV stream into a stereo buffer at its native
// rate.
func DecodeWAV(r io.ReadSeeker) (*Buffer, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav stream", ErrUnsupportedFormat)
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding wav: %w", err)
	}
	return fromPCM(pcm, int(d.BitDepth))
}

// fromPCM converts an integer PCM buffer to a normalized stereo buffer.
func fromPCM(pcm *audio.IntBuffer, bitDepth int) (*Buffer, error) {
	if pcm == nil || len(pcm.Data) == 0 {
		return nil, ErrEmptyBuffer
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	data := make([]float32, len(pcm.Data))
	for i, s := range pcm.Data {
		data[i] = float32(s) / scale
	}

	stereo, err := toStereo(data, pcm.Format.NumChannels)
	if err != nil {
		return nil, err
	}
	return &Buffer{Data: stereo, SampleRate: pcm.Format.SampleRate}, nil
}

// DecodeMP3 decodes an MP3 stream. go-mp3 always yields 16-bit stereo at
// the stream's sample rate.
func DecodeMP3(r io.Reader) (*Buffer, error) {
	d, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("decoding mp3: %w", err)
	}
	if len(raw) < 4 {
		return nil, ErrEmptyBuffer
	}

	samples := len(raw) / 2
	data := make([]float32, samples)
	for i := 0; i < samples; i++ {
		v := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		data[i] = float32(v) / 32768.0
	}
	return &Buffer{Data: data, SampleRate: d.SampleRate()}, nil
}

// DecodeOgg decodes an Ogg Vorbis stream.
func DecodeOgg(r io.Reader) (*Buffer, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyBuffer
	}

	stereo, err := toStereo(data, format.Channels)
	if err != nil {
		return nil, err
	}
	return &Buffer{Data: stereo, SampleRate: format.SampleRate}, nil
}
