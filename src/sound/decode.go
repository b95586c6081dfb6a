// Package sound decodes audio files into in-memory sample buffers and plays them.
package sound

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Every buffer is normalised to this format so a single playback context can
// play any of them.
const (
	SampleRate     = 44100
	ChannelCount   = 2
	bytesPerSample = 2
)

// ErrInvalidFile is returned for files that are not decodable WAVE audio.
var ErrInvalidFile = errors.New("not a valid WAVE file")

// Buffer holds decoded interleaved signed 16-bit little-endian PCM at SampleRate/ChannelCount.
type Buffer struct {
	Path string
	Data []byte
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	frames := len(b.Data) / (bytesPerSample * ChannelCount)
	return time.Duration(frames) * time.Second / SampleRate
}

// Decode reads a WAVE file fully into memory, scaling samples by volume (0..1).
func Decode(path string, volume float64) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open sound file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFile, path)
	}
	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not decode %s: %w", path, err)
	}
	if pcm.Format == nil || pcm.Format.NumChannels < 1 || pcm.Format.SampleRate < 1 {
		return nil, fmt.Errorf("%w: %s has no usable format", ErrInvalidFile, path)
	}

	samples := to16Bit(pcm, int(decoder.BitDepth))
	samples = toStereo(samples, pcm.Format.NumChannels)
	samples = resample(samples, pcm.Format.SampleRate, SampleRate)

	return &Buffer{Path: path, Data: encode(samples, volume)}, nil
}

func to16Bit(pcm *audio.IntBuffer, bitDepth int) []int {
	out := make([]int, len(pcm.Data))
	for i, v := range pcm.Data {
		switch {
		case bitDepth == 8:
			out[i] = (v - 128) << 8
		case bitDepth > 16:
			out[i] = v >> (bitDepth - 16)
		default:
			out[i] = v
		}
	}
	return out
}

// toStereo duplicates mono samples and keeps the first two channels of wider layouts.
func toStereo(samples []int, channels int) []int {
	if channels == ChannelCount {
		return samples
	}
	frames := len(samples) / channels
	out := make([]int, 0, frames*ChannelCount)
	for f := 0; f < frames; f++ {
		left := samples[f*channels]
		right := left
		if channels > 1 {
			right = samples[f*channels+1]
		}
		out = append(out, left, right)
	}
	return out
}

// resample converts interleaved stereo samples with linear interpolation.
func resample(samples []int, from, to int) []int {
	if from == to || len(samples) == 0 {
		return samples
	}
	inFrames := len(samples) / ChannelCount
	outFrames := int(int64(inFrames) * int64(to) / int64(from))
	out := make([]int, outFrames*ChannelCount)

	ratio := float64(from) / float64(to)
	for f := 0; f < outFrames; f++ {
		pos := float64(f) * ratio
		i := int(pos)
		frac := pos - float64(i)
		next := i + 1
		if next >= inFrames {
			next = inFrames - 1
		}
		for c := 0; c < ChannelCount; c++ {
			a := float64(samples[i*ChannelCount+c])
			b := float64(samples[next*ChannelCount+c])
			out[f*ChannelCount+c] = int(a + (b-a)*frac)
		}
	}
	return out
}

func encode(samples []int, volume float64) []byte {
	if volume <= 0 || volume > 1 {
		volume = 1
	}
	data := make([]byte, len(samples)*bytesPerSample)
	for i, v := range samples {
		scaled := float64(v) * volume
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		binary.LittleEndian.PutUint16(data[i*bytesPerSample:], uint16(int16(scaled)))
	}
	return data
}
