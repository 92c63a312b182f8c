package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/kbukum/scribe/transcription"
)

// SampleRate is the rate every decoded buffer is resampled to.
const SampleRate = 16000

// ErrNotWAV is returned for payloads that are not RIFF/WAVE.
var ErrNotWAV = errors.New("audio is not a WAV file")

// Decode turns a WAV payload into mono 16 kHz float32 PCM in [-1, 1].
// Multi-channel audio is averaged; other rates are linearly resampled.
func Decode(ctx context.Context, a transcription.Audio) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return DecodeReader(bytes.NewReader(a.Data))
}

// DecodeFile decodes a WAV file from disk.
func DecodeFile(ctx context.Context, path string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeReader(f)
}

// DecodeReader decodes a WAV stream.
func DecodeReader(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("decode wav: missing format")
	}
	mono := Downmix(buf.Data, buf.Format.NumChannels, int(dec.BitDepth))
	return Resample(mono, buf.Format.SampleRate, SampleRate), nil
}

// Downmix averages interleaved integer samples of the given bit depth into
// one normalized channel.
func Downmix(data []int, channels, bitDepth int) []float32 {
	if channels <= 0 {
		return nil
	}
	scale := float32(1)
	if bitDepth > 1 {
		scale = float32(math.Pow(2, float64(bitDepth-1)))
	}
	n := len(data) / channels
	out := make([]float32, n)
	for i := range n {
		var sum float32
		for c := range channels {
			sum += float32(data[i*channels+c])
		}
		out[i] = sum / float32(channels) / scale
	}
	return out
}

// Resample converts pcm from rate `from` to rate `to` by linear
// interpolation.
func Resample(pcm []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(pcm) == 0 {
		return pcm
	}
	n := int(math.Round(float64(len(pcm)) * float64(to) / float64(from)))
	out := make([]float32, n)
	step := float64(from) / float64(to)
	last := len(pcm) - 1
	for i := range n {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = pcm[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = pcm[j] + (pcm[j+1]-pcm[j])*frac
	}
	return out
}

// Duration returns the length of 16 kHz PCM in seconds.
func Duration(pcm []float32) float64 {
	return float64(len(pcm)) / SampleRate
}

// Split cuts 16 kHz PCM into consecutive chunks of the given duration. The
// final chunk may be shorter.
func Split(pcm []float32, seconds float64) [][]float32 {
	size := int(seconds * SampleRate)
	if size <= 0 || len(pcm) == 0 {
		return nil
	}
	var out [][]float32
	for start := 0; start < len(pcm); start += size {
		out = append(out, pcm[start:min(start+size, len(pcm))])
	}
	return out
}

// Encode writes 16 kHz mono PCM as a 16-bit WAV payload.
func Encode(pcm []float32) ([]byte, error) {
	// The encoder seeks back to patch chunk sizes, so it needs a file.
	f, err := os.CreateTemp("", "scribe-*.wav")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	enc := wav.NewEncoder(f, SampleRate, 16, 1, 1)
	data := make([]int, len(pcm))
	for i, s := range pcm {
		s = max(-1, min(1, s))
		data[i] = int(s * 32767)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}

// Chunks splits a WAV payload into WAV chunks of the given duration, ready
// for live transcription.
func Chunks(ctx context.Context, a transcription.Audio, seconds float64) ([]transcription.Audio, error) {
	pcm, err := Decode(ctx, a)
	if err != nil {
		return nil, err
	}
	parts := Split(pcm, seconds)
	out := make([]transcription.Audio, len(parts))
	for i, p := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := Encode(p)
		if err != nil {
			return nil, err
		}
		out[i] = transcription.Audio{
			Data:        data,
			FileName:    fmt.Sprintf("chunk-%03d.wav", i),
			ContentType: "audio/wav",
		}
	}
	return out, nil
}
