package transcode

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAVFile decodes a PCM WAV file and mixes it down to mono
func ReadWAVFile(filename string) (*AudioData, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	audioData, err := ReadWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	audioData.Source = filename
	return audioData, nil
}

// WAVSampleRate reads only the header of a WAV file and returns its sample rate
func WAVSampleRate(filename string) (int, error) {
	f, err := os.Open(filename)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() || decoder.SampleRate == 0 {
		return 0, fmt.Errorf("%s: %w: not a valid WAV stream", filename, ErrUnsupportedFormat)
	}
	return int(decoder.SampleRate), nil
}

// ReadWAV decodes PCM WAV data from r and mixes it down to mono
func ReadWAV(r io.ReadSeeker) (*AudioData, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV stream", ErrUnsupportedFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: read PCM: %v", ErrUnsupportedFormat, err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: missing WAV format", ErrUnsupportedFormat)
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	pcm := mixDown(buf, bitDepth)

	return &AudioData{
		PCM:        pcm,
		SampleRate: buf.Format.SampleRate,
		Channels:   1,
		Duration:   samplesDuration(len(pcm), buf.Format.SampleRate),
		Codec:      fmt.Sprintf("pcm_s%d", bitDepth),
	}, nil
}

// mixDown averages interleaved integer samples into a mono signal in [-1, 1]
func mixDown(buf *audio.IntBuffer, bitDepth int) []float64 {
	channels := buf.Format.NumChannels
	scale := 1.0
	if bitDepth > 1 {
		scale = float64(int64(1) << (bitDepth - 1))
	}
	if bitDepth == 8 {
		// 8-bit WAV is unsigned with a 128 midpoint
		for i, v := range buf.Data {
			buf.Data[i] = v - 128
		}
	}

	frames := len(buf.Data) / channels
	pcm := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for c := range channels {
			sum += float64(buf.Data[i*channels+c])
		}
		pcm[i] = sum / float64(channels) / scale
	}
	return pcm
}

// WriteWAV encodes mono samples in [-1, 1] as 16-bit PCM WAV
func WriteWAV(w io.WriteSeeker, samples []float64, sampleRate int) error {
	encoder := wav.NewEncoder(w, sampleRate, 16, 1, 1)

	data := make([]int, len(samples))
	for i, s := range samples {
		s = max(-1, min(1, s))
		data[i] = int(s * 32767)
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	return encoder.Close()
}
