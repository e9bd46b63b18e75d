package transcode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/RyanBlaney/sonido-chords/logging"
)

var (
	// ErrUnsupportedFormat is returned for files the decoder cannot read
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrDecoderUnavailable is returned when the ffmpeg binary cannot be run
	ErrDecoderUnavailable = errors.New("audio decoder unavailable")
)

// AudioData represents decoded mono audio
type AudioData struct {
	PCM        []float64     `json:"-"` // Raw PCM data in [-1, 1]
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	Source     string        `json:"source"`
	Codec      string        `json:"codec,omitempty"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate" yaml:"target_sample_rate"`
	MaxDuration      time.Duration `json:"max_duration" yaml:"max_duration"`
	FFmpegPath       string        `json:"ffmpeg_path" yaml:"ffmpeg_path"` // Path to ffmpeg binary
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`         // Timeout for ffmpeg operations
	// WAV files already at TargetSampleRate are always read in process.
	// PreferNativeWAV extends that to every WAV file, which are then analyzed
	// at their own sample rate (a different frame rate) instead of being
	// resampled through ffmpeg.
	PreferNativeWAV bool `json:"prefer_native_wav" yaml:"prefer_native_wav"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 22050,
		MaxDuration:      0, // No limit
		FFmpegPath:       "ffmpeg",
		Timeout:          2 * time.Minute,
		PreferNativeWAV:  false,
	}
}

// Validate validates the decoder configuration
func (c *DecoderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TargetSampleRate, validation.Required, validation.Min(8000), validation.Max(192000)),
		validation.Field(&c.FFmpegPath, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxDuration, validation.Min(time.Duration(0))),
	)
}

// Decoder turns audio files into mono PCM
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// DecodeFile decodes an audio file and returns mono PCM data
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	if strings.EqualFold(filepath.Ext(filename), ".wav") {
		audio, err := d.decodeNativeWAV(filename, logger)
		if err != nil || audio != nil {
			return audio, err
		}
	}

	return d.decodeWithFFmpeg(ctx, filename, logger)
}

// decodeNativeWAV reads filename in process when its rate needs no
// conversion. A nil result with a nil error means ffmpeg should handle it.
func (d *Decoder) decodeNativeWAV(filename string, logger logging.Logger) (*AudioData, error) {
	sampleRate, err := WAVSampleRate(filename)
	if err == nil && sampleRate != d.config.TargetSampleRate && !d.config.PreferNativeWAV {
		logger.Debug("WAV needs resampling, using ffmpeg", logging.Fields{
			"sample_rate": sampleRate,
			"target_rate": d.config.TargetSampleRate,
		})
		return nil, nil
	}

	var audio *AudioData
	if err == nil {
		logger.Debug("Decoding WAV in process")
		audio, err = ReadWAVFile(filename)
	}
	if err == nil {
		return d.truncate(audio), nil
	}
	if !errors.Is(err, ErrUnsupportedFormat) {
		return nil, err
	}

	logger.Debug("WAV not readable in process, falling back to ffmpeg", logging.Fields{
		"error": err.Error(),
	})
	return nil, nil
}

// decodeWithFFmpeg pipes the file through ffmpeg as raw float64 mono
func (d *Decoder) decodeWithFFmpeg(ctx context.Context, filename string, logger logging.Logger) (*AudioData, error) {
	if _, err := exec.LookPath(d.config.FFmpegPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecoderUnavailable, d.config.FFmpegPath, err)
	}

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	args := append([]string{"-i", filename}, d.buildFFmpegArgs()...)
	args = append(args, "pipe:1")

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	output, err := exec.CommandContext(ctx, d.config.FFmpegPath, args...).Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "Ffmpeg decode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
			return nil, fmt.Errorf("%w: ffmpeg could not decode %s: %s", ErrUnsupportedFormat, filename, strings.TrimSpace(string(exitError.Stderr)))
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no audio samples decoded from %s", ErrUnsupportedFormat, filename)
	}

	audio := &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Channels:   1,
		Duration:   samplesDuration(len(samples), d.config.TargetSampleRate),
		Source:     filename,
		Codec:      "ffmpeg",
	}

	logger.Debug("FFmpeg decode completed", logging.Fields{
		"samples":     len(samples),
		"sample_rate": audio.SampleRate,
		"duration":    audio.Duration.Seconds(),
	})

	return audio, nil
}

// buildFFmpegArgs builds the ffmpeg output arguments
func (d *Decoder) buildFFmpegArgs() []string {
	args := []string{
		"-f", "f64le", // Output raw float64 little-endian
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}

	// Suppress ffmpeg output
	return append(args, "-v", "error")
}

func (d *Decoder) truncate(audio *AudioData) *AudioData {
	if d.config.MaxDuration <= 0 {
		return audio
	}
	limit := int(d.config.MaxDuration.Seconds() * float64(audio.SampleRate))
	if limit < len(audio.PCM) {
		audio.PCM = audio.PCM[:limit]
		audio.Duration = samplesDuration(limit, audio.SampleRate)
	}
	return audio
}

// bytesToFloat64 converts raw float64 bytes to []float64
func bytesToFloat64(data []byte) []float64 {
	// Trim to multiple of 8 bytes
	data = data[:len(data)-(len(data)%8)]

	samples := make([]float64, len(data)/8)
	for i := range samples {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}

	return samples
}

func samplesDuration(samples, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
