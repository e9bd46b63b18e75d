package chroma

import (
	"context"
	"fmt"
	"sync"

	"github.com/RyanBlaney/sonido-chords/algorithms/filters"
	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/transcode"
)

// dcCutoffHz sits well below the lowest constant-Q bin (C2, 65.4 Hz)
const dcCutoffHz = 10.0

// AudioDecoder turns a file into mono PCM
type AudioDecoder interface {
	DecodeFile(ctx context.Context, filename string) (*transcode.AudioData, error)
}

// CQTProvider decodes audio files and extracts constant-Q chromagrams.
// It is safe for concurrent use; transforms are built once per sample rate.
type CQTProvider struct {
	decoder AudioDecoder
	logger  logging.Logger

	mu         sync.Mutex
	transforms map[int]*ChromaCQT
}

// NewCQTProvider creates a provider backed by decoder. A nil decoder selects
// transcode.NewDecoder with default settings.
func NewCQTProvider(decoder AudioDecoder) *CQTProvider {
	if decoder == nil {
		decoder = transcode.NewDecoder(nil)
	}
	return &CQTProvider{
		decoder:    decoder,
		transforms: make(map[int]*ChromaCQT),
		logger: logging.WithFields(logging.Fields{
			"component": "cqt_provider",
		}),
	}
}

// Chromagram decodes source and returns its CQT chromagram at hopLength
func (p *CQTProvider) Chromagram(ctx context.Context, source string, hopLength int) (*Chromagram, error) {
	audio, err := p.decoder.DecodeFile(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", source, err)
	}

	cqt, err := p.transform(audio.SampleRate)
	if err != nil {
		return nil, err
	}

	pcm := filters.NewDCRemovalWithCutoff(audio.SampleRate, dcCutoffHz).ProcessBuffer(audio.PCM)

	chromagram, err := cqt.ComputeChroma(ctx, pcm, hopLength)
	if err != nil {
		return nil, fmt.Errorf("chroma extraction for %s: %w", source, err)
	}

	p.logger.Debug("Chromagram extracted", logging.Fields{
		"source":      source,
		"sample_rate": audio.SampleRate,
		"frames":      chromagram.Frames(),
	})

	return chromagram, nil
}

func (p *CQTProvider) transform(sampleRate int) (*ChromaCQT, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cqt, ok := p.transforms[sampleRate]; ok {
		return cqt, nil
	}

	cqt, err := NewChromaCQTDefault(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("build constant-Q transform: %w", err)
	}
	p.transforms[sampleRate] = cqt

	freqs := cqt.GetCQTFrequencies()
	p.logger.Debug("Constant-Q transform built", logging.Fields{
		"sample_rate": sampleRate,
		"bins":        len(freqs),
		"min_freq":    freqs[0],
		"max_freq":    freqs[len(freqs)-1],
		"q_factor":    cqt.GetQFactor(),
	})
	return cqt, nil
}
