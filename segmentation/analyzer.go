package segmentation

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/RyanBlaney/sonido-chords/logging"
)

// ChromagramProvider produces a chromagram for an audio source
type ChromagramProvider interface {
	Chromagram(ctx context.Context, source string, hopLength int) (*chroma.Chromagram, error)
}

// Analyzer turns audio sources into chord timelines using an injected
// chromagram provider
type Analyzer struct {
	provider ChromagramProvider
	engine   *Engine
	logger   logging.Logger
}

// NewAnalyzer fails with ErrDependencyUnavailable when provider is nil
func NewAnalyzer(provider ChromagramProvider, params Params) (*Analyzer, error) {
	if provider == nil {
		return nil, ErrDependencyUnavailable
	}

	engine, err := NewEngine(params)
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		provider: provider,
		engine:   engine,
		logger: logging.WithFields(logging.Fields{
			"component": "chord_analyzer",
		}),
	}, nil
}

// Engine returns the underlying segmentation engine
func (a *Analyzer) Engine() *Engine {
	return a.engine
}

// Analyze extracts the chromagram of source and segments it
func (a *Analyzer) Analyze(ctx context.Context, source string) (*Result, error) {
	logger := a.logger.WithFields(logging.Fields{
		"function": "Analyze",
		"source":   source,
	})

	cg, err := a.provider.Chromagram(ctx, source, a.engine.params.HopLength)
	if err != nil {
		logger.Error(err, "Chromagram extraction failed")
		return nil, fmt.Errorf("chromagram for %s: %w", source, err)
	}

	result, err := a.engine.Run(ctx, cg)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", source, err)
	}
	result.Source = source

	logger.Info("Chord analysis completed", logging.Fields{
		"chords":   len(result.Chords),
		"duration": result.Duration,
	})

	return result, nil
}
