package main

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/segmentation"
	"github.com/RyanBlaney/sonido-chords/transcode"
)

// Output formats
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Config represents the command line configuration
type Config struct {
	LogLevel     string                  `yaml:"log_level"`
	Output       string                  `yaml:"output"`
	Concurrency  int                     `yaml:"concurrency"`
	Decoder      transcode.DecoderConfig `yaml:"decoder"`
	Segmentation segmentation.Params     `yaml:"segmentation"`
}

// NewDefaultConfig returns a new Config with default values
func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		Output:       OutputText,
		Concurrency:  2,
		Decoder:      *transcode.DefaultDecoderConfig(),
		Segmentation: segmentation.DefaultParams(),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.Required, validation.By(validLevel)),
		validation.Field(&c.Output, validation.Required, validation.In(OutputText, OutputJSON)),
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(64)),
	); err != nil {
		return err
	}
	if err := c.Decoder.Validate(); err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	if err := c.Segmentation.Validate(); err != nil {
		return fmt.Errorf("segmentation: %w", err)
	}
	return nil
}

func validLevel(value any) error {
	name, _ := value.(string)
	_, err := logging.ParseLevel(name)
	return err
}
