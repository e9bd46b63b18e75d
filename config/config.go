// Package config loads YAML configuration files with environment variable
// expansion.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration types that can check themselves
type Validator interface {
	Validate() error
}

// Load reads filename into target. ${VAR} references are expanded from the
// environment before parsing, and target is validated when it implements
// Validator. Fields absent from the file keep the values target already had.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	return Parse(data, target)
}

// Parse decodes YAML data into target like Load
func Parse[T any](data []byte, target *T) error {
	if err := decode(data, target); err != nil {
		return err
	}
	return validate(target)
}

func decode[T any](data []byte, target *T) error {
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func validate[T any](target *T) error {
	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// LoadWithDefaults loads filename, falling back to defaultFile when filename
// does not exist. With no default file a missing filename leaves target
// untouched, validated as is.
func LoadWithDefaults[T any](filename, defaultFile string, target *T) error {
	if err := ReadWithDefaults(filename, defaultFile, target); err != nil {
		return err
	}
	return validate(target)
}

// ReadWithDefaults is LoadWithDefaults without validation, for callers that
// apply further overrides (flags) before validating themselves.
func ReadWithDefaults[T any](filename, defaultFile string, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		if defaultFile == "" {
			return nil
		}
		filename = defaultFile
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	return decode(data, target)
}
