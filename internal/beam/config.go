package beam

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned for search parameters that cannot run.
var ErrInvalidConfig = errors.New("invalid search config")

// DefaultMinFinishLength is the token count a finished sequence must exceed to
// be admissible.
const DefaultMinFinishLength = 100

// Config holds the search parameters.
type Config struct {
	StartToken      int
	EndToken        int
	Width           int
	Temperature     float64
	MinFinishLength int
	MaxSteps        int
}

// DefaultConfig returns the parameters used by the warehouse planner.
func DefaultConfig() Config {
	return Config{
		StartToken:      1,
		EndToken:        2,
		Width:           5,
		Temperature:     1.0,
		MinFinishLength: DefaultMinFinishLength,
		MaxSteps:        200,
	}
}

// Validate checks the parameters.
func (c Config) Validate() error {
	if c.Width < 1 {
		return fmt.Errorf("%w: beam width must be at least 1, got %d", ErrInvalidConfig, c.Width)
	}
	if c.Temperature <= 0 {
		return fmt.Errorf("%w: temperature must be positive, got %g", ErrInvalidConfig, c.Temperature)
	}
	if c.MaxSteps < 1 {
		return fmt.Errorf("%w: max steps must be at least 1, got %d", ErrInvalidConfig, c.MaxSteps)
	}
	if c.MinFinishLength < 0 {
		return fmt.Errorf("%w: min finish length must not be negative", ErrInvalidConfig)
	}
	if c.StartToken == c.EndToken {
		return fmt.Errorf("%w: start and end token are both %d", ErrInvalidConfig, c.StartToken)
	}
	return nil
}
