package actions

import (
	sserr "github.com/StricklySoft/seqactions/pkg/errors"
)

// Config tunes the driver. The struct tags make it loadable with
// pkg/config, either directly or nested in a larger settings struct.
type Config struct {
	// StrictReentrancy makes the reentrancy guard panic instead of
	// logging and ignoring the offending call. Enable it in tests and
	// debug builds.
	StrictReentrancy bool `env:"STRICT_REENTRANCY" envDefault:"false" yaml:"strict_reentrancy" json:"strict_reentrancy"`

	// MaxStartsPerAdvance caps how many actions one advance may start.
	// Each advance is additionally bounded by the queue length at the
	// time it begins; leftover work continues on the next tick.
	MaxStartsPerAdvance int `env:"MAX_STARTS_PER_ADVANCE" envDefault:"1024" yaml:"max_starts_per_advance" json:"max_starts_per_advance"`

	// MaxDeferredPerFlush caps how many deferred commands a single drain
	// applies. Commands past the cap stay buffered for the next drain.
	MaxDeferredPerFlush int `env:"MAX_DEFERRED_PER_FLUSH" envDefault:"4096" yaml:"max_deferred_per_flush" json:"max_deferred_per_flush"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		StrictReentrancy:    false,
		MaxStartsPerAdvance: 1024,
		MaxDeferredPerFlush: 4096,
	}
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.MaxStartsPerAdvance < 1 {
		return sserr.Newf(sserr.CodeValidationRange,
			"actions: max_starts_per_advance must be at least 1, got %d", c.MaxStartsPerAdvance)
	}
	if c.MaxDeferredPerFlush < 1 {
		return sserr.Newf(sserr.CodeValidationRange,
			"actions: max_deferred_per_flush must be at least 1, got %d", c.MaxDeferredPerFlush)
	}
	return nil
}
