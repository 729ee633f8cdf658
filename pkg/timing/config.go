package timing

import (
	"github.com/pkg/errors"

	"github.com/OpenTraceLab/OpenTracePnR/pkg/netlist"
)

// Config carries the clock target shared by the estimator passes. It is
// updated in place by AssignBudget and UpdateBudget when the frequency is not
// pinned by the user.
type Config struct {
	TargetFreq float64 // Target clock frequency in Hz (default: 12 MHz)
	UserFreq   bool    // Frequency pinned by the user; never auto-adjusted (default: false)
	Verbose    bool    // Log per-connection budgets (default: false)
}

// DefaultConfig returns the configuration used when the design gives no
// clock constraint.
func DefaultConfig() *Config {
	return &Config{
		TargetFreq: 12e6,
		UserFreq:   false,
		Verbose:    false,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !(c.TargetFreq > 0) {
		return errors.Errorf("timing: target frequency must be positive, got %g", c.TargetFreq)
	}
	if c.Period() <= 0 {
		return errors.Errorf("timing: target frequency %g Hz is too high to represent", c.TargetFreq)
	}
	return nil
}

// Period returns one clock period in picoseconds.
func (c *Config) Period() netlist.Delay {
	return netlist.Delay(1e12 / c.TargetFreq)
}

// SetFrequencyMHz sets the target frequency and pins it.
func (c *Config) SetFrequencyMHz(mhz float64) {
	c.TargetFreq = mhz * 1e6
	c.UserFreq = true
}
