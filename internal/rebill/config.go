package rebill

import (
	"time"
)

// Config controls scan cadence, due-window bounds and batch sizes.
type Config struct {
	ScanInterval      time.Duration
	LookbackWindow    time.Duration
	BatchSize         int
	BackfillBatchSize int
	DebounceWindow    time.Duration
	AttemptTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		ScanInterval:      5 * time.Minute,
		LookbackWindow:    15 * time.Minute,
		BatchSize:         200,
		BackfillBatchSize: 500,
		DebounceWindow:    5 * time.Second,
		AttemptTimeout:    60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.ScanInterval <= 0 {
		c.ScanInterval = defaults.ScanInterval
	}
	if c.LookbackWindow <= 0 {
		c.LookbackWindow = defaults.LookbackWindow
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.BackfillBatchSize <= 0 {
		c.BackfillBatchSize = defaults.BackfillBatchSize
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = defaults.DebounceWindow
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = defaults.AttemptTimeout
	}
	return c
}
