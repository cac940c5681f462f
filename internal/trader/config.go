package trader

import "time"

// Config holds the tunable parameters of a synthetic trader's tick loop
// (§4.5, defaults from §6.4).
type Config struct {
	MinOrderSize uint64
	MaxOrderSize uint64

	// Volatility bounds the uniform draw used to perturb the reference
	// price into a limit price (§4.5 step 5).
	Volatility float64

	// MinInterval/MaxInterval bound the uniform inter-arrival delay
	// between ticks. §4.5 describes this as "50-500ms drawn uniformly";
	// §6.4 names 50ms as the single default, which this config reconciles
	// by treating it as the floor of that range.
	MinInterval time.Duration
	MaxInterval time.Duration

	InitialReference float64
	MinReference     float64
}

// DefaultConfig matches the defaults enumerated in §6.4.
func DefaultConfig() Config {
	return Config{
		MinOrderSize:     10,
		MaxOrderSize:     100,
		Volatility:       0.02,
		MinInterval:      50 * time.Millisecond,
		MaxInterval:      500 * time.Millisecond,
		InitialReference: 100,
		MinReference:     1,
	}
}

// HFTConfig is the "HFT profile" named in §4.5 step 4: smaller clips, same
// timing and volatility defaults.
func HFTConfig() Config {
	cfg := DefaultConfig()
	cfg.MinOrderSize = 5
	cfg.MaxOrderSize = 50
	return cfg
}
