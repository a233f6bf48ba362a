package ranking

import "fmt"

// Default session parameters.
const (
	// DefaultKFactor is the Elo K-factor applied to every pairwise update.
	DefaultKFactor = 32.0

	// DefaultSampleSize is how many candidates a ranking session presents.
	DefaultSampleSize = 3

	// DefaultPoolLimit caps how many pool rows are fetched before sampling.
	DefaultPoolLimit = 100
)

// Config holds tunable parameters for ranking sessions.
type Config struct {
	// KFactor is the Elo K-factor. Must be > 0.
	KFactor float64

	// SampleSize is the number of candidates presented per session.
	// Must be >= 2 (a single item yields no comparisons).
	SampleSize int

	// PoolLimit is the maximum pool rows fetched before sampling.
	// Must be >= SampleSize.
	PoolLimit int
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		KFactor:    DefaultKFactor,
		SampleSize: DefaultSampleSize,
		PoolLimit:  DefaultPoolLimit,
	}
}

// Validate checks that the configuration has usable values.
func (c Config) Validate() error {
	if c.KFactor <= 0 {
		return fmt.Errorf("KFactor must be > 0 (got %g)", c.KFactor)
	}
	if c.SampleSize < 2 {
		return fmt.Errorf("SampleSize must be >= 2 (got %d)", c.SampleSize)
	}
	if c.PoolLimit < c.SampleSize {
		return fmt.Errorf("PoolLimit must be >= SampleSize (got %d < %d)", c.PoolLimit, c.SampleSize)
	}
	return nil
}
