package loader

// Config controls the batch loader.
type Config struct {
	// BatchSize is the number of buffered envelopes that triggers a flush.
	BatchSize int
	// DryRun runs the full load, inserts included, inside the flush
	// transaction and rolls it back instead of committing.
	DryRun bool
}

func DefaultConfig() Config {
	return Config{BatchSize: 5000}
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultConfig().BatchSize
	}
	return c
}
