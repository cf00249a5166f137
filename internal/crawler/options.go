package crawler

import "time"

// Config holds the settings of a crawl run.
type Config struct {
	// Delay is the politeness pause after every processed target.
	Delay time.Duration

	// FollowOpponents enqueues the opponent links of each fighter page.
	FollowOpponents bool

	// EventBuffer is the capacity of the Events channel. Events are
	// dropped rather than blocking the crawl when it is full.
	EventBuffer int
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Delay:           3 * time.Second,
		FollowOpponents: true,
		EventBuffer:     1000,
	}
}
