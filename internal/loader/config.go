package loader

import "time"

// Config carries the environment-level settings spec.md §6 names. The
// core treats these as opaque; only the loader's source implementations
// read them.
type Config struct {
	RulesDir       string
	RemoteBaseURL  string
	HTTPProxy      string
	RequestTimeout time.Duration
	CachePath      string
}

func (c Config) requestTimeout() time.Duration {
	if c.RequestTimeout > 0 {
		return c.RequestTimeout
	}
	return 15 * time.Second
}
