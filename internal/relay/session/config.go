package session

import "time"

// Config holds the per-connection timings and limits.
type Config struct {
	// PingPeriod must be shorter than PongWait.
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	ReadLimit  int64
	SendQueue  int

	// AllowedOrigins lists the Origin values accepted on upgrade; empty accepts any.
	AllowedOrigins []string
}

// DefaultConfig returns the standard viewer connection settings.
func DefaultConfig() Config {
	return Config{
		PingPeriod: 15 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  10 * time.Second,
		ReadLimit:  4096,
		SendQueue:  256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PingPeriod <= 0 {
		c.PingPeriod = d.PingPeriod
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = d.ReadLimit
	}
	if c.SendQueue <= 0 {
		c.SendQueue = d.SendQueue
	}
	return c
}
