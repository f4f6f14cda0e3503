package failover

import (
	"fmt"
	"time"
)

// Status is the availability of one backend as seen by the Coordinator.
type Status int

const (
	// Healthy backends have not failed since their last successful resync.
	Healthy Status = iota
	// Degraded backends failed an operation and wait for the next resync.
	Degraded
)

func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText renders the status as its lowercase name in JSON.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ResyncReport describes a completed resynchronization: every record of
// Source was replayed into Target and Target is healthy again.
type ResyncReport struct {
	Target      string
	Source      string
	Replayed    int
	CompletedAt time.Time
}
