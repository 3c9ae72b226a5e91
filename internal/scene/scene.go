// Package scene models panorama scenes, the requests that look them up and
// the displayed-scene state observed by the panorama surface.
package scene

import (
	"time"

	"github.com/streetside/panoview/internal/geo"
)

// Scene is a resolved panorama handle produced by a scene provider. The core
// passes it through untouched; two scenes are the same only if they are the
// same pointer.
type Scene struct {
	ID         string
	Coordinate geo.Coordinate
	Heading    float64
	CapturedAt time.Time
}

// Status is the lifecycle position of a Request.
type Status int

const (
	Pending Status = iota
	Resolved
	Failed
	Superseded
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	case Superseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s != Pending
}

// Request is one scene lookup issued for a selection. IDs start at 1 and
// increase monotonically for the lifetime of a coordinator.
type Request struct {
	ID         uint64
	Coordinate geo.Coordinate
	Status     Status
	IssuedAt   time.Time
	SettledAt  time.Time
	// Scene is set once the request resolves.
	Scene *Scene
	// Err is set once the request fails.
	Err error
}

// Latency is the time between issue and settlement, zero while pending.
func (r Request) Latency() time.Duration {
	if r.SettledAt.IsZero() {
		return 0
	}
	return r.SettledAt.Sub(r.IssuedAt)
}
