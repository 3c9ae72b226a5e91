// Package journal records every settled scene request for later inspection.
package journal

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/streetside/panoview/internal/geo"
	"github.com/streetside/panoview/internal/scene"
)

// Entry is one settled scene request.
type Entry struct {
	// Session identifies the process run; request IDs restart with it.
	Session    string
	RequestID  uint64
	Coordinate geo.Coordinate
	Status     scene.Status
	SceneID    string
	Heading    float64
	Error      string
	IssuedAt   time.Time
	SettledAt  time.Time
}

// Latency is the time the request spent pending.
func (e Entry) Latency() time.Duration {
	if e.SettledAt.IsZero() {
		return 0
	}
	return e.SettledAt.Sub(e.IssuedAt)
}

// FromRequest builds the entry for a settled request.
func FromRequest(session string, r scene.Request) Entry {
	e := Entry{
		Session:    session,
		RequestID:  r.ID,
		Coordinate: r.Coordinate,
		Status:     r.Status,
		IssuedAt:   r.IssuedAt,
		SettledAt:  r.SettledAt,
	}
	if r.Scene != nil {
		e.SceneID = r.Scene.ID
		e.Heading = r.Scene.Heading
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	return e
}

// Backend is the interface all journal implementations must satisfy.
// Record is called on the core lane and must not block on I/O.
type Backend interface {
	Init() error
	Close() error

	Record(e Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(limit int) ([]Entry, error)
}

// Reporter journals settled requests.
type Reporter struct {
	backend Backend
	session string
	log     zerolog.Logger
}

// NewReporter returns a reporter recording into backend under session.
func NewReporter(backend Backend, session string, log zerolog.Logger) *Reporter {
	return &Reporter{
		backend: backend,
		session: session,
		log:     log.With().Str("component", "journal").Logger(),
	}
}

// RequestSettled records r. Failures are logged and otherwise ignored.
func (r *Reporter) RequestSettled(req scene.Request) {
	if err := r.backend.Record(FromRequest(r.session, req)); err != nil {
		r.log.Error().Err(err).Uint64("requestId", req.ID).Msg("Failed to journal scene request")
	}
}
