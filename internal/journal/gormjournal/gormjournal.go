// Package gormjournal implements journal.Backend on SQLite or Postgres
// through GORM. Records are queued in memory and written in batches by a
// background goroutine so the caller never waits on the database.
package gormjournal

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/streetside/panoview/internal/geo"
	"github.com/streetside/panoview/internal/journal"
	"github.com/streetside/panoview/internal/scene"
)

// Location is a Web Mercator point stored as WKB.
type Location struct {
	geom.Point
}

// GormDBDataType picks a column type the dialect can hold WKB in.
func (Location) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "geometry"
	}
	return "blob"
}

// Request is the row written for each journal entry.
type Request struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	Session   string `gorm:"size:36;index"`
	RequestID uint64 `gorm:"index"`
	Latitude  float64
	Longitude float64
	Location  Location
	Status    string `gorm:"size:16;index"`
	SceneID   string `gorm:"size:128"`
	IssuedAt  time.Time
	SettledAt time.Time
	Details   datatypes.JSON
}

func (Request) TableName() string {
	return "scene_requests"
}

type details struct {
	Heading   float64 `json:"heading,omitempty"`
	Error     string  `json:"error,omitempty"`
	LatencyMs int64   `json:"latencyMs"`
}

// Config holds configuration for the backend.
type Config struct {
	FlushInterval time.Duration
	BatchSize     int
}

// Backend writes journal entries through GORM.
type Backend struct {
	db  *gorm.DB
	cfg Config
	log zerolog.Logger

	mu      sync.Mutex
	pending []Request
	closed  bool

	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New wraps an open database. Init migrates the schema and starts flushing.
func New(db *gorm.DB, cfg Config, log zerolog.Logger) *Backend {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	return &Backend{
		db:  db,
		cfg: cfg,
		log: log.With().Str("component", "gormjournal").Logger(),
	}
}

// Init migrates the schema and starts the writer goroutine.
func (b *Backend) Init() error {
	if b.db.Dialector.Name() == "postgres" {
		if err := b.db.Exec(`CREATE EXTENSION IF NOT EXISTS postgis;`).Error; err != nil {
			return fmt.Errorf("failed to create PostGIS extension: %w", err)
		}
	}
	if err := b.db.AutoMigrate(&Request{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.flushLoop()

	b.log.Info().Str("dialect", b.db.Dialector.Name()).Dur("flushInterval", b.cfg.FlushInterval).Msg("Journal ready")
	return nil
}

// Close writes what is queued and closes the database.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.stopChan != nil {
		close(b.stopChan)
		<-b.done
	}
	if n := b.Pending(); n > 0 {
		b.log.Info().Int("pending", n).Msg("Writing queued journal entries before close")
	}
	flushErr := b.Flush()
	if flushErr != nil {
		b.log.Error().Err(flushErr).Int("lost", b.Pending()).Msg("Journal closed with unwritten entries")
	}

	sqlDB, err := b.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	return flushErr
}

// Record queues e for the next flush.
func (b *Backend) Record(e journal.Entry) error {
	row, err := toRow(e)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return journal.ErrClosed
	}
	b.pending = append(b.pending, row)
	return nil
}

// Pending returns the number of queued entries.
func (b *Backend) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush writes every queued entry. On failure the batch is put back.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	rows := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}

	start := time.Now()
	if err := b.db.CreateInBatches(rows, b.cfg.BatchSize).Error; err != nil {
		b.mu.Lock()
		b.pending = append(rows, b.pending...)
		b.mu.Unlock()
		return fmt.Errorf("failed to write %d journal entries: %w", len(rows), err)
	}

	b.log.Debug().Int("count", len(rows)).Dur("duration", time.Since(start)).Msg("Journal flushed")
	return nil
}

// Recent flushes and returns up to limit entries, newest first.
func (b *Backend) Recent(limit int) ([]journal.Entry, error) {
	if err := b.Flush(); err != nil {
		return nil, err
	}

	q := b.db.Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Request
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	out := make([]journal.Entry, 0, len(rows))
	for _, r := range rows {
		e, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Export snapshots a SQLite journal into a file at path.
func (b *Backend) Export(path string) error {
	if err := b.Flush(); err != nil {
		return err
	}
	return DumpSQLite(b.db, path)
}

func (b *Backend) flushLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.log.Error().Err(err).Msg("Error flushing journal")
			}
		}
	}
}

func toRow(e journal.Entry) (Request, error) {
	d, err := json.Marshal(details{
		Heading:   e.Heading,
		Error:     e.Error,
		LatencyMs: e.Latency().Milliseconds(),
	})
	if err != nil {
		return Request{}, fmt.Errorf("failed to encode journal details: %w", err)
	}

	// Coordinates Web Mercator cannot hold keep an empty location; the
	// latitude and longitude columns still carry them.
	var loc Location
	if pt, err := e.Coordinate.Point3857(); err == nil {
		loc.Point = pt
	}

	return Request{
		Session:   e.Session,
		RequestID: e.RequestID,
		Latitude:  e.Coordinate.Latitude,
		Longitude: e.Coordinate.Longitude,
		Location:  loc,
		Status:    e.Status.String(),
		SceneID:   e.SceneID,
		IssuedAt:  e.IssuedAt,
		SettledAt: e.SettledAt,
		Details:   datatypes.JSON(d),
	}, nil
}

func fromRow(r Request) (journal.Entry, error) {
	var d details
	if len(r.Details) > 0 {
		if err := json.Unmarshal(r.Details, &d); err != nil {
			return journal.Entry{}, fmt.Errorf("failed to decode journal details for row %d: %w", r.ID, err)
		}
	}
	return journal.Entry{
		Session:    r.Session,
		RequestID:  r.RequestID,
		Coordinate: geo.Coordinate{Latitude: r.Latitude, Longitude: r.Longitude},
		Status:     parseStatus(r.Status),
		SceneID:    r.SceneID,
		Heading:    d.Heading,
		Error:      d.Error,
		IssuedAt:   r.IssuedAt,
		SettledAt:  r.SettledAt,
	}, nil
}

func parseStatus(s string) scene.Status {
	for _, st := range []scene.Status{scene.Pending, scene.Resolved, scene.Failed, scene.Superseded} {
		if st.String() == s {
			return st
		}
	}
	return scene.Pending
}
