package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/streetside/panoview/internal/geo"
	"github.com/streetside/panoview/internal/scene"
)

// Func adapts a function to a scene provider.
type Func func(ctx context.Context, c geo.Coordinate) (*scene.Scene, error)

// Lookup calls f.
func (f Func) Lookup(ctx context.Context, c geo.Coordinate) (*scene.Scene, error) {
	return f(ctx, c)
}

// Synthetic fabricates scenes for offline use. Lookups take Latency, snap
// the coordinate to a grid of about 11m and report ErrNoScene for points
// whose grid cell is marked uncovered.
type Synthetic struct {
	Latency time.Duration
	// Uncovered reports grid cells with no imagery. Nil treats open water
	// (the 0,0 cell and the poles) as uncovered.
	Uncovered func(geo.Coordinate) bool
	// Epoch anchors synthetic capture dates.
	Epoch time.Time
}

const gridStep = 1e-4

// Lookup waits out Latency, honoring ctx, and returns the scene at the grid
// point nearest c.
func (s Synthetic) Lookup(ctx context.Context, c geo.Coordinate) (*scene.Scene, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("synthetic lookup at %s: %w", c, geo.ErrInvalidCoordinates)
	}
	if s.Latency > 0 {
		t := time.NewTimer(s.Latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	snapped := geo.Coordinate{
		Latitude:  math.Round(c.Latitude/gridStep) * gridStep,
		Longitude: math.Round(c.Longitude/gridStep) * gridStep,
	}
	uncovered := s.Uncovered
	if uncovered == nil {
		uncovered = openWater
	}
	if uncovered(snapped) {
		return nil, ErrNoScene
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(snapped.String()))
	sum := h.Sum64()

	epoch := s.Epoch
	if epoch.IsZero() {
		epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	return &scene.Scene{
		ID:         fmt.Sprintf("syn-%016x", sum),
		Coordinate: snapped,
		Heading:    float64(sum % 360),
		CapturedAt: epoch.Add(time.Duration(sum%(5*365*24)) * time.Hour),
	}, nil
}

func openWater(c geo.Coordinate) bool {
	if math.Abs(c.Latitude) > 85 {
		return true
	}
	return math.Abs(c.Latitude) < 0.5 && math.Abs(c.Longitude) < 0.5
}
