// Package annotation holds the points of interest shown on the map surface.
package annotation

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/streetside/panoview/internal/config"
	"github.com/streetside/panoview/internal/geo"
)

// ErrUnknownAnnotation is returned when no annotation has the requested ID.
var ErrUnknownAnnotation = errors.New("unknown annotation")

// Annotation is a selectable map pin. Only Coordinate reaches the core.
type Annotation struct {
	ID         string
	Title      string
	Coordinate geo.Coordinate
}

// Registry caches annotations by ID so gestures can be resolved without
// walking the configured list.
type Registry struct {
	m    sync.RWMutex
	byID map[string]Annotation
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Annotation)}
}

// Add stores a, assigning a random ID when it has none, and returns the
// stored annotation. An existing annotation with the same ID is replaced.
func (r *Registry) Add(a Annotation) (Annotation, error) {
	if !a.Coordinate.Valid() {
		return Annotation{}, fmt.Errorf("annotation %q: %w", a.Title, geo.ErrInvalidCoordinates)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Title == "" {
		a.Title = a.Coordinate.String()
	}

	r.m.Lock()
	defer r.m.Unlock()
	r.byID[a.ID] = a
	return a, nil
}

// Get returns the annotation with the given ID, or ErrUnknownAnnotation.
func (r *Registry) Get(id string) (Annotation, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	if a, ok := r.byID[id]; ok {
		return a, nil
	}
	return Annotation{}, fmt.Errorf("%w: %s", ErrUnknownAnnotation, id)
}

// All returns every annotation ordered by title, then ID.
func (r *Registry) All() []Annotation {
	r.m.RLock()
	out := make([]Annotation, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	r.m.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of stored annotations.
func (r *Registry) Len() int {
	r.m.RLock()
	defer r.m.RUnlock()
	return len(r.byID)
}

// Load adds every configured annotation. It stops at the first invalid one.
func (r *Registry) Load(cfgs []config.AnnotationConfig) error {
	for _, c := range cfgs {
		if _, err := r.Add(Annotation{ID: c.ID, Title: c.Title, Coordinate: c.Coordinate()}); err != nil {
			return err
		}
	}
	return nil
}
