// Package mapsurface connects a map rendering surface to the core: it turns
// gestures into selection events and pushes render configurations out.
package mapsurface

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/streetside/panoview/internal/annotation"
	"github.com/streetside/panoview/internal/geo"
	"github.com/streetside/panoview/internal/mapstyle"
	"github.com/streetside/panoview/internal/selection"
)

// Surface is the platform map view.
type Surface interface {
	ApplyRenderConfiguration(cfg mapstyle.RenderConfiguration) error
}

// Sink receives selection events. The adapter holds it but does not own
// whatever sits behind it.
type Sink func(selection.Event) error

// Annotations resolves annotation IDs from gestures.
type Annotations interface {
	Get(id string) (annotation.Annotation, error)
}

// Adapter sits between one Surface and the core.
type Adapter struct {
	surface     Surface
	sink        Sink
	annotations Annotations
	log         zerolog.Logger

	// applying is set while the surface is being reconfigured; gestures the
	// surface raises in that window are echoes, not user input.
	applying atomic.Bool
	// suppressed counts gestures dropped while applying.
	suppressed atomic.Uint64

	mu         sync.Mutex
	applied    mapstyle.RenderConfiguration
	hasApplied bool
	applyCount int

	selMu    sync.RWMutex
	selected string
}

// New returns an adapter that posts selections to sink and applies render
// configurations to surface. Call Bind to start following a style store.
func New(surface Surface, sink Sink, annotations Annotations, log zerolog.Logger) *Adapter {
	return &Adapter{
		surface:     surface,
		sink:        sink,
		annotations: annotations,
		log:         log.With().Str("component", "mapsurface").Logger(),
	}
}

// GestureSelect handles a tap on the annotation with the given ID.
func (a *Adapter) GestureSelect(annotationID string) error {
	if a.echo("select") {
		return nil
	}
	ann, err := a.annotations.Get(annotationID)
	if err != nil {
		return err
	}
	if err := a.post(selection.Selected{Coordinate: ann.Coordinate}); err != nil {
		return err
	}
	a.setSelected(ann.ID)
	return nil
}

// GestureDeselect handles the user dismissing the selected annotation.
func (a *Adapter) GestureDeselect() error {
	return a.AnnotationDeselected()
}

// AnnotationSelected reports a selection by coordinate, for surfaces that
// do not track annotation IDs.
func (a *Adapter) AnnotationSelected(c geo.Coordinate) error {
	if a.echo("select") {
		return nil
	}
	if !c.Valid() {
		return fmt.Errorf("selected %s: %w", c, geo.ErrInvalidCoordinates)
	}
	if err := a.post(selection.Selected{Coordinate: c}); err != nil {
		return err
	}
	a.setSelected("")
	return nil
}

// AnnotationDeselected reports that nothing is selected anymore.
func (a *Adapter) AnnotationDeselected() error {
	if a.echo("deselect") {
		return nil
	}
	if err := a.post(selection.Deselected{}); err != nil {
		return err
	}
	a.setSelected("")
	return nil
}

// Selected returns the ID of the annotation last selected by gesture.
func (a *Adapter) Selected() string {
	a.selMu.RLock()
	defer a.selMu.RUnlock()
	return a.selected
}

// Suppressed returns how many gestures were ignored during reconfiguration.
func (a *Adapter) Suppressed() uint64 {
	return a.suppressed.Load()
}

// Apply pushes cfg to the surface unless it is already showing it.
func (a *Adapter) Apply(cfg mapstyle.RenderConfiguration) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.hasApplied && a.applied == cfg {
		return nil
	}

	a.applying.Store(true)
	err := a.surface.ApplyRenderConfiguration(cfg)
	a.applying.Store(false)
	if err != nil {
		return fmt.Errorf("applying %s: %w", cfg, err)
	}

	a.applied = cfg
	a.hasApplied = true
	a.applyCount++
	a.log.Debug().Str("configuration", cfg.String()).Msg("Render configuration applied")
	return nil
}

// Applied returns the configuration the surface currently shows.
func (a *Adapter) Applied() (mapstyle.RenderConfiguration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applied, a.hasApplied
}

// ApplyCount returns how many configurations reached the surface.
func (a *Adapter) ApplyCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applyCount
}

// Bind applies the store's current configuration and then every change to
// it. The returned function stops following the store.
func (a *Adapter) Bind(styles *mapstyle.Store) (unbind func(), err error) {
	if err := a.Apply(mapstyle.Resolve(styles.State())); err != nil {
		return nil, err
	}
	return styles.Subscribe(func(st mapstyle.State) {
		if err := a.Apply(mapstyle.Resolve(st)); err != nil {
			a.log.Error().Err(err).Str("style", st.String()).Msg("Failed to apply render configuration")
		}
	}), nil
}

func (a *Adapter) echo(gesture string) bool {
	if !a.applying.Load() {
		return false
	}
	a.suppressed.Add(1)
	a.log.Debug().Str("gesture", gesture).Msg("Ignoring gesture raised during reconfiguration")
	return true
}

func (a *Adapter) post(ev selection.Event) error {
	if a.sink == nil {
		return fmt.Errorf("no sink for %T", ev)
	}
	return a.sink(ev)
}

func (a *Adapter) setSelected(id string) {
	a.selMu.Lock()
	a.selected = id
	a.selMu.Unlock()
}
