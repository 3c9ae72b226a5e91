// Package app wires the panorama viewer together: one dispatcher lane
// serializes every core mutation, and the map surface, coordinator and
// reporters hang off it.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/streetside/panoview/internal/annotation"
	"github.com/streetside/panoview/internal/config"
	"github.com/streetside/panoview/internal/dispatcher"
	"github.com/streetside/panoview/internal/influx"
	"github.com/streetside/panoview/internal/journal"
	"github.com/streetside/panoview/internal/logging"
	"github.com/streetside/panoview/internal/mapstyle"
	"github.com/streetside/panoview/internal/mapsurface"
	"github.com/streetside/panoview/internal/panofeed"
	"github.com/streetside/panoview/internal/provider"
	"github.com/streetside/panoview/internal/scene"
	"github.com/streetside/panoview/internal/selection"
)

// CommandStyle changes the style selection on the core lane.
const CommandStyle = ":STYLE:"

// Settings is everything the app reads from configuration.
type Settings struct {
	Provider    config.ProviderConfig
	Journal     config.JournalConfig
	Influx      config.InfluxConfig
	Panorama    config.PanoramaConfig
	Style       config.StyleConfig
	Annotations []config.AnnotationConfig
	QueueSize   int
	// Version is announced to the panorama viewer.
	Version string
}

// SettingsFromConfig reads Settings from the loaded configuration.
func SettingsFromConfig() (Settings, error) {
	annotations, err := config.GetAnnotations()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Provider:    config.GetProviderConfig(),
		Journal:     config.GetJournalConfig(),
		Influx:      config.GetInfluxConfig(),
		Panorama:    config.GetPanoramaConfig(),
		Style:       config.GetInitialStyle(),
		Annotations: annotations,
		QueueSize:   config.GetInt("dispatcher.queueSize"),
	}, nil
}

// Options overrides collaborators normally built from Settings.
type Options struct {
	// Provider replaces the configured scene provider.
	Provider selection.Provider
	// Surface is the platform map view. Defaults to a Headless surface.
	Surface mapsurface.Surface
	// Journal replaces the configured journal backend. The app initializes
	// and closes it.
	Journal journal.Backend
}

// App owns the running viewer.
type App struct {
	log     zerolog.Logger
	session string

	dispatcher  *dispatcher.Dispatcher
	annotations *annotation.Registry
	styles      *mapstyle.Store
	scenes      *scene.Store
	coordinator *selection.Coordinator
	adapter     *mapsurface.Adapter
	surface     mapsurface.Surface
	journal     journal.Backend
	influx      *influx.Reporter
	feed        *panofeed.Feed

	unbind    func()
	closeOnce sync.Once
	closeErr  error
}

type styleChange func(mapstyle.State) mapstyle.State

// New builds and starts the app.
func New(ctx context.Context, s Settings, opts Options, log zerolog.Logger) (*App, error) {
	a := &App{
		log:         log.With().Str("component", "app").Logger(),
		session:     uuid.NewString(),
		annotations: annotation.NewRegistry(),
		scenes:      scene.NewStore(),
	}

	if err := a.annotations.Load(s.Annotations); err != nil {
		return nil, fmt.Errorf("loading annotations: %w", err)
	}

	initial, err := mapstyle.ParseState(s.Style.Map, s.Style.Elevation, s.Style.Emphasis)
	if err != nil {
		return nil, fmt.Errorf("initial style: %w", err)
	}
	a.styles = mapstyle.NewStore(initial)

	a.dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(log))
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	a.journal = opts.Journal
	if a.journal == nil {
		if a.journal, err = OpenJournal(s.Journal, log); err != nil {
			a.dispatcher.Close()
			return nil, err
		}
	}
	if err := a.journal.Init(); err != nil {
		a.dispatcher.Close()
		return nil, fmt.Errorf("initializing journal: %w", err)
	}

	reporters := selection.Reporters{journal.NewReporter(a.journal, a.session, log)}
	if s.Influx.Enabled {
		r, err := influx.Connect(ctx, s.Influx, log)
		if err != nil {
			a.log.Warn().Err(err).Msg("InfluxDB reporting disabled")
		} else {
			a.influx = r
			reporters = append(reporters, r)
		}
	}

	p := opts.Provider
	if p == nil {
		p = newProvider(s.Provider, a.log)
	}

	a.coordinator, err = selection.New(p, a.scenes, selection.Options{Reporter: reporters, Logger: log})
	if err != nil {
		a.closeCollaborators()
		return nil, err
	}

	queueSize := s.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	if err := a.coordinator.Register(a.dispatcher, queueSize); err != nil {
		a.closeCollaborators()
		return nil, err
	}
	a.dispatcher.Register(CommandStyle, a.handleStyle,
		dispatcher.Buffered(queueSize), dispatcher.Blocking(), dispatcher.OnLane(selection.CoreLane),
		dispatcher.Logged())

	a.surface = opts.Surface
	if a.surface == nil {
		a.surface = &mapsurface.Headless{}
	}
	a.adapter = mapsurface.New(a.surface, a.coordinator.Post, a.annotations, log)
	if a.unbind, err = a.adapter.Bind(a.styles); err != nil {
		a.closeCollaborators()
		return nil, err
	}

	if s.Panorama.Enabled {
		feed, err := panofeed.Dial(panofeed.Config{
			URL:     s.Panorama.URL,
			Secret:  s.Panorama.Secret,
			Session: a.session,
			Version: s.Version,
		}, log)
		if err != nil {
			a.log.Warn().Err(err).Str("url", s.Panorama.URL).Msg("Panorama viewer feed disabled")
		} else {
			a.feed = feed
			feed.Bind(a.scenes, a.styles)
		}
	}

	a.log.Info().
		Str("session", a.session).
		Int("annotations", a.annotations.Len()).
		Str("style", initial.String()).
		Msg("Viewer started")
	return a, nil
}

func newProvider(cfg config.ProviderConfig, log zerolog.Logger) selection.Provider {
	if cfg.ServerURL == "" {
		log.Info().Dur("latency", cfg.SyntheticLatency).Msg("Using synthetic scene provider")
		return provider.Synthetic{Latency: cfg.SyntheticLatency}
	}
	c := provider.New(cfg.ServerURL, cfg.APIKey,
		provider.WithTimeout(cfg.Timeout),
		provider.WithRadius(cfg.RadiusMeters))
	if err := c.Healthcheck(); err != nil {
		log.Warn().Err(err).Str("url", cfg.ServerURL).Msg("Scene provider healthcheck failed")
	}
	return c
}

// Select acts as a tap on the annotation with the given ID.
func (a *App) Select(annotationID string) error {
	return a.adapter.GestureSelect(annotationID)
}

// Deselect acts as the user dismissing the selection.
func (a *App) Deselect() error {
	return a.adapter.GestureDeselect()
}

// UpdateStyle applies fn to the style selection on the core lane.
func (a *App) UpdateStyle(fn func(mapstyle.State) mapstyle.State) error {
	_, err := a.dispatcher.Dispatch(dispatcher.Event{Command: CommandStyle, Payload: styleChange(fn)})
	return err
}

// SetMapStyle changes the base map style on the core lane.
func (a *App) SetMapStyle(m mapstyle.MapStyle) error {
	return a.UpdateStyle(func(st mapstyle.State) mapstyle.State {
		st.Map = m
		return st
	})
}

// SetElevationStyle changes the elevation style on the core lane.
func (a *App) SetElevationStyle(e mapstyle.ElevationStyle) error {
	return a.UpdateStyle(func(st mapstyle.State) mapstyle.State {
		st.Elevation = e
		return st
	})
}

// SetEmphasisStyle changes the emphasis style on the core lane.
func (a *App) SetEmphasisStyle(e mapstyle.EmphasisStyle) error {
	return a.UpdateStyle(func(st mapstyle.State) mapstyle.State {
		st.Emphasis = e
		return st
	})
}

func (a *App) handleStyle(e dispatcher.Event) (any, error) {
	fn, ok := e.Payload.(styleChange)
	if !ok {
		return nil, fmt.Errorf("app: unexpected style payload %T", e.Payload)
	}
	prev := a.styles.State()
	next := fn(prev)
	if a.styles.Set(next) {
		a.log.Debug().Str("from", prev.String()).Str("to", next.String()).Msg("Style changed")
	}
	return nil, nil
}

// Session returns the ID journaled with every request of this run.
func (a *App) Session() string {
	return a.session
}

// Annotations returns the selectable annotations.
func (a *App) Annotations() *annotation.Registry {
	return a.annotations
}

// Styles returns the style store. Change it through UpdateStyle.
func (a *App) Styles() *mapstyle.Store {
	return a.styles
}

// Scenes returns the displayed scene store.
func (a *App) Scenes() *scene.Store {
	return a.scenes
}

// Coordinator returns the selection coordinator.
func (a *App) Coordinator() *selection.Coordinator {
	return a.coordinator
}

// Adapter returns the map surface adapter that gestures go through.
func (a *App) Adapter() *mapsurface.Adapter {
	return a.adapter
}

// Journal returns the request journal.
func (a *App) Journal() journal.Backend {
	return a.journal
}

// Close stops the viewer. In-flight lookups are abandoned.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		if a.unbind != nil {
			a.unbind()
		}
		var feedErr error
		if a.feed != nil {
			feedErr = a.feed.Close()
		}
		a.closeErr = errors.Join(feedErr, a.closeCollaborators())
		a.log.Info().Msg("Viewer stopped")
	})
	return a.closeErr
}

func (a *App) closeCollaborators() error {
	if a.coordinator != nil {
		a.coordinator.Close()
	}
	a.dispatcher.Close()

	var errs []error
	if a.influx != nil {
		errs = append(errs, a.influx.Close())
	}
	errs = append(errs, a.journal.Close())
	return errors.Join(errs...)
}
