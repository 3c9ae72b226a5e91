// Package panofeed streams the panorama state to a remote viewer over a
// WebSocket: which scene is displayed and how the map is rendered.
package panofeed

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/streetside/panoview/internal/mapstyle"
	"github.com/streetside/panoview/internal/scene"
)

// Config holds the viewer connection settings.
type Config struct {
	URL    string
	Secret string
	// Session and Version are announced in the hello message.
	Session string
	Version string
	// ReconnectBackoff is the first reconnect delay. Defaults to one second.
	ReconnectBackoff time.Duration
}

// Feed publishes state changes to one viewer.
type Feed struct {
	conn *connection
	log  zerolog.Logger

	mu     sync.Mutex
	unsubs []func()
}

// Dial connects to the viewer and announces the session.
func Dial(cfg Config, log zerolog.Logger) (*Feed, error) {
	log = log.With().Str("component", "panofeed").Logger()
	f := &Feed{
		conn: newConnection(cfg.ReconnectBackoff, log),
		log:  log,
	}
	if err := f.conn.dial(cfg.URL, cfg.Secret); err != nil {
		return nil, err
	}
	if err := f.publish(TypeHello, HelloPayload{Session: cfg.Session, Version: cfg.Version}); err != nil {
		_ = f.conn.close()
		return nil, err
	}
	log.Info().Str("url", cfg.URL).Msg("Connected to panorama viewer")
	return f, nil
}

// Bind sends the current scene and render configuration, then every change
// to either. Store listeners run on the core lane; publishing never blocks.
func (f *Feed) Bind(scenes *scene.Store, styles *mapstyle.Store) {
	f.PublishRender(mapstyle.Resolve(styles.State()))
	f.PublishScene(scenes.State())

	unsubStyles := styles.Subscribe(func(st mapstyle.State) {
		f.PublishRender(mapstyle.Resolve(st))
	})
	unsubScenes := scenes.Subscribe(f.PublishScene)

	f.mu.Lock()
	f.unsubs = append(f.unsubs, unsubStyles, unsubScenes)
	f.mu.Unlock()
}

// PublishScene sends the displayed scene.
func (f *Feed) PublishScene(st scene.State) {
	if err := f.publish(TypeScene, scenePayload(st)); err != nil {
		f.log.Error().Err(err).Msg("Failed to publish scene")
	}
}

// PublishRender sends the active render configuration.
func (f *Feed) PublishRender(cfg mapstyle.RenderConfiguration) {
	if err := f.publish(TypeRender, renderPayload(cfg)); err != nil {
		f.log.Error().Err(err).Msg("Failed to publish render configuration")
	}
}

func (f *Feed) publish(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return fmt.Errorf("panofeed: %w", err)
	}
	f.conn.publish(msgType, data)
	return nil
}

// Close unbinds from the stores and closes the socket.
func (f *Feed) Close() error {
	f.mu.Lock()
	unsubs := f.unsubs
	f.unsubs = nil
	f.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
	return f.conn.close()
}
