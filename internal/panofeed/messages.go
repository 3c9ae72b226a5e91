package panofeed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streetside/panoview/internal/mapstyle"
	"github.com/streetside/panoview/internal/scene"
)

// Message types.
const (
	TypeHello  = "hello"
	TypeRender = "render"
	TypeScene  = "scene"
)

// replayOrder is the order remembered messages are resent after a reconnect.
var replayOrder = []string{TypeHello, TypeRender, TypeScene}

// Envelope wraps every message on the wire.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HelloPayload opens a session on the viewer.
type HelloPayload struct {
	Session string `json:"session"`
	Version string `json:"version,omitempty"`
}

// RenderPayload is the render configuration the map is showing.
type RenderPayload struct {
	Base      string `json:"base"`
	Elevation string `json:"elevation"`
	Emphasis  string `json:"emphasis,omitempty"`
	Labels    bool   `json:"labels"`
}

// ScenePayload is the displayed scene. Scene is null when nothing is shown.
type ScenePayload struct {
	RequestID uint64     `json:"requestId"`
	Scene     *SceneInfo `json:"scene"`
}

// SceneInfo describes the scene on display.
type SceneInfo struct {
	ID         string    `json:"id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Heading    float64   `json:"heading"`
	CapturedAt time.Time `json:"capturedAt"`
}

func renderPayload(cfg mapstyle.RenderConfiguration) RenderPayload {
	return RenderPayload{
		Base:      string(cfg.Base),
		Elevation: string(cfg.Elevation),
		Emphasis:  string(cfg.Emphasis),
		Labels:    cfg.Labels,
	}
}

func scenePayload(st scene.State) ScenePayload {
	p := ScenePayload{RequestID: st.ProducingRequestID}
	if sc := st.Current; sc != nil {
		p.Scene = &SceneInfo{
			ID:         sc.ID,
			Latitude:   sc.Coordinate.Latitude,
			Longitude:  sc.Coordinate.Longitude,
			Heading:    sc.Heading,
			CapturedAt: sc.CapturedAt,
		}
	}
	return p
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}
