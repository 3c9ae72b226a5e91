// Package provider implements scene providers: an HTTP client for a scene
// lookup service and in-process providers for offline use.
package provider

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/streetside/panoview/internal/geo"
	"github.com/streetside/panoview/internal/scene"
)

// ErrNoScene is returned when no panorama exists near the coordinate.
var ErrNoScene = errors.New("no scene near coordinate")

// DefaultTimeout applies when the client is created without one.
const DefaultTimeout = 30 * time.Second

//go:embed scene.schema.json
var sceneSchemaData []byte

var sceneSchema = jsonschema.MustCompileString("scene.schema.json", string(sceneSchemaData))

// Client talks to a scene lookup service.
type Client struct {
	baseURL      string
	apiKey       string
	radiusMeters int
	httpClient   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRadius sets the search radius sent with lookups.
func WithRadius(meters int) Option {
	return func(c *Client) {
		c.radiusMeters = meters
	}
}

// New creates a new lookup client.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Healthcheck checks if the lookup service is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

type sceneResponse struct {
	ID         string    `json:"id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Heading    float64   `json:"heading"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Lookup finds the scene nearest c.
func (c *Client) Lookup(ctx context.Context, coord geo.Coordinate) (*scene.Scene, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(coord.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(coord.Longitude, 'f', -1, 64))
	if c.radiusMeters > 0 {
		q.Set("radius", strconv.Itoa(c.radiusMeters))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/scenes/lookup?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNoScene
	default:
		return nil, fmt.Errorf("lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup response: %w", err)
	}
	return decodeScene(body)
}

func decodeScene(body []byte) (*scene.Scene, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	if err := sceneSchema.Validate(raw); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			var messages []string
			collectErrors(verr, &messages)
			return nil, fmt.Errorf("invalid lookup response:\n%s", strings.Join(messages, "\n"))
		}
		return nil, fmt.Errorf("invalid lookup response: %w", err)
	}

	var r sceneResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	return &scene.Scene{
		ID:         r.ID,
		Coordinate: geo.Coordinate{Latitude: r.Latitude, Longitude: r.Longitude},
		Heading:    r.Heading,
		CapturedAt: r.CapturedAt,
	}, nil
}

func collectErrors(err *jsonschema.ValidationError, messages *[]string) {
	if err.InstanceLocation != "" || len(err.Causes) == 0 {
		*messages = append(*messages, fmt.Sprintf("- %s: %s", err.InstanceLocation, err.Message))
	}
	for _, cause := range err.Causes {
		collectErrors(cause, messages)
	}
}
