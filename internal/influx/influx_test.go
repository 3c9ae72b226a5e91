package influx

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetside/panoview/internal/config"
	"github.com/streetside/panoview/internal/geo"
	"github.com/streetside/panoview/internal/scene"
)

var settled = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func resolvedRequest() scene.Request {
	return scene.Request{
		ID:         7,
		Coordinate: geo.Coordinate{Latitude: 35.7027, Longitude: 139.561},
		Status:     scene.Resolved,
		IssuedAt:   settled.Add(-250 * time.Millisecond),
		SettledAt:  settled,
		Scene:      &scene.Scene{ID: "pano-7"},
	}
}

func TestPoint(t *testing.T) {
	line := influxdb2_write.PointToLineProtocol(Point(resolvedRequest()), time.Nanosecond)

	assert.True(t, strings.HasPrefix(line, "scene_lookup,status=resolved "), line)
	assert.Contains(t, line, "request_id=7i")
	assert.Contains(t, line, "latency_ms=250i")
	assert.Contains(t, line, "latitude=35.7027")
	assert.Contains(t, line, `scene_id="pano-7"`)
	assert.True(t, strings.HasSuffix(line, " 1792400400000000000\n"), line)
}

func TestPoint_Superseded(t *testing.T) {
	req := scene.Request{ID: 1, Status: scene.Superseded, IssuedAt: settled, SettledAt: settled}
	line := influxdb2_write.PointToLineProtocol(Point(req), time.Nanosecond)

	assert.Contains(t, line, "status=superseded")
	assert.NotContains(t, line, "scene_id")
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(context.Background(), config.InfluxConfig{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestConnect_UnreachableWithoutBackup(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := Connect(context.Background(), config.InfluxConfig{Enabled: true, URL: url}, zerolog.Nop())
	assert.Error(t, err)
}

func TestReporter_BackupFile(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	path := filepath.Join(t.TempDir(), "influx-backup.lp.gz")
	r, err := Connect(context.Background(), config.InfluxConfig{
		Enabled:    true,
		URL:        url,
		BackupPath: path,
	}, zerolog.Nop())
	require.NoError(t, err)

	r.RequestSettled(resolvedRequest())
	require.NoError(t, r.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	assert.Contains(t, string(data), "scene_lookup,status=resolved")
	assert.Contains(t, string(data), "request_id=7i")
}

type fakeInflux struct {
	mu     sync.Mutex
	writes []string
}

func (f *fakeInflux) handler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/orgs":
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"orgs":[{"id":"0000000000000001","name":"panoview"}]}`)
	case "/api/v2/buckets":
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"buckets":[{"id":"0000000000000002","name":"scene_lookups","orgID":"0000000000000001","retentionRules":[]}]}`)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.writes = append(f.writes, string(body))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeInflux) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "\n")
}

func TestReporter_WritesToInflux(t *testing.T) {
	fake := &fakeInflux{}
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	defer server.Close()

	r, err := Connect(context.Background(), config.InfluxConfig{
		Enabled: true,
		URL:     server.URL,
		Token:   "tok",
		Org:     "panoview",
		Bucket:  "scene_lookups",
	}, zerolog.Nop())
	require.NoError(t, err)

	r.RequestSettled(resolvedRequest())
	require.NoError(t, r.Close())

	require.Eventually(t, func() bool {
		return strings.Contains(fake.body(), "scene_lookup,status=resolved")
	}, 2*time.Second, 10*time.Millisecond)
}
