// Package influx reports settled scene lookups to InfluxDB.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/streetside/panoview/internal/config"
	"github.com/streetside/panoview/internal/scene"
)

// Measurement is the name of the points written per settled request.
const Measurement = "scene_lookup"

// RetentionSeconds is applied to buckets the reporter creates.
const RetentionSeconds = 60 * 60 * 24 * 90

// Reporter writes one point per settled scene request. When InfluxDB is
// unreachable at startup it writes line protocol to a gzipped backup file.
type Reporter struct {
	cfg    config.InfluxConfig
	log    zerolog.Logger
	client influxdb2.Client
	writer influxdb2_api.WriteAPI

	mu         sync.Mutex
	valid      bool
	backup     *gzip.Writer
	backupFile *os.File
}

// Connect creates a reporter for cfg.
func Connect(ctx context.Context, cfg config.InfluxConfig, log zerolog.Logger) (*Reporter, error) {
	if !cfg.Enabled {
		return nil, errors.New("influx.enabled is false")
	}

	r := &Reporter{
		cfg: cfg,
		log: log.With().Str("component", "influx").Logger(),
		client: influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
			influxdb2.DefaultOptions().
				SetBatchSize(500).
				SetFlushInterval(1000)),
	}

	running, err := r.client.Ping(ctx)
	if err != nil || !running {
		r.client.Close()
		r.client = nil
		if cfg.BackupPath == "" {
			return nil, fmt.Errorf("influxdb at %s unreachable and no backup path set: %v", cfg.URL, err)
		}
		if err := r.openBackup(); err != nil {
			return nil, err
		}
		r.log.Warn().Str("backupPath", cfg.BackupPath).Msg("InfluxDB unreachable, writing to backup file")
		return r, nil
	}

	if err := r.ensureBucket(ctx); err != nil {
		r.client.Close()
		return nil, err
	}

	r.writer = r.client.WriteAPI(cfg.Org, cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			r.log.Error().Err(writeErr).Str("bucket", cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(r.writer.Errors())

	r.valid = true
	r.log.Info().Str("url", cfg.URL).Str("bucket", cfg.Bucket).Msg("InfluxDB client initialized")
	return r, nil
}

func (r *Reporter) openBackup() error {
	file, err := os.OpenFile(r.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	r.backupFile = file
	r.backup = gzip.NewWriter(file)
	return nil
}

func (r *Reporter) ensureBucket(ctx context.Context) error {
	orgs := r.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, r.cfg.Org)
	if err != nil {
		r.log.Info().Str("org", r.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, r.cfg.Org)
		if err != nil {
			return fmt.Errorf("error creating organization %q: %w", r.cfg.Org, err)
		}
	}

	buckets := r.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, r.cfg.Bucket); err == nil {
		return nil
	}

	r.log.Info().Str("bucket", r.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = buckets.CreateBucketWithName(ctx, org, r.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: RetentionSeconds,
	})
	if err != nil {
		return fmt.Errorf("error creating bucket %q: %w", r.cfg.Bucket, err)
	}
	return nil
}

// Point converts a settled request to its InfluxDB point.
func Point(req scene.Request) *influxdb2_write.Point {
	ts := req.SettledAt
	if ts.IsZero() {
		ts = time.Now()
	}

	p := influxdb2_write.NewPointWithMeasurement(Measurement).
		AddTag("status", req.Status.String()).
		AddField("request_id", int64(req.ID)).
		AddField("latitude", req.Coordinate.Latitude).
		AddField("longitude", req.Coordinate.Longitude).
		AddField("latency_ms", req.Latency().Milliseconds()).
		SetTime(ts)
	if req.Scene != nil {
		p.AddField("scene_id", req.Scene.ID)
	}
	return p
}

// RequestSettled queues a point for req. WriteAPI batches in the
// background, so this does not wait on the network.
func (r *Reporter) RequestSettled(req scene.Request) {
	if err := r.writePoint(Point(req)); err != nil {
		r.log.Error().Err(err).Uint64("requestId", req.ID).Msg("Failed to report scene lookup")
	}
}

func (r *Reporter) writePoint(point *influxdb2_write.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.valid {
		r.writer.WritePoint(point)
		return nil
	}
	if r.backup == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := r.backup.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending points and releases the client or backup file.
func (r *Reporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.valid {
		r.writer.Flush()
		r.client.Close()
		r.valid = false
		return nil
	}
	if r.backup != nil {
		err := errors.Join(r.backup.Close(), r.backupFile.Close())
		r.backup = nil
		return err
	}
	return nil
}
