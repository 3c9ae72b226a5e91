package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/streetside/panoview/internal/geo"
)

// FileName is the config file looked up in the config directory.
const FileName = "panoview.cfg.json"

// EnvFileName is an optional dotenv file next to the config file.
const EnvFileName = ".env"

// EnvPrefix prefixes environment overrides, e.g. PANOVIEW_PROVIDER_APIKEY
// overrides provider.apiKey.
const EnvPrefix = "PANOVIEW"

// ProviderConfig holds scene provider settings. An empty ServerURL selects
// the synthetic offline provider.
type ProviderConfig struct {
	ServerURL    string        `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey       string        `json:"apiKey" mapstructure:"apiKey"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	RadiusMeters int           `json:"radiusMeters" mapstructure:"radiusMeters"`
	// SyntheticLatency delays synthetic lookups to mimic network latency.
	SyntheticLatency time.Duration `json:"syntheticLatency" mapstructure:"syntheticLatency"`
}

// PostgresConfig holds connection settings for the postgres journal.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// JournalConfig selects and configures the request journal backend.
type JournalConfig struct {
	Type          string         `json:"type" mapstructure:"type"`
	FlushInterval time.Duration  `json:"flushInterval" mapstructure:"flushInterval"`
	Capacity      int            `json:"capacity" mapstructure:"capacity"`
	SQLitePath    string         `json:"sqlitePath" mapstructure:"sqlitePath"`
	Postgres      PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// InfluxConfig holds InfluxDB lookup telemetry settings.
type InfluxConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Token   string `json:"token" mapstructure:"token"`
	Org     string `json:"org" mapstructure:"org"`
	Bucket  string `json:"bucket" mapstructure:"bucket"`

	// BackupPath receives gzipped line protocol while InfluxDB is unreachable.
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// GraylogConfig holds GELF logging settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// PanoramaConfig holds the remote panorama viewer connection.
type PanoramaConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Secret  string `json:"secret" mapstructure:"secret"`
}

// StyleConfig is the style selection in effect at startup.
type StyleConfig struct {
	Map       string `json:"map" mapstructure:"map"`
	Elevation string `json:"elevation" mapstructure:"elevation"`
	Emphasis  string `json:"emphasis" mapstructure:"emphasis"`
}

// AnnotationConfig describes a point of interest shown on the map.
type AnnotationConfig struct {
	ID        string  `json:"id" mapstructure:"id"`
	Title     string  `json:"title" mapstructure:"title"`
	Latitude  float64 `json:"latitude" mapstructure:"latitude"`
	Longitude float64 `json:"longitude" mapstructure:"longitude"`
}

// Coordinate returns the annotation position.
func (a AnnotationConfig) Coordinate() geo.Coordinate {
	return geo.Coordinate{Latitude: a.Latitude, Longitude: a.Longitude}
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("provider.serverUrl", "")
	viper.SetDefault("provider.apiKey", "")
	viper.SetDefault("provider.timeout", "10s")
	viper.SetDefault("provider.radiusMeters", 50)
	viper.SetDefault("provider.syntheticLatency", "400ms")

	viper.SetDefault("journal.type", "memory")
	viper.SetDefault("journal.flushInterval", "2s")
	viper.SetDefault("journal.capacity", 256)
	viper.SetDefault("journal.sqlitePath", "./panoview_journal.db")
	viper.SetDefault("journal.postgres.host", "localhost")
	viper.SetDefault("journal.postgres.port", "5432")
	viper.SetDefault("journal.postgres.username", "postgres")
	viper.SetDefault("journal.postgres.password", "postgres")
	viper.SetDefault("journal.postgres.database", "panoview")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "panoview")
	viper.SetDefault("influx.bucket", "scene_lookups")
	viper.SetDefault("influx.backupPath", "")

	viper.SetDefault("panorama.enabled", false)
	viper.SetDefault("panorama.url", "ws://localhost:8765/feed")
	viper.SetDefault("panorama.secret", "")

	viper.SetDefault("dispatcher.queueSize", 256)

	viper.SetDefault("style.map", "standard")
	viper.SetDefault("style.elevation", "realistic")
	viper.SetDefault("style.emphasis", "default")

	viper.SetDefault("annotations", []map[string]any{
		{"id": "mitaka-station", "title": "Mitaka Station", "latitude": 35.7027, "longitude": 139.5606},
		{"id": "inokashira-park", "title": "Inokashira Park", "latitude": 35.7000, "longitude": 139.5800},
		{"id": "ghibli-museum", "title": "Ghibli Museum", "latitude": 35.6962, "longitude": 139.5704},
		{"id": "kichijoji-station", "title": "Kichijoji Station", "latitude": 35.7031, "longitude": 139.5797},
	})
}

// Load reads configuration from the JSON file in configDir and sets default values.
func Load(configDir string) error {
	setDefaults()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// LoadOptional is Load, but a missing config file leaves the defaults in place.
func LoadOptional(configDir string) error {
	err := Load(configDir)
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

// LoadEnvFile copies configDir/.env into the process environment. Variables
// that are already set are left alone. It reports whether a file was found.
func LoadEnvFile(configDir string) (bool, error) {
	path := filepath.Join(configDir, EnvFileName)
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("error reading %s: %w", path, err)
	}
	return true, nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetProviderConfig returns the scene provider settings.
func GetProviderConfig() ProviderConfig {
	return ProviderConfig{
		ServerURL:        viper.GetString("provider.serverUrl"),
		APIKey:           viper.GetString("provider.apiKey"),
		Timeout:          viper.GetDuration("provider.timeout"),
		RadiusMeters:     viper.GetInt("provider.radiusMeters"),
		SyntheticLatency: viper.GetDuration("provider.syntheticLatency"),
	}
}

// GetJournalConfig returns the request journal settings.
func GetJournalConfig() JournalConfig {
	return JournalConfig{
		Type:          viper.GetString("journal.type"),
		FlushInterval: viper.GetDuration("journal.flushInterval"),
		Capacity:      viper.GetInt("journal.capacity"),
		SQLitePath:    viper.GetString("journal.sqlitePath"),
		Postgres: PostgresConfig{
			Host:     viper.GetString("journal.postgres.host"),
			Port:     viper.GetString("journal.postgres.port"),
			Username: viper.GetString("journal.postgres.username"),
			Password: viper.GetString("journal.postgres.password"),
			Database: viper.GetString("journal.postgres.database"),
		},
	}
}

// GetInfluxConfig returns the InfluxDB telemetry settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled: viper.GetBool("influx.enabled"),
		URL:     viper.GetString("influx.url"),
		Token:   viper.GetString("influx.token"),
		Org:     viper.GetString("influx.org"),
		Bucket:  viper.GetString("influx.bucket"),

		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetGraylogConfig returns the GELF logging settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetPanoramaConfig returns the remote panorama viewer settings.
func GetPanoramaConfig() PanoramaConfig {
	return PanoramaConfig{
		Enabled: viper.GetBool("panorama.enabled"),
		URL:     viper.GetString("panorama.url"),
		Secret:  viper.GetString("panorama.secret"),
	}
}

// GetInitialStyle returns the style selection applied at startup.
func GetInitialStyle() StyleConfig {
	return StyleConfig{
		Map:       viper.GetString("style.map"),
		Elevation: viper.GetString("style.elevation"),
		Emphasis:  viper.GetString("style.emphasis"),
	}
}

// GetAnnotations decodes the configured points of interest.
func GetAnnotations() ([]AnnotationConfig, error) {
	var out []AnnotationConfig
	if err := viper.UnmarshalKey("annotations", &out); err != nil {
		return nil, fmt.Errorf("decoding annotations: %w", err)
	}
	return out, nil
}
