package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"provider": { "serverUrl": "http://scenes.local", "radiusMeters": 25 }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "http://scenes.local", viper.GetString("provider.serverUrl"))
	assert.Equal(t, 25, viper.GetInt("provider.radiusMeters"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{}`)
	require.NoError(t, Load(dir))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./logs", viper.GetString("logsDir"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "", viper.GetString("provider.serverUrl"))
	assert.Equal(t, "memory", viper.GetString("journal.type"))
	assert.Equal(t, 256, viper.GetInt("dispatcher.queueSize"))
	assert.Equal(t, "standard", viper.GetString("style.map"))
	assert.Equal(t, "realistic", viper.GetString("style.elevation"))
	assert.Equal(t, "default", viper.GetString("style.emphasis"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadOptional_MissingFileKeepsDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, LoadOptional(t.TempDir()))
	assert.Equal(t, "memory", GetJournalConfig().Type)
}

func TestLoadOptional_MalformedFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{ not json`)
	assert.Error(t, LoadOptional(dir))
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetProviderConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	pc := GetProviderConfig()
	assert.Equal(t, "", pc.ServerURL)
	assert.Equal(t, 10*time.Second, pc.Timeout)
	assert.Equal(t, 50, pc.RadiusMeters)
	assert.Equal(t, 400*time.Millisecond, pc.SyntheticLatency)
}

func TestGetJournalConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"journal": {
			"type": "postgres",
			"flushInterval": "10s",
			"postgres": { "host": "10.0.0.1", "port": "5433", "database": "scenes" }
		}
	}`)
	require.NoError(t, Load(dir))

	jc := GetJournalConfig()
	assert.Equal(t, "postgres", jc.Type)
	assert.Equal(t, 10*time.Second, jc.FlushInterval)
	assert.Equal(t, "10.0.0.1", jc.Postgres.Host)
	assert.Equal(t, "5433", jc.Postgres.Port)
	assert.Equal(t, "postgres", jc.Postgres.Username)
	assert.Equal(t, "scenes", jc.Postgres.Database)
}

func TestGetInfluxConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"influx": { "enabled": true, "url": "http://influx:8086", "token": "tok", "bucket": "b" }
	}`)
	require.NoError(t, Load(dir))

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "http://influx:8086", ic.URL)
	assert.Equal(t, "tok", ic.Token)
	assert.Equal(t, "panoview", ic.Org)
	assert.Equal(t, "b", ic.Bucket)
}

func TestGetGraylogConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{"graylog": {"enabled": true}}`)))

	gc := GetGraylogConfig()
	assert.True(t, gc.Enabled)
	assert.Equal(t, "localhost:12201", gc.Address)
}

func TestGetInitialStyle_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{"style": {"map": "hybrid", "emphasis": "muted"}}`)))

	sc := GetInitialStyle()
	assert.Equal(t, "hybrid", sc.Map)
	assert.Equal(t, "realistic", sc.Elevation)
	assert.Equal(t, "muted", sc.Emphasis)
}

func TestGetAnnotations_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	anns, err := GetAnnotations()
	require.NoError(t, err)
	require.Len(t, anns, 4)
	assert.Equal(t, "mitaka-station", anns[0].ID)
	assert.Equal(t, 35.7027, anns[0].Coordinate().Latitude)
}

func TestGetAnnotations_FromFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"annotations": [
			{ "title": "Tower", "latitude": 35.71, "longitude": 139.59 }
		]
	}`)
	require.NoError(t, Load(dir))

	anns, err := GetAnnotations()
	require.NoError(t, err)
	require.Len(t, anns, 1)
	assert.Equal(t, "", anns[0].ID)
	assert.Equal(t, "Tower", anns[0].Title)
	assert.Equal(t, 139.59, anns[0].Longitude)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("PANOVIEW_PROVIDER_APIKEY", "from-env")

	dir := writeConfig(t, `{ "provider": { "apiKey": "from-file" } }`)
	require.NoError(t, Load(dir))

	assert.Equal(t, "from-env", GetProviderConfig().APIKey)
}

func TestLoadEnvFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	// Registered with t.Setenv so the variable is restored afterwards.
	t.Setenv("PANOVIEW_INFLUX_TOKEN", "")
	require.NoError(t, os.Unsetenv("PANOVIEW_INFLUX_TOKEN"))

	dir := writeConfig(t, `{}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, EnvFileName), []byte("PANOVIEW_INFLUX_TOKEN=s3cret\n"), 0644))

	found, err := LoadEnvFile(dir)
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, Load(dir))
	assert.Equal(t, "s3cret", GetInfluxConfig().Token)
}

func TestLoadEnvFile_Missing(t *testing.T) {
	found, err := LoadEnvFile(t.TempDir())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetPanoramaConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{"panorama": {"enabled": true, "secret": "abc"}}`)))

	pc := GetPanoramaConfig()
	assert.True(t, pc.Enabled)
	assert.Equal(t, "ws://localhost:8765/feed", pc.URL)
	assert.Equal(t, "abc", pc.Secret)
}
