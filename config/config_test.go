package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigJSONAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "cfg.json", `{"log_store":{"uri":"/var/lib/patricia/log.db"}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, defaultEntityIterableCacheSize, cfg.CacheSize())
	require.Equal(t, defaultEntityIterableCacheThreadCount, cfg.ThreadCount())
	require.Equal(t, defaultCachingTimeout, cfg.CachingTimeout())
	require.Equal(t, path, cfg.ConfigFilepath())
}

func TestLoadConfigYAMLOverridesDefaults(t *testing.T) {
	body := "log_store:\n  uri: /data/log.db\nentityIterableCacheSize: 42\nisCachingDisabled: true\n"
	path := writeConfig(t, "cfg.yaml", body)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 42, cfg.CacheSize())
	require.True(t, cfg.IsCachingDisabled)
}

func TestLoadConfigRejectsUnknownExtension(t *testing.T) {
	path := writeConfig(t, "cfg.txt", `{}`)
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigRejectsMissingLogStoreURI(t *testing.T) {
	path := writeConfig(t, "cfg.json", `{}`)
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigRejectsRemoteLogStoreURI(t *testing.T) {
	path := writeConfig(t, "cfg.json", `{"log_store":{"uri":"https://example.com/log.db"}}`)
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestValidateRejectsStartTimeoutLongerThanCachingTimeout(t *testing.T) {
	cfg := &Config{LogStore: LogStoreConfig{URI: "/tmp/log.db"}}
	cfg.ApplyDefaults()
	big := uint64(60_000)
	cfg.EntityIterableCacheStartCachingTimeoutMs = &big

	err := cfg.Validate()
	require.Error(t, err)
}

func TestDurationAccessorsConvertMillisecondFields(t *testing.T) {
	cfg := &Config{LogStore: LogStoreConfig{URI: "/tmp/log.db"}}
	cfg.ApplyDefaults()
	ms := uint64(2500)
	cfg.EntityIterableCacheDeferredDelayMs = &ms

	require.Equal(t, int64(2500), cfg.DeferredDelay().Milliseconds())
}
