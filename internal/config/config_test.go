package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
env:
  serviceName: storefront-test
  log:
    level: debug
http:
  port: 9090
mongo:
  uri: mongodb://mongo:27017
  database: shop
pricing:
  freeShippingThreshold: 5000
  flatShippingFee: 300
  taxRate: "0.2"
scan:
  tick: 10ms
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_ReadsYAMLAndAppliesDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "storefront-test", cfg.Env.ServiceName)
	assert.Equal(t, "debug", cfg.Env.Log.Level)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "shop", cfg.Mongo.Database)
	assert.Equal(t, int64(5000), cfg.Pricing.FreeShippingThreshold)
	assert.Equal(t, "0.2", cfg.Pricing.TaxRate)
	assert.Equal(t, 10*time.Millisecond, cfg.Scan.Tick)

	assert.Equal(t, 30, cfg.Scan.Countdown)
	assert.Equal(t, 1500*time.Millisecond, cfg.Chat.ReplyDelay)
	assert.Equal(t, "cart-updated", cfg.Kafka.Topics.CartUpdated)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://override:27017")
	t.Setenv("PRICING_TAXRATE", "0.05")
	t.Setenv("HTTP_PORT", "7070")

	cfg, err := LoadFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "mongodb://override:27017", cfg.Mongo.URI)
	assert.Equal(t, "0.05", cfg.Pricing.TaxRate)
	assert.Equal(t, 7070, cfg.HTTP.Port)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_UsesFlag(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	cfg, err := Load([]string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
}

func TestCanonicalizeEnvKey(t *testing.T) {
	existing := map[string]any{
		"pricing": map[string]any{"taxRate": "0.18", "flatShippingFee": 200},
		"mongo":   map[string]any{"uri": "x"},
	}

	assert.Equal(t, "pricing.taxRate", canonicalizeEnvKey("PRICING_TAXRATE", existing))
	assert.Equal(t, "pricing.flatShippingFee", canonicalizeEnvKey("PRICING_FLATSHIPPINGFEE", existing))
	assert.Equal(t, "mongo.uri", canonicalizeEnvKey("MONGO_URI", existing))
	assert.Equal(t, "unknown.key", canonicalizeEnvKey("UNKNOWN_KEY", existing))
}
