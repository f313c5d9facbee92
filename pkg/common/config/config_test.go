package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BUCKET", "")
	t.Setenv("PSEUD_ID_SALT", "")
	t.Setenv("PSEUD_ID_COLUMN", "")

	cfg := Load()
	assert.Equal(t, "curated/", cfg.CuratedPrefix)
	assert.Equal(t, "fhir/", cfg.FHIRPrefix)
	assert.Equal(t, "raw/", cfg.RawPrefix)
	assert.Equal(t, "demo-salt", cfg.PseudonymSalt)
	assert.Empty(t, cfg.IdentifierColumn)
	assert.False(t, cfg.FlatLayout())
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BUCKET", "rwd-bucket")
	t.Setenv("PSEUD_ID_SALT", "prod-salt")
	t.Setenv("OUTPUT_LAYOUT", "FLAT")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("FEATURE_CACHE_TTL", "90m")
	t.Setenv("LEDGER_ENABLED", "true")

	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "prod-salt", cfg.PseudonymSalt)
	assert.True(t, cfg.FlatLayout())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 90*time.Minute, cfg.FeatureCacheTTL)
	assert.True(t, cfg.LedgerEnabled)
}

func TestValidateRequiresBucket(t *testing.T) {
	t.Setenv("BUCKET", "")
	err := Load().Validate()
	require.ErrorIs(t, err, ErrMissingBucket)
}
