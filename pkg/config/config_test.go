package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("EXTRACTION_FALLBACK_ENABLED", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Extraction.ConfidenceFloor)
	assert.False(t, cfg.Extraction.FallbackEnabled)
	assert.Equal(t, 1500, cfg.Extraction.EmailTwoStepThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.Extraction.ReparseDelay)
	assert.Equal(t, 2, cfg.Dedup.WindowDays)
	assert.Equal(t, 0.8, cfg.Dedup.MerchantSimilarity)
	assert.Equal(t, 7, cfg.Recurring.UpcomingDays)
	assert.Equal(t, "0 3 * * *", cfg.Recurring.RebuildSchedule)
	assert.Equal(t, "INR", cfg.Extraction.HomeCurrency)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("EXTRACTION_FALLBACK_ENABLED", "true")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("GEMINI_MODEL", "gemini-2.0-flash")
	t.Setenv("GEMINI_TIMEOUT", "5s")
	t.Setenv("DEDUP_MERCHANT_SIMILARITY", "0.9")
	t.Setenv("SYNC_WORKERS", "not-a-number")

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.Extraction.FallbackEnabled)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, 5*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, 0.9, cfg.Dedup.MerchantSimilarity)
	assert.Equal(t, 4, cfg.Extraction.SyncWorkers)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"fallback without key", map[string]string{"EXTRACTION_FALLBACK_ENABLED": "true", "GEMINI_API_KEY": "", "GEMINI_MODEL": "m"}},
		{"fallback without model", map[string]string{"EXTRACTION_FALLBACK_ENABLED": "true", "GEMINI_API_KEY": "k", "GEMINI_MODEL": ""}},
		{"floor above one", map[string]string{"EXTRACTION_CONFIDENCE_FLOOR": "1.5"}},
		{"zero similarity", map[string]string{"DEDUP_MERCHANT_SIMILARITY": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := fromEnv()
			assert.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "ledger", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=ledger sslmode=disable", c.DSN())
}
