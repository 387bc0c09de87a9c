package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAYMENTS_METHODS", "card, sepa_debit")
	t.Setenv("LESSONS_TIMEZONE", "Europe/Istanbul")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 5, cfg.Lessons.PageSize)
	assert.True(t, cfg.Lessons.GuardCapacity)
	assert.Equal(t, "usd", cfg.Payments.Currency)
	assert.Equal(t, []string{"card", "sepa_debit"}, cfg.Payments.Methods)
	assert.Equal(t, 5*time.Minute, cfg.Cache.CatalogTTL)
	assert.Equal(t, "Europe/Istanbul", cfg.Lessons.Location().String())
}

func TestLessonsLocationFallback(t *testing.T) {
	assert.Equal(t, time.UTC, LessonsConfig{Timezone: "Nowhere/Invalid"}.Location())
	assert.Equal(t, time.UTC, LessonsConfig{}.Location())
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("bogus", time.Minute))
	assert.Equal(t, 3*time.Second, parseDuration("3s", time.Minute))
}
