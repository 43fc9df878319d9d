package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "conversions.db", cfg.DatabasePath)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadSize)
	assert.Equal(t, 5, cfg.FreeDailyLimit)
	assert.Equal(t, 100, cfg.VipDailyLimit)
	assert.Equal(t, 1000, cfg.SvipDailyLimit)
	assert.Equal(t, 5*time.Minute, cfg.ListCacheTTL)
	assert.Equal(t, 10*time.Minute, cfg.DetailCacheTTL)
	assert.Equal(t, 200, cfg.TransformQueueSize)
	assert.True(t, cfg.ChargeFailedConversions)
	assert.Equal(t, 10, cfg.ConvertAwardPoints)
	assert.Equal(t, "ImageConvert", cfg.WatermarkText)
	assert.Contains(t, cfg.AllowedExtensions, "png")
	assert.Contains(t, cfg.AllowedExtensions, "webp")
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("FREE_DAILY_LIMIT", "3")
	t.Setenv("LIST_CACHE_TTL_SECONDS", "120")
	t.Setenv("CHARGE_FAILED_CONVERSIONS", "false")
	t.Setenv("ALLOWED_EXTENSIONS", " .PNG, jpg ,,webp ")
	t.Setenv("WATERMARK_TEXT", "MyBrand")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.FreeDailyLimit)
	assert.Equal(t, 2*time.Minute, cfg.ListCacheTTL)
	assert.False(t, cfg.ChargeFailedConversions)
	assert.Equal(t, []string{"png", "jpg", "webp"}, cfg.AllowedExtensions)
	assert.Equal(t, "MyBrand", cfg.WatermarkText)
}

func TestLoadConfigIgnoresInvalidValues(t *testing.T) {
	t.Setenv("FREE_DAILY_LIMIT", "-2")
	t.Setenv("VIP_DAILY_LIMIT", "not-a-number")
	t.Setenv("CHARGE_FAILED_CONVERSIONS", "sometimes")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.FreeDailyLimit)
	assert.Equal(t, 100, cfg.VipDailyLimit)
	assert.True(t, cfg.ChargeFailedConversions)
}

func TestIsAllowedExtension(t *testing.T) {
	cfg := Config{AllowedExtensions: []string{"jpg", "png"}}

	assert.True(t, cfg.IsAllowedExtension(".jpg"))
	assert.True(t, cfg.IsAllowedExtension("PNG"))
	assert.True(t, cfg.IsAllowedExtension(".PNG"))
	assert.False(t, cfg.IsAllowedExtension(".gif"))
	assert.False(t, cfg.IsAllowedExtension(""))
}
