package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "http://localhost:8080/api", cfg.Upstream.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, DraftStoreRedis, cfg.Drafts.Store)
	assert.Equal(t, 2*time.Hour, cfg.Drafts.TTL)
	assert.Equal(t, time.Minute, cfg.Drafts.SubmitLockTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.Drafts.EditLockWait)
	assert.False(t, cfg.Drafts.EnforceDateOrder)
	assert.Equal(t, 3, cfg.Journal.Retries)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("UPSTREAM_BASE_URL", "https://school.example.com/api/")
	v.Set("DRAFT_STORE", "Memory")
	v.Set("DRAFT_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	v.Set("UPSTREAM_MAX_CONCURRENT_WRITES", 4)

	cfg := fromViper(v)

	assert.Equal(t, "https://school.example.com/api", cfg.Upstream.BaseURL)
	assert.Equal(t, DraftStoreMemory, cfg.Drafts.Store)
	assert.Equal(t, 2*time.Hour, cfg.Drafts.TTL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 4, cfg.Upstream.MaxConcurrentWrites)
}

func TestFromViperUnknownStoreFallsBackToRedis(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("DRAFT_STORE", "etcd")

	assert.Equal(t, DraftStoreRedis, fromViper(v).Drafts.Store)
}
