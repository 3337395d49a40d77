package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.HTTP.Port)
	require.Equal(t, int64(262144), cfg.HTTP.RequestMaxBytes)
	require.Equal(t, 6, cfg.Pipeline.MaxImages)
	require.Equal(t, 5.0, cfg.RateLimit.PerSec)
	require.Equal(t, 10.0, cfg.RateLimit.Capacity)
	require.Equal(t, 64, cfg.Jobs.QueueCapacity)
	require.Equal(t, 3600, cfg.Idempotency.TTLSecs)
	require.Equal(t, "demo-org:demo-key", cfg.Auth.DemoAPIKeys)
	require.Equal(t, "SANDBOX", cfg.Ebay.Env)
}

func TestLoadAppliesFloors(t *testing.T) {
	cfg, err := Load([]string{
		"--rate.per-sec=-1",
		"--rate.capacity=0",
		"--pipeline.max-images=0",
		"--jobs.queue-capacity=-5",
		"--http.request-max-bytes=0",
	})
	require.NoError(t, err)

	require.Equal(t, 5.0, cfg.RateLimit.PerSec)
	require.Equal(t, 10.0, cfg.RateLimit.Capacity)
	require.Equal(t, 6, cfg.Pipeline.MaxImages)
	require.Equal(t, 64, cfg.Jobs.QueueCapacity)
	require.Equal(t, int64(262144), cfg.HTTP.RequestMaxBytes)
}

func TestLoadFlagOverrides(t *testing.T) {
	cfg, err := Load([]string{"--http.port=9000", "--ebay.env=PROD"})
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.HTTP.Port)
	require.Equal(t, "PROD", cfg.Ebay.Env)
}

func TestImageAllowlist(t *testing.T) {
	var cfg Config
	require.Nil(t, cfg.ImageAllowlist())

	cfg.Pipeline.DomainAllowlist = "CDN.Example.com, images.example.com\nother.net"
	require.Equal(t, []string{
		"cdn.example.com",
		"images.example.com",
		"other.net",
	}, cfg.ImageAllowlist())
}
