package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LIVEKIT_URL", "")
	t.Setenv("NEXT_PUBLIC_LIVEKIT_URL", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("VOICE_OUTPUT_DIR", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("VOICE_CONNECT_TIMEOUT", "")

	cfg := Load()

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "mongo", cfg.StoreDriver)
	assert.Equal(t, 6*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Empty(t, cfg.LiveKit.URL)
	assert.Equal(t, "voice-out", cfg.VoiceOutputDir)
	assert.Equal(t, 15*time.Second, cfg.VoiceConnectTimeout)
}

func TestLoad_PublicURLFallsBackToServerURL(t *testing.T) {
	t.Setenv("LIVEKIT_URL", "wss://lk.example.com")
	t.Setenv("NEXT_PUBLIC_LIVEKIT_URL", "")

	cfg := Load()

	assert.Equal(t, "wss://lk.example.com", cfg.LiveKit.PublicURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("AUDIT_WORKERS", "nope")

	cfg := Load()

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 4, cfg.AuditWorkers)
}
