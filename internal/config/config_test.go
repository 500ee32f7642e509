package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSV(t *testing.T) {
	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"a:9092", "b:9092"}, CSV(" a:9092, ,b:9092 "))
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("STORE_TEST_INT", "42")
	t.Setenv("STORE_TEST_BAD_INT", "x")
	t.Setenv("STORE_TEST_BOOL", "true")
	t.Setenv("STORE_TEST_DUR", "90s")

	assert.Equal(t, 42, EnvIntDefault("STORE_TEST_INT", 1))
	assert.Equal(t, 1, EnvIntDefault("STORE_TEST_BAD_INT", 1))
	assert.True(t, EnvBoolDefault("STORE_TEST_BOOL", false))
	assert.Equal(t, 90*time.Second, EnvDurationDefault("STORE_TEST_DUR", time.Second))
	assert.Equal(t, "fallback", EnvDefault("STORE_TEST_MISSING", "fallback"))
}

func TestLoad(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SESSION_SECRET", "s3cret")

	cfg := Load()
	require.Equal(t, 9090, cfg.ServerPort)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, []byte("s3cret"), cfg.SessionSecret)
	require.Equal(t, "products", cfg.ESIndex)
	require.Equal(t, 30*time.Minute, cfg.CartIdleTTL)
}
