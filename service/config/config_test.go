package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cleanupEnv()
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, DefaultRPCEndpoint, cfg.RPCEndpoint)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, uint(3), cfg.SendMaxRetries)
	assert.False(t, cfg.SkipPreflight)
	assert.Equal(t, time.Second, cfg.ConfirmPollInterval)
	assert.Equal(t, 30, cfg.ConfirmMaxAttempts)
	assert.Equal(t, "confirmed", cfg.ConfirmCommitment)
	assert.Equal(t, "finalized", cfg.BlockhashCommitment)
	assert.Equal(t, uint64(2_000_000_000), cfg.AirdropLamports)
	assert.Equal(t, 1, cfg.AirdropAttempts)
	assert.Equal(t, time.Second, cfg.AirdropSettleDelay)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "txconfirm-submissions", cfg.TemporalTaskQueue)
	assert.Equal(t, 30*time.Second, cfg.ConfirmTimeout())
}

func TestLoad_CustomValues(t *testing.T) {
	cleanupEnv()
	os.Setenv("RPC_ENDPOINT", "https://api.devnet.solana.com")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("SEND_MAX_RETRIES", "5")
	os.Setenv("SKIP_PREFLIGHT", "true")
	os.Setenv("CONFIRM_POLL_INTERVAL", "500ms")
	os.Setenv("CONFIRM_MAX_ATTEMPTS", "10")
	os.Setenv("CONFIRM_COMMITMENT", "finalized")
	os.Setenv("AIRDROP_LAMPORTS", "1000")
	os.Setenv("AIRDROP_ATTEMPTS", "3")
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("NATS_URL", "nats://nats.example.com:4222")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://api.devnet.solana.com", cfg.RPCEndpoint)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, uint(5), cfg.SendMaxRetries)
	assert.True(t, cfg.SkipPreflight)
	assert.Equal(t, 500*time.Millisecond, cfg.ConfirmPollInterval)
	assert.Equal(t, 10, cfg.ConfirmMaxAttempts)
	assert.Equal(t, "finalized", cfg.ConfirmCommitment)
	assert.Equal(t, uint64(1000), cfg.AirdropLamports)
	assert.Equal(t, 3, cfg.AirdropAttempts)
	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
	assert.Equal(t, 5*time.Second, cfg.ConfirmTimeout())
}

func TestLoad_InvalidPollInterval(t *testing.T) {
	cleanupEnv()
	os.Setenv("CONFIRM_POLL_INTERVAL", "invalid")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_NegativeMaxRetries(t *testing.T) {
	cleanupEnv()
	os.Setenv("SEND_MAX_RETRIES", "-1")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "SEND_MAX_RETRIES must not be negative")
}

func TestLoad_InvalidBool(t *testing.T) {
	cleanupEnv()
	os.Setenv("SKIP_PREFLIGHT", "maybe")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid boolean")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RPCEndpoint:         DefaultRPCEndpoint,
			ConfirmPollInterval: time.Second,
			ConfirmMaxAttempts:  30,
			ConfirmCommitment:   "confirmed",
			PreflightCommitment: "confirmed",
			BlockhashCommitment: "finalized",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.RPCEndpoint = "" },
			wantErr: "RPCEndpoint is required",
		},
		{
			name:    "non http endpoint",
			mutate:  func(c *Config) { c.RPCEndpoint = "ws://127.0.0.1:8900" },
			wantErr: "must be an http(s) URL",
		},
		{
			name:    "zero interval",
			mutate:  func(c *Config) { c.ConfirmPollInterval = 0 },
			wantErr: "ConfirmPollInterval must be positive",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.ConfirmMaxAttempts = 0 },
			wantErr: "ConfirmMaxAttempts must be positive",
		},
		{
			name:    "processed is not a confirmation level",
			mutate:  func(c *Config) { c.ConfirmCommitment = "processed" },
			wantErr: "ConfirmCommitment must be 'confirmed' or 'finalized'",
		},
		{
			name:    "unknown blockhash commitment",
			mutate:  func(c *Config) { c.BlockhashCommitment = "max" },
			wantErr: "BlockhashCommitment must be processed, confirmed or finalized",
		},
		{
			name:    "negative airdrop attempts",
			mutate:  func(c *Config) { c.AirdropAttempts = -1 },
			wantErr: "AirdropAttempts must not be negative",
		},
		{
			name: "both payer sources",
			mutate: func(c *Config) {
				c.PayerKeypairPath = "/tmp/id.json"
				c.PayerPrivateKey = "secret"
			},
			wantErr: "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	cleanupEnv()
	os.Setenv("CONFIRM_MAX_ATTEMPTS", "zero")
	defer cleanupEnv()

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	cleanupEnv()
	defer cleanupEnv()

	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}

// cleanupEnv clears all environment variables used in tests
func cleanupEnv() {
	for _, key := range []string{
		"LOG_LEVEL",
		"RPC_ENDPOINT",
		"SEND_MAX_RETRIES",
		"SKIP_PREFLIGHT",
		"CONFIRM_POLL_INTERVAL",
		"CONFIRM_MAX_ATTEMPTS",
		"CONFIRM_COMMITMENT",
		"PREFLIGHT_COMMITMENT",
		"BLOCKHASH_COMMITMENT",
		"AIRDROP_LAMPORTS",
		"AIRDROP_ATTEMPTS",
		"AIRDROP_SETTLE_DELAY",
		"PAYER_KEYPAIR_PATH",
		"PAYER_PRIVATE_KEY",
		"DATABASE_URL",
		"NATS_URL",
		"TEMPORAL_HOST",
		"TEMPORAL_NAMESPACE",
		"TEMPORAL_TASK_QUEUE",
		"SERVER_ADDR",
		"METRICS_ADDR",
	} {
		os.Unsetenv(key)
	}
}
