package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// DefaultRPCEndpoint is the local validator started by `anchor test` / `solana-test-validator`.
const DefaultRPCEndpoint = "http://127.0.0.1:8899"

// Config holds all application configuration loaded from environment variables.
// Everything has a usable default so the CLI works against a local validator
// with no environment at all; optional integrations are disabled when empty.
type Config struct {
	// Logging
	LogLevel string

	// Solana RPC
	RPCEndpoint string

	// Submission and confirmation
	SendMaxRetries      uint
	SkipPreflight       bool
	ConfirmPollInterval time.Duration
	ConfirmMaxAttempts  int
	ConfirmCommitment   string // "confirmed" or "finalized"
	PreflightCommitment string
	BlockhashCommitment string

	// Test setup
	AirdropLamports    uint64
	AirdropAttempts    int
	AirdropSettleDelay time.Duration
	PayerKeypairPath   string
	PayerPrivateKey    string

	// Optional integrations
	DatabaseURL string
	NATSURL     string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// HTTP
	ServerAddr  string
	MetricsAddr string
}

// Load reads configuration from environment variables and validates it.
// All validation errors are collected and returned together.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.RPCEndpoint = getEnvOrDefault("RPC_ENDPOINT", DefaultRPCEndpoint)

	maxRetries, err := parseInt("SEND_MAX_RETRIES", 3)
	if err != nil {
		errs = append(errs, err)
	} else if maxRetries < 0 {
		errs = append(errs, fmt.Errorf("SEND_MAX_RETRIES must not be negative"))
	} else {
		cfg.SendMaxRetries = uint(maxRetries)
	}

	skip, err := parseBool("SKIP_PREFLIGHT", false)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.SkipPreflight = skip

	interval, err := parseDuration("CONFIRM_POLL_INTERVAL", "1s")
	if err != nil {
		errs = append(errs, err)
	}
	cfg.ConfirmPollInterval = interval

	attempts, err := parseInt("CONFIRM_MAX_ATTEMPTS", 30)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.ConfirmMaxAttempts = attempts

	cfg.ConfirmCommitment = getEnvOrDefault("CONFIRM_COMMITMENT", "confirmed")
	cfg.PreflightCommitment = getEnvOrDefault("PREFLIGHT_COMMITMENT", "confirmed")
	cfg.BlockhashCommitment = getEnvOrDefault("BLOCKHASH_COMMITMENT", "finalized")

	lamports, err := parseUint64("AIRDROP_LAMPORTS", 2_000_000_000)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.AirdropLamports = lamports

	airdropAttempts, err := parseInt("AIRDROP_ATTEMPTS", 1)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.AirdropAttempts = airdropAttempts

	settle, err := parseDuration("AIRDROP_SETTLE_DELAY", "1s")
	if err != nil {
		errs = append(errs, err)
	}
	cfg.AirdropSettleDelay = settle

	cfg.PayerKeypairPath = os.Getenv("PAYER_KEYPAIR_PATH")
	cfg.PayerPrivateKey = os.Getenv("PAYER_PRIVATE_KEY")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "txconfirm-submissions")

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.RPCEndpoint == "" {
		errs = append(errs, fmt.Errorf("RPCEndpoint is required"))
	} else if u, err := url.Parse(c.RPCEndpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("RPCEndpoint must be an http(s) URL, got %q", c.RPCEndpoint))
	}

	if c.ConfirmPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval must be positive"))
	}

	if c.ConfirmMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmMaxAttempts must be positive"))
	}

	if c.ConfirmCommitment != "confirmed" && c.ConfirmCommitment != "finalized" {
		errs = append(errs, fmt.Errorf("ConfirmCommitment must be 'confirmed' or 'finalized', got %q", c.ConfirmCommitment))
	}

	for name, v := range map[string]string{
		"PreflightCommitment": c.PreflightCommitment,
		"BlockhashCommitment": c.BlockhashCommitment,
	} {
		if v != "processed" && v != "confirmed" && v != "finalized" {
			errs = append(errs, fmt.Errorf("%s must be processed, confirmed or finalized, got %q", name, v))
		}
	}

	if c.AirdropAttempts < 0 {
		errs = append(errs, fmt.Errorf("AirdropAttempts must not be negative"))
	}

	if c.AirdropSettleDelay < 0 {
		errs = append(errs, fmt.Errorf("AirdropSettleDelay must not be negative"))
	}

	if c.PayerKeypairPath != "" && c.PayerPrivateKey != "" {
		errs = append(errs, fmt.Errorf("PayerKeypairPath and PayerPrivateKey are mutually exclusive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// ConfirmTimeout is the wall-clock bound of one confirmation wait.
func (c *Config) ConfirmTimeout() time.Duration {
	return c.ConfirmPollInterval * time.Duration(c.ConfirmMaxAttempts)
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseUint64(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid unsigned integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}
