// Package config loads server configuration from an optional TOML file,
// a .env file, and OPX_* environment variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// duration wraps time.Duration for TOML decoding ("30s", "5m").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig `toml:"server"`
	Store    StoreConfig  `toml:"store"`
	Market   MarketConfig `toml:"market"`
	Access   AccessConfig `toml:"access"`
	LogLevel string       `toml:"log_level"`
}

// ServerConfig covers the HTTP listener.
type ServerConfig struct {
	Port           int      `toml:"port"`
	RequestTimeout duration `toml:"request_timeout"`
}

// StoreConfig covers persistence. An empty DatabaseURL selects the
// in-memory store; an empty RedisURL disables the read-through cache.
type StoreConfig struct {
	DatabaseURL string   `toml:"database_url"`
	RedisURL    string   `toml:"redis_url"`
	CacheTTL    duration `toml:"cache_ttl"`
}

// MarketConfig carries the launch economic parameters, in base units of
// the settlement token where monetary.
type MarketConfig struct {
	Treasury              string `toml:"treasury"`
	QuestionCreationFee   int64  `toml:"question_creation_fee"`
	AnswerProposalStake   int64  `toml:"answer_proposal_stake"`
	PlatformFeeBps        int64  `toml:"platform_fee_bps"`
	CreatorFeeBps         int64  `toml:"creator_fee_bps"`
	MaxAnswersPerQuestion int    `toml:"max_answers_per_question"`
}

// AccessConfig lists the accounts granted capabilities at startup.
type AccessConfig struct {
	Moderators []string `toml:"moderators"`
	Admins     []string `toml:"admins"`
}

// Defaults returns the built-in configuration: in-memory store, default
// launch economics, port 8080.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           8080,
			RequestTimeout: duration{30 * time.Second},
		},
		Store: StoreConfig{
			CacheTTL: duration{30 * time.Second},
		},
		Market: MarketConfig{
			Treasury:              "treasury",
			QuestionCreationFee:   2_000_000,
			AnswerProposalStake:   5_000_000,
			PlatformFeeBps:        150,
			CreatorFeeBps:         50,
			MaxAnswersPerQuestion: 10,
		},
		LogLevel: "info",
	}
}

// Load reads the TOML file at path (skipped when path is empty), merges it
// on top of the defaults, loads a .env file if present, and applies OPX_*
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the engine does not validate itself.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Market.Treasury == "" {
		return fmt.Errorf("treasury account is required")
	}
	return nil
}

// applyEnvOverrides reads well-known OPX_* environment variables and
// overwrites the corresponding fields when a variable is set. This lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// PORT is honored for platform compatibility (Heroku-style).
	setInt(&cfg.Server.Port, "PORT")
	setInt(&cfg.Server.Port, "OPX_PORT")
	setDuration(&cfg.Server.RequestTimeout, "OPX_REQUEST_TIMEOUT")

	setStr(&cfg.Store.DatabaseURL, "DATABASE_URL")
	setStr(&cfg.Store.DatabaseURL, "OPX_DATABASE_URL")
	setStr(&cfg.Store.RedisURL, "REDIS_URL")
	setStr(&cfg.Store.RedisURL, "OPX_REDIS_URL")
	setDuration(&cfg.Store.CacheTTL, "OPX_CACHE_TTL")

	setStr(&cfg.Market.Treasury, "OPX_TREASURY")
	setInt64(&cfg.Market.QuestionCreationFee, "OPX_QUESTION_CREATION_FEE")
	setInt64(&cfg.Market.AnswerProposalStake, "OPX_ANSWER_PROPOSAL_STAKE")
	setInt64(&cfg.Market.PlatformFeeBps, "OPX_PLATFORM_FEE_BPS")
	setInt64(&cfg.Market.CreatorFeeBps, "OPX_CREATOR_FEE_BPS")
	setInt(&cfg.Market.MaxAnswersPerQuestion, "OPX_MAX_ANSWERS_PER_QUESTION")

	setStringSlice(&cfg.Access.Moderators, "OPX_MODERATORS")
	setStringSlice(&cfg.Access.Admins, "OPX_ADMINS")

	setStr(&cfg.LogLevel, "OPX_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
