// Package config loads engine configuration from YAML with environment
// overrides. Precedence: environment > file > defaults. All thresholds and
// weights are named fields resolved once at startup; nothing reads the
// environment mid-query.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"

	"github.com/quarrylabs/quarry/internal/router"
)

// envPrefix namespaces every override, e.g. QUARRY_K_DENSE=300.
const envPrefix = "QUARRY_"

// Config is the complete engine configuration.
type Config struct {
	// KDense is the candidate count requested from the vector index.
	KDense int `yaml:"k_dense" env:"K_DENSE"`

	// KLex is the candidate count requested from the lexical index.
	KLex int `yaml:"k_lex" env:"K_LEX"`

	// RRFC is the reciprocal rank fusion smoothing constant.
	RRFC int `yaml:"rrf_c" env:"RRF_C"`

	// TopicTopN bounds how many routed topics the booster considers.
	TopicTopN int `yaml:"protocol_topn" env:"PROTOCOL_TOPN"`

	// TopicBoost is the maximum per-candidate topic bonus.
	TopicBoost float64 `yaml:"protocol_boost" env:"PROTOCOL_BOOST"`

	// TagBoost is the per-matching-tag bonus, capped at three matches.
	TagBoost float64 `yaml:"tag_boost" env:"TAG_BOOST"`

	// FastReturn is the fast lane's result count.
	FastReturn int `yaml:"fast_return" env:"FAST_RETURN"`

	// AccurateIn bounds the accurate lane's MMR pool.
	AccurateIn int `yaml:"accurate_in" env:"ACCURATE_IN"`

	// AccurateOut is the accurate lane's result count.
	AccurateOut int `yaml:"accurate_out" env:"ACCURATE_OUT"`

	// FastBudget and AccurateBudget time-box each lane, e.g. "150ms".
	// Empty disables the deadline.
	FastBudget     string `yaml:"fast_budget" env:"FAST_BUDGET"`
	AccurateBudget string `yaml:"accurate_budget" env:"ACCURATE_BUDGET"`

	Router router.Config `yaml:"router" envPrefix:"ROUTER_"`

	// Paths for the serving data, used by the CLI.
	DataDir  string `yaml:"data_dir" env:"DATA_DIR"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		KDense:         200,
		KLex:           200,
		RRFC:           60,
		TopicTopN:      10,
		TopicBoost:     0.15,
		TagBoost:       0.05,
		FastReturn:     8,
		AccurateIn:     60,
		AccurateOut:    8,
		FastBudget:     "150ms",
		AccurateBudget: "500ms",
		Router:         router.DefaultConfig(),
		DataDir:        ".quarry",
		LogLevel:       "info",
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides, in increasing precedence. An empty path skips the
// file layer.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot serve with.
func (c Config) Validate() error {
	if c.KDense <= 0 {
		return fmt.Errorf("k_dense must be positive, got %d", c.KDense)
	}
	if c.KLex <= 0 {
		return fmt.Errorf("k_lex must be positive, got %d", c.KLex)
	}
	if c.RRFC <= 0 {
		return fmt.Errorf("rrf_c must be positive, got %d", c.RRFC)
	}
	if c.FastReturn <= 0 || c.AccurateOut <= 0 {
		return fmt.Errorf("result counts must be positive (fast_return=%d, accurate_out=%d)", c.FastReturn, c.AccurateOut)
	}
	if c.TopicBoost < 0 || c.TagBoost < 0 {
		return fmt.Errorf("boosts must be non-negative (protocol_boost=%g, tag_boost=%g)", c.TopicBoost, c.TagBoost)
	}
	if _, err := parseBudget(c.FastBudget); err != nil {
		return fmt.Errorf("fast_budget: %w", err)
	}
	if _, err := parseBudget(c.AccurateBudget); err != nil {
		return fmt.Errorf("accurate_budget: %w", err)
	}
	r := c.Router
	if r.MinConfSingle < r.MinConfDouble || r.MinConfDouble < r.MinConfTriple {
		return fmt.Errorf("router thresholds must be ordered single >= double >= triple (%g/%g/%g)",
			r.MinConfSingle, r.MinConfDouble, r.MinConfTriple)
	}
	return nil
}

// FastBudgetDuration returns the parsed fast lane budget, 0 when disabled.
func (c Config) FastBudgetDuration() time.Duration {
	d, _ := parseBudget(c.FastBudget)
	return d
}

// AccurateBudgetDuration returns the parsed accurate lane budget, 0 when
// disabled.
func (c Config) AccurateBudgetDuration() time.Duration {
	d, _ := parseBudget(c.AccurateBudget)
	return d
}

func parseBudget(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", s)
	}
	return d, nil
}
