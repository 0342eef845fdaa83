package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MatcherConfig holds retrieval thresholds and the refit policy.
type MatcherConfig struct {
	ThresholdLow  float64 `yaml:"threshold_low"`
	ThresholdHigh float64 `yaml:"threshold_high"`
	TopK          int     `yaml:"top_k"`
	RefitBatch    int     `yaml:"refit_batch"`
	RefitPolicy   string  `yaml:"refit_policy"`
}

// VectorizerConfig configures the TF-IDF vocabulary.
type VectorizerConfig struct {
	NgramRange [2]int  `yaml:"ngram_range,flow"`
	MinDF      int     `yaml:"min_df"`
	MaxDF      float64 `yaml:"max_df"`
}

// NormalizerConfig toggles normalization steps and their resources.
type NormalizerConfig struct {
	Casefold           bool   `yaml:"casefold"`
	StripPunctuation   bool   `yaml:"strip_punctuation"`
	CollapseWhitespace bool   `yaml:"collapse_whitespace"`
	DropStopwords      bool   `yaml:"drop_stopwords"`
	Lemmatize          bool   `yaml:"lemmatize"`
	StopwordsFile      string `yaml:"stopwords_file"`
	LemmaFile          string `yaml:"lemma_file"`
	Stemmer            string `yaml:"stemmer"`
}

// SessionConfig bounds the session table.
type SessionConfig struct {
	IdleSeconds   int `yaml:"idle_seconds"`
	ExpireSeconds int `yaml:"expire_seconds"`
	HistorySize   int `yaml:"history_size"`
	MaxSessions   int `yaml:"max_sessions"`
	SweepSeconds  int `yaml:"sweep_seconds"`
}

// DialogConfig holds canned responses.
type DialogConfig struct {
	FallbackMessage string `yaml:"fallback_message"`
}

// RulesConfig points at an optional rule file.
type RulesConfig struct {
	File  string `yaml:"file"`
	Watch bool   `yaml:"watch"`
}

// StorageConfig selects the snapshot store.
type StorageConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// TaggerConfig configures automatic tags.
type TaggerConfig struct {
	AutoTags int `yaml:"auto_tags"`
}

// HTTPConfig configures the HTTP host.
type HTTPConfig struct {
	Addr             string `yaml:"addr"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Matcher    MatcherConfig    `yaml:"matcher"`
	Vectorizer VectorizerConfig `yaml:"vectorizer"`
	Normalizer NormalizerConfig `yaml:"normalizer"`
	Session    SessionConfig    `yaml:"session"`
	Dialog     DialogConfig     `yaml:"dialog"`
	Rules      RulesConfig      `yaml:"rules"`
	Storage    StorageConfig    `yaml:"storage"`
	Tagger     TaggerConfig     `yaml:"tagger"`
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
}

// Environment variables that override the file.
const (
	EnvHTTPAddr    = "FAQBOT_HTTP_ADDR"
	EnvStorageType = "FAQBOT_STORAGE_TYPE"
	EnvStoragePath = "FAQBOT_STORAGE_PATH"
	EnvRulesFile   = "FAQBOT_RULES_FILE"
	EnvLogLevel    = "FAQBOT_LOG_LEVEL"
)

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Keys absent from the file keep their defaults. Environment overrides are
// applied last and the result is validated.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./faqbot.yaml first, then ~/.config/faqbot/config.yaml.
// If neither exists, it writes defaults to ~/.config/faqbot/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "faqbot.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, Default()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "faqbot", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		Matcher: MatcherConfig{
			ThresholdLow:  0.60,
			ThresholdHigh: 0.80,
			TopK:          3,
			RefitBatch:    25,
			RefitPolicy:   "batched",
		},
		Vectorizer: VectorizerConfig{NgramRange: [2]int{1, 2}, MinDF: 1, MaxDF: 1.0},
		Normalizer: NormalizerConfig{
			Casefold:           true,
			StripPunctuation:   true,
			CollapseWhitespace: true,
			DropStopwords:      true,
			Stemmer:            "none",
		},
		Session: SessionConfig{
			IdleSeconds:   300,
			ExpireSeconds: 1800,
			HistorySize:   8,
			MaxSessions:   10000,
			SweepSeconds:  60,
		},
		Dialog:  DialogConfig{FallbackMessage: "Sorry, I don't know the answer to that yet."},
		Storage: StorageConfig{Type: "json", Path: "faqs.json"},
		HTTP:    HTTPConfig{Addr: ":8080", RequestTimeoutMS: 2000},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv(EnvStorageType); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv(EnvStoragePath); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv(EnvRulesFile); v != "" {
		cfg.Rules.File = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

// Validate rejects inconsistent settings.
func (c *AppConfig) Validate() error {
	m := c.Matcher
	if m.ThresholdLow < 0 || m.ThresholdHigh > 1 || m.ThresholdLow > m.ThresholdHigh {
		return fmt.Errorf("matcher thresholds must satisfy 0 <= low <= high <= 1, got %v/%v", m.ThresholdLow, m.ThresholdHigh)
	}
	if m.TopK < 1 {
		return fmt.Errorf("matcher.top_k must be >= 1, got %d", m.TopK)
	}
	if m.RefitBatch < 1 {
		return fmt.Errorf("matcher.refit_batch must be >= 1, got %d", m.RefitBatch)
	}
	switch m.RefitPolicy {
	case "batched", "eager":
	default:
		return fmt.Errorf("matcher.refit_policy %q: want batched or eager", m.RefitPolicy)
	}

	v := c.Vectorizer
	if v.NgramRange[0] < 1 || v.NgramRange[1] < v.NgramRange[0] {
		return fmt.Errorf("vectorizer.ngram_range %v is invalid", v.NgramRange)
	}
	if v.MinDF < 1 {
		return fmt.Errorf("vectorizer.min_df must be >= 1, got %d", v.MinDF)
	}
	if v.MaxDF <= 0 || v.MaxDF > 1 {
		return fmt.Errorf("vectorizer.max_df must be in (0, 1], got %v", v.MaxDF)
	}

	switch strings.ToLower(c.Normalizer.Stemmer) {
	case "", "none", "snowball":
	default:
		return fmt.Errorf("normalizer.stemmer %q: want none or snowball", c.Normalizer.Stemmer)
	}

	s := c.Session
	if s.HistorySize < 1 {
		return fmt.Errorf("session.history_size must be >= 1, got %d", s.HistorySize)
	}
	if s.IdleSeconds < 1 || s.ExpireSeconds < s.IdleSeconds {
		return fmt.Errorf("session timeouts must satisfy 0 < idle <= expire, got %d/%d", s.IdleSeconds, s.ExpireSeconds)
	}
	if s.MaxSessions < 1 || s.SweepSeconds < 1 {
		return errors.New("session.max_sessions and session.sweep_seconds must be >= 1")
	}

	switch c.Storage.Type {
	case "json", "sqlite":
	default:
		return fmt.Errorf("storage.type %q: want json or sqlite", c.Storage.Type)
	}
	if c.Storage.Path == "" {
		return errors.New("storage.path is empty")
	}
	if c.Tagger.AutoTags < 0 {
		return fmt.Errorf("tagger.auto_tags must be >= 0, got %d", c.Tagger.AutoTags)
	}
	if c.HTTP.RequestTimeoutMS < 0 {
		return fmt.Errorf("http.request_timeout_ms must be >= 0, got %d", c.HTTP.RequestTimeoutMS)
	}
	return nil
}
