package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faqbot.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeFile(t, `
matcher:
  top_k: 5
vectorizer:
  ngram_range: [1, 1]
normalizer:
  drop_stopwords: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Matcher.TopK != 5 || cfg.Matcher.ThresholdLow != 0.60 {
		t.Errorf("matcher = %+v", cfg.Matcher)
	}
	if cfg.Vectorizer.NgramRange != [2]int{1, 1} || cfg.Vectorizer.MaxDF != 1.0 {
		t.Errorf("vectorizer = %+v", cfg.Vectorizer)
	}
	if cfg.Normalizer.DropStopwords || !cfg.Normalizer.Casefold {
		t.Errorf("normalizer = %+v", cfg.Normalizer)
	}
	if cfg.Session.HistorySize != 8 {
		t.Errorf("session = %+v", cfg.Session)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvHTTPAddr, ":9999")
	t.Setenv(EnvStorageType, "sqlite")
	t.Setenv(EnvStoragePath, "faq.db")
	t.Setenv(EnvLogLevel, "debug")
	cfg, err := Load(writeFile(t, "http:\n  addr: \":1234\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":9999" || cfg.Storage.Type != "sqlite" || cfg.Storage.Path != "faq.db" || cfg.Log.Level != "debug" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"thresholds", "matcher:\n  threshold_low: 0.9\n  threshold_high: 0.5\n"},
		{"top-k", "matcher:\n  top_k: 0\n"},
		{"policy", "matcher:\n  refit_policy: sometimes\n"},
		{"ngram", "vectorizer:\n  ngram_range: [2, 1]\n"},
		{"max-df", "vectorizer:\n  max_df: 1.5\n"},
		{"history", "session:\n  history_size: 0\n"},
		{"storage", "storage:\n  type: redis\n"},
		{"stemmer", "normalizer:\n  stemmer: porter2000\n"},
		{"syntax", "matcher: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeFile(t, tt.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Rules.File = "rules.yaml"
	cfg.Tagger.AutoTags = 3
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("round trip mismatch:\n%+v\n%+v", got, cfg)
	}
}
