package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Search.LimitResults != 30 || cfg.Search.TeaserWordCount != 30 {
		t.Errorf("unexpected results defaults: %+v", cfg.Search)
	}
	if cfg.Search.BoostTitle != 2 || !cfg.Search.Expand || cfg.Search.UseBooleanAnd {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Book.HeadingSplitLevel != 3 {
		t.Errorf("HeadingSplitLevel = %d, want 3", cfg.Book.HeadingSplitLevel)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
book:
  title: Arrays Mara
  sourceDir: spec/src
indexer:
  outputFormats: [js, cbor]
search:
  useBooleanAnd: true
  teaserWordCount: 12
redis:
  cacheTTL: 5m
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Book.Title != "Arrays Mara" || cfg.Book.SourceDir != "spec/src" {
		t.Errorf("book = %+v", cfg.Book)
	}
	if !reflect.DeepEqual(cfg.Indexer.OutputFormats, []string{"js", "cbor"}) {
		t.Errorf("OutputFormats = %v", cfg.Indexer.OutputFormats)
	}
	if !cfg.Search.UseBooleanAnd || cfg.Search.TeaserWordCount != 12 {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.Redis.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v", cfg.Redis.CacheTTL)
	}
	// untouched values keep their defaults
	if cfg.Search.LimitResults != 30 {
		t.Errorf("LimitResults = %d, want default 30", cfg.Search.LimitResults)
	}
}

func TestLoadJSONC(t *testing.T) {
	path := writeFile(t, "config.jsonc", `{
  // book settings
  "book": {"title": "Reference", "headingSplitLevel": 2,},
  "search": {"boostTitle": 3}
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Book.Title != "Reference" || cfg.Book.HeadingSplitLevel != 2 {
		t.Errorf("book = %+v", cfg.Book)
	}
	if cfg.Search.BoostTitle != 3 {
		t.Errorf("BoostTitle = %v", cfg.Search.BoostTitle)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BI_SERVER_PORT", "9999")
	t.Setenv("BI_KAFKA_BROKERS", "a:1,b:2")
	t.Setenv("BI_INDEXER_OUTPUT_FORMATS", "json.gz")
	t.Setenv("BI_POSTGRES_ENABLED", "true")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
	if !reflect.DeepEqual(cfg.Kafka.Brokers, []string{"a:1", "b:2"}) {
		t.Errorf("Brokers = %v", cfg.Kafka.Brokers)
	}
	if !reflect.DeepEqual(cfg.Indexer.OutputFormats, []string{"json.gz"}) {
		t.Errorf("OutputFormats = %v", cfg.Indexer.OutputFormats)
	}
	if !cfg.Postgres.Enabled {
		t.Error("Postgres.Enabled not overridden")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown format", func(c *Config) { c.Indexer.OutputFormats = []string{"xml"} }},
		{"split level", func(c *Config) { c.Book.HeadingSplitLevel = 0 }},
		{"negative boost", func(c *Config) { c.Search.BoostTitle = -1 }},
		{"zero limit", func(c *Config) { c.Search.LimitResults = 0 }},
		{"zero teaser", func(c *Config) { c.Search.TeaserWordCount = 0 }},
		{"bad cron", func(c *Config) { c.Indexer.RebuildSchedule = "every tuesday" }},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	cfg := Default()
	cfg.Indexer.RebuildSchedule = "0 */15 * * * *"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid schedule rejected: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDevelopmentConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := Default()
	want.Server.RateLimit = 600
	if !reflect.DeepEqual(cfg.Search, want.Search) || !reflect.DeepEqual(cfg.Kafka, want.Kafka) {
		t.Errorf("development.yaml drifted from defaults:\n got %+v\nwant %+v", cfg.Search, want.Search)
	}
	if cfg.Server != want.Server {
		t.Errorf("server = %+v, want %+v", cfg.Server, want.Server)
	}
}
