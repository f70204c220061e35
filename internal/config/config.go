// Package config loads the pipeline's YAML configuration document and
// applies environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/dpr-pipeline/internal/model"
)

// SchemaMigration gates which subscription schema a config document targets.
type SchemaMigration struct {
	Stage model.SchemaStage `yaml:"stage" json:"stage"`
}

// SubscriptionsConfig configures intent profiles and keyword recall behavior.
type SubscriptionsConfig struct {
	IntentProfiles   []model.IntentProfile   `yaml:"intent_profiles" json:"intent_profiles"`
	SchemaMigration  SchemaMigration         `yaml:"schema_migration" json:"schema_migration"`
	KeywordRecallMode model.KeywordRecallMode `yaml:"keyword_recall_mode" json:"keyword_recall_mode"`
}

// ArxivPaperSetting configures fetch windowing and source preference.
type ArxivPaperSetting struct {
	DaysWindow         int  `yaml:"days_window" json:"days_window"`
	PreferSupabaseRead bool `yaml:"prefer_supabase_read" json:"prefer_supabase_read"`
}

// SupabaseConfig configures the optional Supabase mirror.
type SupabaseConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	URL          string `yaml:"url" json:"url"`
	AnonKey      string `yaml:"anon_key" json:"anon_key"`
	PapersTable  string `yaml:"papers_table" json:"papers_table"`
	Schema       string `yaml:"schema" json:"schema"`
	VectorRPC    string `yaml:"vector_rpc" json:"vector_rpc"`
	BM25RPC      string `yaml:"bm25_rpc" json:"bm25_rpc"`
	UseVectorRPC bool   `yaml:"use_vector_rpc" json:"use_vector_rpc"`
	UseBM25RPC   bool   `yaml:"use_bm25_rpc" json:"use_bm25_rpc"`
}

// CrawlerConfig configures optional documentation-site crawling inputs.
type CrawlerConfig struct {
	DocsDir    string `yaml:"docs_dir" json:"docs_dir,omitempty"`
	DaysWindow int    `yaml:"days_window" json:"days_window,omitempty"`
	MaxResults int    `yaml:"max_results" json:"max_results,omitempty"`
}

// RetrievalConfig configures BM25/embedding/fusion/rerank/selector tuning
// knobs that the spec leaves as named defaults.
type RetrievalConfig struct {
	BM25K1                float64 `yaml:"bm25_k1" json:"bm25_k1"`
	BM25B                 float64 `yaml:"bm25_b" json:"bm25_b"`
	BM25TopK              int     `yaml:"bm25_top_k" json:"bm25_top_k"`
	OrSoftWeight          float64 `yaml:"or_soft_weight" json:"or_soft_weight"`
	EmbeddingTopK         int     `yaml:"embedding_top_k" json:"embedding_top_k"`
	EmbeddingBatchSize    int     `yaml:"embedding_batch_size" json:"embedding_batch_size"`
	EmbeddingDevice       string  `yaml:"embedding_device" json:"embedding_device"`
	RRFConstant           int     `yaml:"rrf_constant" json:"rrf_constant"`
	FusionTopM            int     `yaml:"fusion_top_m" json:"fusion_top_m"`
	RerankThresholdStars  int     `yaml:"rerank_threshold_stars" json:"rerank_threshold_stars"`
	FilterConcurrency     int     `yaml:"filter_concurrency" json:"filter_concurrency"`
	FilterBatchSize       int     `yaml:"filter_batch_size" json:"filter_batch_size"`
	FilterMaxChars        int     `yaml:"filter_max_chars" json:"filter_max_chars"`
	SelectN               int     `yaml:"select_n" json:"select_n"`
	SelectTagCapRatio     float64 `yaml:"select_tag_cap_ratio" json:"select_tag_cap_ratio"`
	SkimsWindowThreshold  int     `yaml:"skims_window_threshold" json:"skims_window_threshold"`
	LongWindowThreshold   int     `yaml:"long_window_threshold" json:"long_window_threshold"`
}

// Config is the complete pipeline configuration document.
type Config struct {
	Subscriptions     SubscriptionsConfig `yaml:"subscriptions" json:"subscriptions"`
	ArxivPaperSetting ArxivPaperSetting   `yaml:"arxiv_paper_setting" json:"arxiv_paper_setting"`
	Supabase          SupabaseConfig      `yaml:"supabase" json:"supabase"`
	Crawler           CrawlerConfig       `yaml:"crawler" json:"crawler"`
	Retrieval         RetrievalConfig     `yaml:"retrieval" json:"retrieval"`
	LogLevel          string              `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a Config populated with the spec's named defaults.
func NewConfig() *Config {
	return &Config{
		Subscriptions: SubscriptionsConfig{
			IntentProfiles: nil,
			SchemaMigration: SchemaMigration{
				Stage: model.SchemaStageC,
			},
			KeywordRecallMode: model.RecallModeOR,
		},
		ArxivPaperSetting: ArxivPaperSetting{
			DaysWindow:         1,
			PreferSupabaseRead: false,
		},
		Supabase: SupabaseConfig{
			Enabled:     false,
			PapersTable: "arxiv_papers",
			Schema:      "public",
			VectorRPC:   "match_arxiv_papers",
			BM25RPC:     "match_arxiv_papers_bm25",
		},
		Retrieval: RetrievalConfig{
			BM25K1:               1.2,
			BM25B:                0.75,
			BM25TopK:             200,
			OrSoftWeight:         0.3,
			EmbeddingTopK:        200,
			EmbeddingBatchSize:   8,
			EmbeddingDevice:      "cpu",
			RRFConstant:          60,
			FusionTopM:           100,
			RerankThresholdStars: 4,
			FilterConcurrency:    8,
			FilterBatchSize:      10,
			FilterMaxChars:       850,
			SelectN:              10,
			SelectTagCapRatio:    0.4,
			SkimsWindowThreshold: 11,
			LongWindowThreshold:  8,
		},
		LogLevel: "info",
	}
}

// Load reads configuration from dir in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Project config file (dpr.yaml or dpr.yml in dir)
//  3. Environment variable overrides (DPR_*)
//
// Unlike a per-directory daemon, the pipeline is a single-project batch
// tool: there is no separate user/global config layer.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from dpr.yaml or dpr.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, "dpr.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, "dpr.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if len(other.Subscriptions.IntentProfiles) > 0 {
		c.Subscriptions.IntentProfiles = other.Subscriptions.IntentProfiles
	}
	if other.Subscriptions.SchemaMigration.Stage != "" {
		c.Subscriptions.SchemaMigration.Stage = other.Subscriptions.SchemaMigration.Stage
	}
	if other.Subscriptions.KeywordRecallMode != "" {
		c.Subscriptions.KeywordRecallMode = other.Subscriptions.KeywordRecallMode
	}

	if other.ArxivPaperSetting.DaysWindow != 0 {
		c.ArxivPaperSetting.DaysWindow = other.ArxivPaperSetting.DaysWindow
	}
	c.ArxivPaperSetting.PreferSupabaseRead = other.ArxivPaperSetting.PreferSupabaseRead

	c.Supabase.Enabled = other.Supabase.Enabled
	if other.Supabase.URL != "" {
		c.Supabase.URL = other.Supabase.URL
		c.Supabase.AnonKey = other.Supabase.AnonKey
	}
	if other.Supabase.PapersTable != "" {
		c.Supabase.PapersTable = other.Supabase.PapersTable
	}
	if other.Supabase.Schema != "" {
		c.Supabase.Schema = other.Supabase.Schema
	}
	if other.Supabase.VectorRPC != "" {
		c.Supabase.VectorRPC = other.Supabase.VectorRPC
	}
	if other.Supabase.BM25RPC != "" {
		c.Supabase.BM25RPC = other.Supabase.BM25RPC
	}
	c.Supabase.UseVectorRPC = other.Supabase.UseVectorRPC
	c.Supabase.UseBM25RPC = other.Supabase.UseBM25RPC

	if other.Crawler.DocsDir != "" {
		c.Crawler.DocsDir = other.Crawler.DocsDir
	}
	if other.Crawler.DaysWindow != 0 {
		c.Crawler.DaysWindow = other.Crawler.DaysWindow
	}
	if other.Crawler.MaxResults != 0 {
		c.Crawler.MaxResults = other.Crawler.MaxResults
	}

	mergeRetrieval(&c.Retrieval, &other.Retrieval)

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

func mergeRetrieval(c, other *RetrievalConfig) {
	if other.BM25K1 != 0 {
		c.BM25K1 = other.BM25K1
	}
	if other.BM25B != 0 {
		c.BM25B = other.BM25B
	}
	if other.BM25TopK != 0 {
		c.BM25TopK = other.BM25TopK
	}
	if other.OrSoftWeight != 0 {
		c.OrSoftWeight = other.OrSoftWeight
	}
	if other.EmbeddingTopK != 0 {
		c.EmbeddingTopK = other.EmbeddingTopK
	}
	if other.EmbeddingBatchSize != 0 {
		c.EmbeddingBatchSize = other.EmbeddingBatchSize
	}
	if other.EmbeddingDevice != "" {
		c.EmbeddingDevice = other.EmbeddingDevice
	}
	if other.RRFConstant != 0 {
		c.RRFConstant = other.RRFConstant
	}
	if other.FusionTopM != 0 {
		c.FusionTopM = other.FusionTopM
	}
	if other.RerankThresholdStars != 0 {
		c.RerankThresholdStars = other.RerankThresholdStars
	}
	if other.FilterConcurrency != 0 {
		c.FilterConcurrency = other.FilterConcurrency
	}
	if other.FilterBatchSize != 0 {
		c.FilterBatchSize = other.FilterBatchSize
	}
	if other.FilterMaxChars != 0 {
		c.FilterMaxChars = other.FilterMaxChars
	}
	if other.SelectN != 0 {
		c.SelectN = other.SelectN
	}
	if other.SelectTagCapRatio != 0 {
		c.SelectTagCapRatio = other.SelectTagCapRatio
	}
	if other.SkimsWindowThreshold != 0 {
		c.SkimsWindowThreshold = other.SkimsWindowThreshold
	}
	if other.LongWindowThreshold != 0 {
		c.LongWindowThreshold = other.LongWindowThreshold
	}
}

// applyEnvOverrides applies DPR_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DPR_FETCH_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.ArxivPaperSetting.DaysWindow = n
		}
	}
	if v := os.Getenv("DPR_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DPR_EMBEDDING_DEVICE"); v != "" {
		c.Retrieval.EmbeddingDevice = v
	}
	if v := os.Getenv("DPR_EMBEDDING_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.EmbeddingBatchSize = n
		}
	}
	if v := os.Getenv("DPR_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.RRFConstant = n
		}
	}
	if v := os.Getenv("DPR_KEYWORD_RECALL_MODE"); v != "" {
		c.Subscriptions.KeywordRecallMode = model.KeywordRecallMode(v)
	}
	if v := os.Getenv("DPR_SUPABASE_URL"); v != "" {
		c.Supabase.URL = v
		c.Supabase.Enabled = true
	}
	if v := os.Getenv("DPR_SUPABASE_ANON_KEY"); v != "" {
		c.Supabase.AnonKey = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.ArxivPaperSetting.DaysWindow < 1 || c.ArxivPaperSetting.DaysWindow > 60 {
		return fmt.Errorf("arxiv_paper_setting.days_window must be between 1 and 60, got %d", c.ArxivPaperSetting.DaysWindow)
	}

	switch c.Subscriptions.SchemaMigration.Stage {
	case model.SchemaStageA, model.SchemaStageB, model.SchemaStageC:
	default:
		return fmt.Errorf("subscriptions.schema_migration.stage must be A, B, or C, got %q", c.Subscriptions.SchemaMigration.Stage)
	}

	switch c.Subscriptions.KeywordRecallMode {
	case model.RecallModeOR, model.RecallModeBooleanMixed, "":
	default:
		return fmt.Errorf("subscriptions.keyword_recall_mode must be 'or' or 'boolean_mixed', got %q", c.Subscriptions.KeywordRecallMode)
	}

	if c.Supabase.Enabled && c.Supabase.URL == "" {
		return fmt.Errorf("supabase.url is required when supabase.enabled is true")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// HasIntentProfiles reports whether at least one enabled intent profile is present.
func (c *Config) HasIntentProfiles() bool {
	for _, p := range c.Subscriptions.IntentProfiles {
		if p.IsEnabled() {
			return true
		}
	}
	return false
}
