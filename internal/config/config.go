// Package config provides configuration management for the reference enrichment service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the reference enrichment service.
type Config struct {
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Sources contains bibliographic source API configurations.
	Sources SourcesConfig `mapstructure:"sources"`
	// Enrichment contains matching, adjudication, and merge thresholds.
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	// Cache contains enrichment result cache settings.
	Cache CacheConfig `mapstructure:"cache"`
	// Batch contains batch processing settings.
	Batch BatchConfig `mapstructure:"batch"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"gt=0,lte=65535"`
	// Namespace is the Prometheus metric namespace prefix.
	Namespace string `mapstructure:"namespace"`
}

// SourcesConfig holds configuration for all bibliographic source APIs.
type SourcesConfig struct {
	// ContactEmail is the contact email sent to polite-pool APIs
	// (Crossref and OpenAlex grant better rate limits when present).
	ContactEmail string `mapstructure:"contact_email"`
	// Crossref contains Crossref API settings.
	Crossref SourceConfig `mapstructure:"crossref"`
	// OpenAlex contains OpenAlex API settings.
	OpenAlex SourceConfig `mapstructure:"openalex"`
	// SemanticScholar contains Semantic Scholar API settings.
	SemanticScholar SourceConfig `mapstructure:"semantic_scholar"`
	// DOAJ contains DOAJ API settings.
	DOAJ SourceConfig `mapstructure:"doaj"`
	// PubMed contains PubMed API settings.
	PubMed SourceConfig `mapstructure:"pubmed"`
	// ArXiv contains arXiv API settings.
	ArXiv SourceConfig `mapstructure:"arxiv"`
}

// SourceConfig holds configuration for a single bibliographic source API.
type SourceConfig struct {
	// Enabled controls whether this source is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key (loaded from environment variable, e.g.
	// REFENRICH_SOURCES_SEMANTIC_SCHOLAR_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
	// BurstSize is the maximum burst of requests allowed.
	BurstSize int `mapstructure:"burst_size" validate:"gte=0"`
	// MaxResults is the maximum results per query.
	MaxResults int `mapstructure:"max_results" validate:"gte=0"`
}

// EnrichmentConfig holds matching, adjudication, and merge thresholds.
type EnrichmentConfig struct {
	// TitleSimilarityFloor is the minimum title similarity for a candidate
	// to be accepted as a match.
	TitleSimilarityFloor float64 `mapstructure:"title_similarity_floor" validate:"gte=0,lte=1"`
	// ConservativeThreshold is the composite score at which fill-only
	// merging begins.
	ConservativeThreshold float64 `mapstructure:"conservative_threshold" validate:"gte=0,lte=1"`
	// AggressiveThreshold is the composite score at which corrective
	// merging begins.
	AggressiveThreshold float64 `mapstructure:"aggressive_threshold" validate:"gte=0,lte=1"`
	// YearTolerance is the maximum publication year difference treated
	// as agreement.
	YearTolerance int `mapstructure:"year_tolerance" validate:"gte=0"`
	// ConflictMargin is the relative confidence margin below which a
	// field disagreement is recorded as a conflict.
	ConflictMargin float64 `mapstructure:"conflict_margin" validate:"gte=0,lte=1"`
	// AuthorOverlapFloor is the minimum surname overlap for the DOI
	// authority to win the author field.
	AuthorOverlapFloor float64 `mapstructure:"author_overlap_floor" validate:"gte=0,lte=1"`
	// QualityGate is the quality score above which references are not
	// enriched unless forced.
	QualityGate float64 `mapstructure:"quality_gate" validate:"gte=0,lte=1"`
	// DOIAuthority is the source treated as authoritative for
	// DOI-adjacent fields during adjudication.
	DOIAuthority string `mapstructure:"doi_authority"`
	// PerSourceTimeout is the timeout applied to each source search.
	PerSourceTimeout time.Duration `mapstructure:"per_source_timeout"`
	// OverallTimeout is the timeout for a full retrieval round across
	// all sources.
	OverallTimeout time.Duration `mapstructure:"overall_timeout"`
}

// CacheConfig holds enrichment result cache settings.
type CacheConfig struct {
	// Enabled controls whether enrichment results are cached.
	Enabled bool `mapstructure:"enabled"`
	// TTL is how long cached enrichment results stay valid.
	TTL time.Duration `mapstructure:"ttl"`
	// MaxEntries is the maximum number of cached results.
	MaxEntries int `mapstructure:"max_entries" validate:"gte=0"`
}

// BatchConfig holds batch processing settings.
type BatchConfig struct {
	// Concurrency is the maximum number of references enriched in parallel.
	Concurrency int `mapstructure:"concurrency" validate:"gt=0"`
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("REFENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/reference-enrichment")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.Sources.SemanticScholar.APIKey = os.Getenv("REFENRICH_SOURCES_SEMANTIC_SCHOLAR_API_KEY")
	cfg.Sources.PubMed.APIKey = os.Getenv("REFENRICH_SOURCES_PUBMED_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9091)
	v.SetDefault("metrics.namespace", "refenrich")

	// Sources defaults - Crossref
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("sources.contact_email", "")
	v.SetDefault("sources.crossref.enabled", true)
	v.SetDefault("sources.crossref.base_url", "https://api.crossref.org")
	v.SetDefault("sources.crossref.timeout", "30s")
	v.SetDefault("sources.crossref.rate_limit", 10.0)
	v.SetDefault("sources.crossref.burst_size", 10)
	v.SetDefault("sources.crossref.max_results", 10)

	// Sources defaults - OpenAlex
	v.SetDefault("sources.openalex.enabled", true)
	v.SetDefault("sources.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("sources.openalex.timeout", "30s")
	v.SetDefault("sources.openalex.rate_limit", 10.0)
	v.SetDefault("sources.openalex.burst_size", 10)
	v.SetDefault("sources.openalex.max_results", 10)

	// Sources defaults - Semantic Scholar
	v.SetDefault("sources.semantic_scholar.enabled", true)
	v.SetDefault("sources.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("sources.semantic_scholar.timeout", "30s")
	v.SetDefault("sources.semantic_scholar.rate_limit", 1.0) // unauthenticated limit; API key raises it
	v.SetDefault("sources.semantic_scholar.burst_size", 2)
	v.SetDefault("sources.semantic_scholar.max_results", 10)

	// Sources defaults - DOAJ
	v.SetDefault("sources.doaj.enabled", true)
	v.SetDefault("sources.doaj.base_url", "https://doaj.org/api")
	v.SetDefault("sources.doaj.timeout", "30s")
	v.SetDefault("sources.doaj.rate_limit", 2.0)
	v.SetDefault("sources.doaj.burst_size", 2)
	v.SetDefault("sources.doaj.max_results", 10)

	// Sources defaults - PubMed
	v.SetDefault("sources.pubmed.enabled", true)
	v.SetDefault("sources.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("sources.pubmed.timeout", "30s")
	v.SetDefault("sources.pubmed.rate_limit", 3.0) // NCBI recommends max 3 req/sec without API key
	v.SetDefault("sources.pubmed.burst_size", 3)
	v.SetDefault("sources.pubmed.max_results", 10)

	// Sources defaults - arXiv
	v.SetDefault("sources.arxiv.enabled", true)
	v.SetDefault("sources.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("sources.arxiv.timeout", "30s")
	v.SetDefault("sources.arxiv.rate_limit", 3.0) // arXiv recommends max 3 req/sec
	v.SetDefault("sources.arxiv.burst_size", 3)
	v.SetDefault("sources.arxiv.max_results", 10)

	// Enrichment defaults
	v.SetDefault("enrichment.title_similarity_floor", 0.30)
	v.SetDefault("enrichment.conservative_threshold", 0.60)
	v.SetDefault("enrichment.aggressive_threshold", 0.80)
	v.SetDefault("enrichment.year_tolerance", 2)
	v.SetDefault("enrichment.conflict_margin", 0.20)
	v.SetDefault("enrichment.author_overlap_floor", 0.60)
	v.SetDefault("enrichment.quality_gate", 0.80)
	v.SetDefault("enrichment.doi_authority", "crossref")
	v.SetDefault("enrichment.per_source_timeout", "30s")
	v.SetDefault("enrichment.overall_timeout", "60s")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.max_entries", 10000)

	// Batch defaults
	v.SetDefault("batch.concurrency", 5)
}

// validSources lists the accepted doi_authority values.
var validSources = map[string]bool{
	"crossref":         true,
	"openalex":         true,
	"semantic_scholar": true,
	"doaj":             true,
	"pubmed":           true,
	"arxiv":            true,
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Threshold ordering: fill-only merging must begin at or below
	// corrective merging.
	if c.Enrichment.ConservativeThreshold > c.Enrichment.AggressiveThreshold {
		return fmt.Errorf("conservative_threshold (%.2f) must be <= aggressive_threshold (%.2f)",
			c.Enrichment.ConservativeThreshold, c.Enrichment.AggressiveThreshold)
	}

	if !validSources[strings.ToLower(c.Enrichment.DOIAuthority)] {
		return fmt.Errorf("invalid doi_authority: %s", c.Enrichment.DOIAuthority)
	}

	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive when the cache is enabled")
	}

	return nil
}
