// Copyright 2025 The Doc-Searcher Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the doc-searcher core's configuration from YAML,
// expanding ${VAR}/${VAR:-default} references against the process
// environment before decoding.
//
// Example config:
//
//	backend:
//	  base_url: http://localhost:9200
//	  request_timeout: 30s
//	  scroll_lifetime: 1m
//
//	embedding:
//	  endpoint: http://localhost:8081/embed
//	  dimension: 1536
//	  max_retries: 3
//
//	chunking:
//	  token_limit: 512
//	  overlap_rate: 0.1
//
//	folder_cache:
//	  ttl: 60s
//	  max_entries: 1024
//
//	metrics:
//	  enabled: true
//	  namespace: doc_searcher
//
//	log_level: info
//	log_format: simple
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the doc-searcher core.
type Config struct {
	Backend     BackendConfig     `yaml:"backend,omitempty"`
	Embedding   EmbeddingConfig   `yaml:"embedding,omitempty"`
	Chunking    ChunkingConfig    `yaml:"chunking,omitempty"`
	FolderCache FolderCacheConfig `yaml:"folder_cache,omitempty"`
	Metrics     MetricsConfig     `yaml:"metrics,omitempty"`

	// LogLevel is one of debug, info, warn, error. Default: info.
	LogLevel string `yaml:"log_level,omitempty"`
	// LogFormat is one of simple, verbose. Default: simple.
	LogFormat string `yaml:"log_format,omitempty"`
}

// BackendConfig configures the HTTP client used to reach the
// Elasticsearch-like search backend.
type BackendConfig struct {
	// BaseURL is the backend's HTTP endpoint, e.g. "http://localhost:9200".
	BaseURL string `yaml:"base_url,omitempty"`

	// RequestTimeout bounds a single backend HTTP call. Default: 30s.
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`

	// ScrollLifetime is the default scroll-context keep-alive window passed
	// on search requests that open a scroll. Default: 1m.
	ScrollLifetime time.Duration `yaml:"scroll_lifetime,omitempty"`

	// MaxRetries bounds retry attempts for transient backend failures
	// (connection errors, 503). Default: 3.
	MaxRetries int `yaml:"max_retries,omitempty"`

	// MaxIdleConnsPerHost tunes the shared http.Transport. Default: 16.
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host,omitempty"`
}

// EmbeddingConfig configures the embedding HTTP client.
type EmbeddingConfig struct {
	// Endpoint is the embedding service's HTTP endpoint, used to resolve
	// query vectors for Semantic/Hybrid searches. Empty disables that
	// resolution; such searches must then carry their own query_vector.
	// Document writes never call the embedding service.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Dimension is the expected embedding vector length. A response whose
	// length disagrees is a fatal BadShape error.
	Dimension int `yaml:"dimension,omitempty"`

	// RequestTimeout bounds a single embedding call. Default: 15s.
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`

	// MaxRetries bounds retry attempts; never retried on 4xx. Default: 3.
	MaxRetries int `yaml:"max_retries,omitempty"`
}

// ChunkingConfig configures the token-aware chunker used when projecting a
// LargeDocument into DocumentPart/DocumentVectors records.
type ChunkingConfig struct {
	// TokenLimit is the maximum token count per chunk. Default: 512.
	TokenLimit int `yaml:"token_limit,omitempty"`

	// OverlapRate is the fraction of TokenLimit repeated at the start of
	// each chunk after the first, in [0, 1). Default: 0.1.
	OverlapRate float64 `yaml:"overlap_rate,omitempty"`

	// Encoding names the tiktoken-go encoding used to count tokens.
	// Default: cl100k_base.
	Encoding string `yaml:"encoding,omitempty"`
}

// FolderCacheConfig configures the info-folder overlay's TTL cache.
type FolderCacheConfig struct {
	// TTL is how long a cached info-folder record is served before a fresh
	// backend read is required. Default: 60s.
	TTL time.Duration `yaml:"ttl,omitempty"`

	// MaxEntries bounds the number of distinct folders tracked by the
	// bounded LRU layer beneath the TTL cache. Default: 1024.
	MaxEntries int `yaml:"max_entries,omitempty"`
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

const (
	DefaultRequestTimeout       = 30 * time.Second
	DefaultScrollLifetime       = time.Minute
	DefaultBackendMaxRetries    = 3
	DefaultMaxIdleConnsPerHost  = 16
	DefaultEmbeddingTimeout     = 15 * time.Second
	DefaultEmbeddingMaxRetries  = 3
	DefaultTokenLimit           = 512
	DefaultOverlapRate          = 0.1
	DefaultEncoding             = "cl100k_base"
	DefaultFolderCacheTTL       = 60 * time.Second
	DefaultFolderCacheMaxEntries = 1024
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "simple"
)

// SetDefaults fills every zero-valued field with its documented default.
func (c *Config) SetDefaults() {
	if c.Backend.RequestTimeout == 0 {
		c.Backend.RequestTimeout = DefaultRequestTimeout
	}
	if c.Backend.ScrollLifetime == 0 {
		c.Backend.ScrollLifetime = DefaultScrollLifetime
	}
	if c.Backend.MaxRetries == 0 {
		c.Backend.MaxRetries = DefaultBackendMaxRetries
	}
	if c.Backend.MaxIdleConnsPerHost == 0 {
		c.Backend.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}

	if c.Embedding.RequestTimeout == 0 {
		c.Embedding.RequestTimeout = DefaultEmbeddingTimeout
	}
	if c.Embedding.MaxRetries == 0 {
		c.Embedding.MaxRetries = DefaultEmbeddingMaxRetries
	}

	if c.Chunking.TokenLimit == 0 {
		c.Chunking.TokenLimit = DefaultTokenLimit
	}
	if c.Chunking.OverlapRate == 0 {
		c.Chunking.OverlapRate = DefaultOverlapRate
	}
	if c.Chunking.Encoding == "" {
		c.Chunking.Encoding = DefaultEncoding
	}

	if c.FolderCache.TTL == 0 {
		c.FolderCache.TTL = DefaultFolderCacheTTL
	}
	if c.FolderCache.MaxEntries == 0 {
		c.FolderCache.MaxEntries = DefaultFolderCacheMaxEntries
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "doc_searcher"
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = "/metrics"
	}

	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
}

// Validate checks the Config for internal consistency after defaults have
// been applied.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.MaxRetries < 0 {
		return fmt.Errorf("backend.max_retries must be >= 0, got %d", c.Backend.MaxRetries)
	}
	if c.Chunking.TokenLimit <= 0 {
		return fmt.Errorf("chunking.token_limit must be > 0, got %d", c.Chunking.TokenLimit)
	}
	if c.Chunking.OverlapRate < 0 || c.Chunking.OverlapRate >= 1 {
		return fmt.Errorf("chunking.overlap_rate must be in [0, 1), got %f", c.Chunking.OverlapRate)
	}
	if c.Embedding.Endpoint != "" && c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be > 0 when embedding.endpoint is set")
	}
	if c.FolderCache.TTL < 0 {
		return fmt.Errorf("folder_cache.ttl must be >= 0, got %s", c.FolderCache.TTL)
	}
	return nil
}

// Load reads YAML config from data, expands environment variable
// references, applies defaults, and validates the result.
func Load(data []byte) (*Config, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expanded := ExpandEnvVarsInData(raw)

	reencoded, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode expanded config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(reencoded, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
