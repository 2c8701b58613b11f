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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load([]byte(`
backend:
  base_url: http://localhost:9200
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultRequestTimeout, cfg.Backend.RequestTimeout)
	assert.Equal(t, DefaultScrollLifetime, cfg.Backend.ScrollLifetime)
	assert.Equal(t, DefaultTokenLimit, cfg.Chunking.TokenLimit)
	assert.Equal(t, DefaultOverlapRate, cfg.Chunking.OverlapRate)
	assert.Equal(t, DefaultEncoding, cfg.Chunking.Encoding)
	assert.Equal(t, DefaultFolderCacheTTL, cfg.FolderCache.TTL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("DOC_SEARCHER_BACKEND_URL", "http://backend.internal:9200")

	cfg, err := Load([]byte(`
backend:
  base_url: ${DOC_SEARCHER_BACKEND_URL}
  request_timeout: 45s
`))
	require.NoError(t, err)

	assert.Equal(t, "http://backend.internal:9200", cfg.Backend.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Backend.RequestTimeout)
}

func TestLoadExpandsEnvVarDefault(t *testing.T) {
	cfg, err := Load([]byte(`
backend:
  base_url: ${DOC_SEARCHER_BACKEND_URL:-http://localhost:9200}
`))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9200", cfg.Backend.BaseURL)
}

func TestValidateRequiresBaseURL(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	err := cfg.Validate()
	assert.ErrorContains(t, err, "base_url")
}

func TestValidateRejectsBadOverlapRate(t *testing.T) {
	cfg := &Config{Backend: BackendConfig{BaseURL: "http://localhost:9200"}}
	cfg.SetDefaults()
	cfg.Chunking.OverlapRate = 1.5

	err := cfg.Validate()
	assert.ErrorContains(t, err, "overlap_rate")
}

func TestValidateRequiresDimensionWhenEmbeddingConfigured(t *testing.T) {
	cfg := &Config{Backend: BackendConfig{BaseURL: "http://localhost:9200"}}
	cfg.SetDefaults()
	cfg.Embedding.Endpoint = "http://localhost:8081/embed"

	err := cfg.Validate()
	assert.ErrorContains(t, err, "dimension")
}
