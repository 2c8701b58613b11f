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

// Package search implements the three search entry points
// (full-text, semantic, hybrid) plus scroll continuation, composing
// pkg/query, pkg/backend and pkg/response. kNN-origin scrolls are tracked
// so paginate can reject them — the backing engine's kNN results do not
// support scroll continuation.
package search

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kadirpekel/doc-searcher/pkg/apperrors"
	"github.com/kadirpekel/doc-searcher/pkg/backend"
	"github.com/kadirpekel/doc-searcher/pkg/metrics"
	"github.com/kadirpekel/doc-searcher/pkg/model"
	"github.com/kadirpekel/doc-searcher/pkg/query"
	"github.com/kadirpekel/doc-searcher/pkg/response"
)

// VectorResolver computes a query vector for a search phrase, satisfied by
// the embedding client. Semantic/hybrid searches that already carry a
// QueryVector skip this call.
type VectorResolver interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Service implements the three search entry points and scroll
// continuation.
type Service struct {
	client         *backend.Client
	metrics        *metrics.Metrics
	vectors        VectorResolver
	scrollLifetime string

	mu             sync.Mutex
	knnScrollID    map[string]struct{}
	scrollMinScore map[string]*float64
}

// New builds a Service. vectors may be nil if the deployment never issues
// Semantic/Hybrid searches without a precomputed query_vector.
func New(client *backend.Client, m *metrics.Metrics, vectors VectorResolver, scrollLifetime time.Duration) *Service {
	lifetime := "1m"
	if scrollLifetime > 0 {
		lifetime = scrollLifetime.String()
	}

	return &Service{
		client:         client,
		metrics:        m,
		vectors:        vectors,
		scrollLifetime: lifetime,
		knnScrollID:    make(map[string]struct{}),
		scrollMinScore: make(map[string]*float64),
	}
}

// Search validates params, resolves a query vector via the embedding
// client when a Semantic/Hybrid request omits one, builds the backend
// query, issues it with the configured scroll lifetime, and extracts
// results.
func (s *Service) Search(ctx context.Context, params model.SearchingParams) (model.Paginated[model.FoundedDocument], error) {
	start := time.Now()

	if err := params.Validate(); err != nil {
		return model.Paginated[model.FoundedDocument]{}, apperrors.New(apperrors.Validation, "search", "search", err.Error(), err)
	}

	if needsVector(params) {
		resolved, err := s.resolveVector(ctx, params.Query)
		if err != nil {
			return model.Paginated[model.FoundedDocument]{}, err
		}
		params.QueryVector = resolved
	}

	body := query.Build(params)
	path := "/" + strings.Join(params.Indexes, ",") + "/_search?scroll=" + s.scrollLifetime

	raw, err := s.client.DoRaw(ctx, "search", backend.Request{
		Method:    http.MethodPost,
		Path:      path,
		Body:      body,
		Retryable: true,
	})
	if err != nil {
		return model.Paginated[model.FoundedDocument]{}, err
	}

	page, err := response.ExtractDocuments(raw, params.MinScore)
	if err != nil {
		return model.Paginated[model.FoundedDocument]{}, apperrors.New(apperrors.Serde, "search", "search", "failed to decode search response", err)
	}

	if page.ScrollID != nil {
		s.mu.Lock()
		if isKNNOrigin(params.Kind) {
			s.knnScrollID[*page.ScrollID] = struct{}{}
		}
		s.scrollMinScore[*page.ScrollID] = params.MinScore
		s.mu.Unlock()
	}

	if page.ScrollID != nil {
		s.metrics.RecordScrollOpened()
	}
	s.metrics.RecordSearch(string(params.Kind), time.Since(start), len(page.Items))

	return page, nil
}

// Paginate continues a scroll opened by a prior Search call. Scrolls
// opened by a Semantic or Hybrid search are rejected with
// UnsupportedForKind — the backing engine's kNN results do not support
// scroll continuation.
func (s *Service) Paginate(ctx context.Context, scrollID string) (model.Paginated[model.FoundedDocument], error) {
	s.mu.Lock()
	_, isKNN := s.knnScrollID[scrollID]
	minScore := s.scrollMinScore[scrollID]
	s.mu.Unlock()

	if isKNN {
		s.metrics.RecordScrollExpired()
		return model.Paginated[model.FoundedDocument]{}, apperrors.New(apperrors.UnsupportedForKind, "search", "paginate",
			"scroll continuation is not supported for kNN-origin results", nil)
	}

	raw, err := s.client.DoRaw(ctx, "paginate", backend.Request{
		Method: http.MethodPost,
		Path:   "/_search/scroll",
		Body: map[string]interface{}{
			"scroll":    s.scrollLifetime,
			"scroll_id": scrollID,
		},
		Retryable: true,
	})
	if err != nil {
		return model.Paginated[model.FoundedDocument]{}, err
	}

	page, err := response.ExtractDocuments(raw, minScore)
	if err != nil {
		return model.Paginated[model.FoundedDocument]{}, apperrors.New(apperrors.Serde, "search", "paginate", "failed to decode scroll response", err)
	}

	if page.ScrollID != nil {
		s.mu.Lock()
		s.scrollMinScore[*page.ScrollID] = minScore
		s.mu.Unlock()
	}

	return page, nil
}

// ClearScrolls releases scroll contexts by id, swallowing per-id
// not-found errors — an already-expired or already-cleared scroll is not
// a failure.
func (s *Service) ClearScrolls(ctx context.Context, scrollIDs []string) error {
	if len(scrollIDs) == 0 {
		return nil
	}

	err := s.client.Do(ctx, "clear_scrolls", backend.Request{
		Method: http.MethodDelete,
		Path:   "/_search/scroll",
		Body: map[string]interface{}{
			"scroll_id": scrollIDs,
		},
		Retryable: false,
	}, nil)

	if err != nil && apperrors.KindOf(err) != apperrors.IndexNotFound {
		return err
	}

	s.mu.Lock()
	for _, id := range scrollIDs {
		delete(s.knnScrollID, id)
		delete(s.scrollMinScore, id)
	}
	s.mu.Unlock()

	return nil
}

func (s *Service) resolveVector(ctx context.Context, text string) ([]float64, error) {
	if s.vectors == nil {
		return nil, apperrors.New(apperrors.Embedding, "search", "search",
			"no embedding resolver configured and request did not supply query_vector", nil)
	}
	vec, err := s.vectors.Embed(ctx, text)
	if err != nil {
		return nil, apperrors.New(apperrors.Embedding, "search", "search", "failed to resolve query vector", err)
	}
	return vec, nil
}

func needsVector(p model.SearchingParams) bool {
	return (p.Kind == model.SearchSemantic || p.Kind == model.SearchHybrid) && len(p.QueryVector) == 0
}

func isKNNOrigin(k model.SearchKind) bool {
	return k == model.SearchSemantic || k == model.SearchHybrid
}
