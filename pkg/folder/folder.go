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

// Package folder implements index (folder) lifecycle against the
// backend, overlaid with the info-folder metadata record every non-system
// folder carries (its human name, kind and system flag), plus a
// read-mostly TTL cache in front of that overlay. Grounded on the original
// engine's create_index/delete_index/load_folder_info/delete_folder_info/
// filter_folders helpers.
package folder

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kadirpekel/doc-searcher/pkg/apperrors"
	"github.com/kadirpekel/doc-searcher/pkg/backend"
	"github.com/kadirpekel/doc-searcher/pkg/metrics"
	"github.com/kadirpekel/doc-searcher/pkg/model"
)

// CacheConfig configures the info-folder overlay's TTL cache.
type CacheConfig struct {
	// TTL is how long a cached info-folder record is served before a fresh
	// backend read is required. Zero disables caching (always re-read).
	TTL time.Duration
	// MaxEntries bounds the number of distinct folder ids tracked.
	MaxEntries int
}

type cacheEntry struct {
	record    *model.InfoFolderRecord
	expiresAt time.Time
}

// Service manages folder (index) lifecycle and the info-folder overlay.
type Service struct {
	client  *backend.Client
	metrics *metrics.Metrics
	cache   *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	mu      sync.RWMutex
}

// New builds a Service. cfg.MaxEntries <= 0 falls back to a bound of 1024;
// cfg.TTL <= 0 disables caching outright.
func New(client *backend.Client, m *metrics.Metrics, cfg CacheConfig) (*Service, error) {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1024
	}

	cache, err := lru.New[string, cacheEntry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("folder: failed to build info-folder cache: %w", err)
	}

	return &Service{
		client:  client,
		metrics: m,
		cache:   cache,
		ttl:     cfg.TTL,
	}, nil
}

// Create provisions a new index and, for non-system folders, its
// info-folder overlay record. On overlay-write failure the index is rolled
// back (Absent -> Created -> Registered -> Absent on error).
func (s *Service) Create(ctx context.Context, p model.CreateFolderParams) error {
	if err := p.Validate(); err != nil {
		return apperrors.New(apperrors.Validation, "folder", "create", err.Error(), err)
	}

	if err := s.createIndex(ctx, p); err != nil {
		return err
	}
	s.metrics.RecordIndexOp("create", string(p.Kind))

	if p.IsSystem {
		return nil
	}

	record := model.InfoFolderRecord{IndexID: p.ID, Name: p.Name, Kind: p.Kind, IsSystem: p.IsSystem}
	if err := s.writeInfoFolder(ctx, record); err != nil {
		s.metrics.RecordIndexOpError("create", string(p.Kind))
		_ = s.deleteIndex(ctx, p.ID) // rollback: Created -> Absent
		return err
	}

	s.invalidate(p.ID)
	return nil
}

// Delete removes an index and its info-folder overlay record, if any.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.deleteIndex(ctx, id); err != nil {
		s.metrics.RecordIndexOpError("delete", "")
		return err
	}
	s.metrics.RecordIndexOp("delete", "")

	_ = s.deleteInfoFolder(ctx, id) // best-effort; absence is not an error
	s.invalidate(id)
	return nil
}

// Describe returns a folder's current shape (kind, size, doc count) plus
// its overlay name if one is cached or can be loaded.
func (s *Service) Describe(ctx context.Context, id string) (model.Folder, error) {
	var folder model.Folder
	if err := s.client.Do(ctx, "describe_folder", backend.Request{
		Method:    http.MethodGet,
		Path:      "/" + id + "/_stats",
		Retryable: true,
	}, &folder); err != nil {
		return model.Folder{}, err
	}
	folder.ID = id

	if record, err := s.loadInfoFolder(ctx, id); err == nil && record != nil {
		folder.Name = record.Name
		folder.Kind = record.Kind
		folder.IsSystem = record.IsSystem
	}

	return folder, nil
}

// List retrieves every folder known to the backend and filters/names them
// against the info-folder overlay (ported from filter_folders): system
// folders are hidden unless showAll is set.
func (s *Service) List(ctx context.Context, showAll bool) ([]model.Folder, error) {
	var raw []model.Folder
	if err := s.client.Do(ctx, "list_folders", backend.Request{
		Method:    http.MethodGet,
		Path:      "/_cat/indices?format=json",
		Retryable: true,
	}, &raw); err != nil {
		return nil, err
	}

	filtered := make([]model.Folder, 0, len(raw))
	for _, f := range raw {
		if f.ID == model.InfoFolderID {
			continue
		}

		record, err := s.loadInfoFolder(ctx, f.ID)
		if err != nil || record == nil {
			if showAll {
				filtered = append(filtered, f)
			}
			continue
		}

		if !showAll && record.IsSystem {
			continue
		}

		f.Name = record.Name
		f.Kind = record.Kind
		f.IsSystem = record.IsSystem
		filtered = append(filtered, f)
	}

	return filtered, nil
}

func (s *Service) createIndex(ctx context.Context, p model.CreateFolderParams) error {
	return s.client.Do(ctx, "create_folder", backend.Request{
		Method:    http.MethodPut,
		Path:      "/" + p.ID,
		Body:      schemaForKind(p),
		Retryable: false,
	}, nil)
}

func (s *Service) deleteIndex(ctx context.Context, id string) error {
	return s.client.Do(ctx, "delete_folder", backend.Request{
		Method:    http.MethodDelete,
		Path:      "/" + id,
		Retryable: false,
	}, nil)
}

func (s *Service) writeInfoFolder(ctx context.Context, record model.InfoFolderRecord) error {
	return s.client.Do(ctx, "write_info_folder", backend.Request{
		Method:    http.MethodPut,
		Path:      "/" + model.InfoFolderID + "/_doc/" + record.IndexID + "?refresh=true",
		Body:      record,
		Retryable: false,
	}, nil)
}

func (s *Service) deleteInfoFolder(ctx context.Context, id string) error {
	return s.client.Do(ctx, "delete_info_folder", backend.Request{
		Method:    http.MethodDelete,
		Path:      "/" + model.InfoFolderID + "/_doc/" + id + "?refresh=true",
		Retryable: false,
	}, nil)
}

// loadInfoFolder returns the overlay record for id, serving from the TTL
// cache when fresh. Invalidation is explicit on write, not a background
// sweep.
func (s *Service) loadInfoFolder(ctx context.Context, id string) (*model.InfoFolderRecord, error) {
	if s.ttl > 0 {
		s.mu.RLock()
		entry, ok := s.cache.Get(id)
		s.mu.RUnlock()
		if ok && time.Now().Before(entry.expiresAt) {
			s.metrics.RecordInfoFolderCacheOutcome("hit")
			return entry.record, nil
		}
	}
	s.metrics.RecordInfoFolderCacheOutcome("miss")

	var record model.InfoFolderRecord
	err := s.client.Do(ctx, "load_info_folder", backend.Request{
		Method:    http.MethodGet,
		Path:      "/" + model.InfoFolderID + "/_doc/" + id,
		Retryable: true,
	}, &record)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.IndexNotFound {
			return nil, nil
		}
		return nil, err
	}

	if s.ttl > 0 {
		s.mu.Lock()
		s.cache.Add(id, cacheEntry{record: &record, expiresAt: time.Now().Add(s.ttl)})
		s.mu.Unlock()
	}

	return &record, nil
}

func (s *Service) invalidate(id string) {
	s.mu.Lock()
	s.cache.Remove(id)
	s.mu.Unlock()
}

// schemaForKind builds the backend mapping body for a new folder, mirroring
// the original's build_schema_by_folder_type dispatch on folder kind.
func schemaForKind(p model.CreateFolderParams) map[string]interface{} {
	properties := map[string]interface{}{
		"large_doc_id": map[string]interface{}{"type": "keyword"},
		"file_name":    map[string]interface{}{"type": "text"},
		"file_path":    map[string]interface{}{"type": "keyword"},
		"file_size":    map[string]interface{}{"type": "long"},
		"created_at":   map[string]interface{}{"type": "date"},
		"modified_at":  map[string]interface{}{"type": "date"},
	}

	switch p.Kind {
	case model.FolderDocument, model.FolderPreview:
		properties["content"] = map[string]interface{}{"type": "text"}
		properties["doc_part_id"] = map[string]interface{}{"type": "integer"}
	case model.FolderVectors:
		properties["chunked_text"] = map[string]interface{}{"type": "text"}
		properties["embeddings"] = map[string]interface{}{
			"type": "nested",
			"properties": map[string]interface{}{
				"chunk_id":     map[string]interface{}{"type": "keyword"},
				"chunked_text": map[string]interface{}{"type": "text"},
				"vector": map[string]interface{}{
					"type": "dense_vector",
					"dims": p.KNNDimension,
				},
			},
		}
	case model.FolderInfoFolder:
		properties = map[string]interface{}{
			"index_id":  map[string]interface{}{"type": "keyword"},
			"name":      map[string]interface{}{"type": "keyword"},
			"kind":      map[string]interface{}{"type": "keyword"},
			"is_system": map[string]interface{}{"type": "boolean"},
		}
	}

	return map[string]interface{}{
		"mappings": map[string]interface{}{"properties": properties},
	}
}
