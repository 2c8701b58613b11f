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

// Package document implements document CRUD against an index,
// dispatching on the index's folder kind to the matching store/update
// path — a single record for Document/Preview kinds, a bulk write of one
// record per chunk for Vectors kind. Grounded on the original storage
// layer's StoreTrait/UpdateTrait per-kind implementations.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/kadirpekel/doc-searcher/pkg/apperrors"
	"github.com/kadirpekel/doc-searcher/pkg/backend"
	"github.com/kadirpekel/doc-searcher/pkg/chunking"
	"github.com/kadirpekel/doc-searcher/pkg/metrics"
	"github.com/kadirpekel/doc-searcher/pkg/model"
	"github.com/kadirpekel/doc-searcher/pkg/projection"
)

// Service performs document CRUD against a single index, dispatching on
// the index's declared kind.
type Service struct {
	client  *backend.Client
	metrics *metrics.Metrics
	chunker *chunking.Chunker
}

// New builds a Service. chunker is used only for Vectors-kind folder
// writes; it may be nil if the deployment never creates Vectors folders.
func New(client *backend.Client, m *metrics.Metrics, chunker *chunking.Chunker) *Service {
	return &Service{client: client, metrics: m, chunker: chunker}
}

// Create stores doc in index according to kind: one record for
// Document/Preview kinds (id = large_doc_id), or a bulk write of one
// record per chunk for Vectors kind (ids = large_doc_id:ordinal).
func (s *Service) Create(ctx context.Context, index string, kind model.FolderKind, doc model.LargeDocument) (model.StoredDocumentPartsInfo, error) {
	if err := doc.Validate(); err != nil {
		return model.StoredDocumentPartsInfo{}, apperrors.New(apperrors.Validation, "document", "create", err.Error(), err)
	}

	switch kind {
	case model.FolderDocument:
		part := projection.ToPart(doc)
		if err := s.indexOne(ctx, index, part.RecordID(), part); err != nil {
			s.metrics.RecordDocError("create", string(kind))
			return model.StoredDocumentPartsInfo{}, err
		}
		s.metrics.RecordDocIndexed(string(kind))
		return model.StoredDocumentPartsInfo{LargeDocID: doc.LargeDocID, FirstPartID: 0, DocPartsAmount: 1}, nil

	case model.FolderPreview:
		preview := projection.ToPreview(doc)
		if err := s.indexOne(ctx, index, doc.LargeDocID, preview); err != nil {
			s.metrics.RecordDocError("create", string(kind))
			return model.StoredDocumentPartsInfo{}, err
		}
		s.metrics.RecordDocIndexed(string(kind))
		return model.StoredDocumentPartsInfo{LargeDocID: doc.LargeDocID, FirstPartID: 0, DocPartsAmount: 1}, nil

	case model.FolderVectors:
		if s.chunker == nil {
			return model.StoredDocumentPartsInfo{}, apperrors.New(apperrors.UnsupportedForKind, "document", "create",
				"no chunker configured for this deployment", nil)
		}
		vectors := projection.ToVectors(doc, s.chunker)
		s.metrics.RecordChunkCount(string(kind), len(vectors.ChunkedText))

		info, err := s.bulkIndexChunks(ctx, index, vectors)
		if err != nil {
			s.metrics.RecordDocError("create", string(kind))
			return model.StoredDocumentPartsInfo{}, err
		}
		s.metrics.RecordDocIndexed(string(kind))
		return info, nil

	default:
		return model.StoredDocumentPartsInfo{}, apperrors.New(apperrors.Validation, "document", "create",
			"unknown folder kind", nil)
	}
}

// Update merges patch into the record stored at id. For Document/Preview
// kinds this is a full merge-then-replace; for Vectors kind, updating the
// chunk's content is rejected with UnsupportedForKind — only non-content
// chunk metadata updates are permitted.
func (s *Service) Update(ctx context.Context, index string, kind model.FolderKind, id string, patch model.LargeDocument) error {
	switch kind {
	case model.FolderDocument:
		var existing model.DocumentPart
		if err := s.getOne(ctx, index, id, &existing); err != nil {
			return err
		}
		merged := projection.MergeUpdatePart(existing, patch)
		return s.indexOne(ctx, index, id, merged)

	case model.FolderPreview:
		var existing model.DocumentPreview
		if err := s.getOne(ctx, index, id, &existing); err != nil {
			return err
		}
		if patch.FileName != "" {
			existing.FileName = patch.FileName
		}
		if patch.FilePath != "" {
			existing.FilePath = patch.FilePath
		}
		if !patch.ModifiedAt.IsZero() {
			existing.ModifiedAt = patch.ModifiedAt
		}
		return s.indexOne(ctx, index, id, existing)

	case model.FolderVectors:
		if patch.Content != "" {
			return apperrors.New(apperrors.UnsupportedForKind, "document", "update",
				"updating content on a Vectors-kind index is not supported", nil)
		}
		var existing map[string]interface{}
		if err := s.getOne(ctx, index, id, &existing); err != nil {
			return err
		}
		if patch.FileName != "" {
			existing["file_name"] = patch.FileName
		}
		if patch.FilePath != "" {
			existing["file_path"] = patch.FilePath
		}
		if !patch.ModifiedAt.IsZero() {
			existing["modified_at"] = patch.ModifiedAt
		}
		return s.indexOne(ctx, index, id, existing)

	default:
		return apperrors.New(apperrors.Validation, "document", "update", "unknown folder kind", nil)
	}
}

// Delete removes the record at id. For Vectors kind, id may be either a
// single chunk id or a bare large_doc_id; callers wanting to delete every
// chunk of a logical document should use DeleteByLargeDocID instead.
func (s *Service) Delete(ctx context.Context, index, id string) error {
	return s.client.Do(ctx, "delete_document", backend.Request{
		Method:    http.MethodDelete,
		Path:      "/" + index + "/_doc/" + id + "?refresh=true",
		Retryable: false,
	}, nil)
}

// DeleteByLargeDocID removes every chunk belonging to largeDocID from a
// Vectors-kind index via delete-by-query.
func (s *Service) DeleteByLargeDocID(ctx context.Context, index, largeDocID string) error {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"large_doc_id": largeDocID},
		},
	}
	return s.client.Do(ctx, "delete_by_large_doc_id", backend.Request{
		Method:    http.MethodPost,
		Path:      "/" + index + "/_delete_by_query?refresh=true",
		Body:      body,
		Retryable: false,
	}, nil)
}

func (s *Service) indexOne(ctx context.Context, index, id string, body interface{}) error {
	return s.client.Do(ctx, "index_one", backend.Request{
		Method:    http.MethodPut,
		Path:      "/" + index + "/_doc/" + id + "?refresh=true",
		Body:      body,
		Retryable: false,
	}, nil)
}

func (s *Service) getOne(ctx context.Context, index, id string, out interface{}) error {
	var envelope struct {
		Source json.RawMessage `json:"_source"`
	}
	if err := s.client.Do(ctx, "get_one", backend.Request{
		Method:    http.MethodGet,
		Path:      "/" + index + "/_doc/" + id,
		Retryable: true,
	}, &envelope); err != nil {
		return err
	}
	if err := json.Unmarshal(envelope.Source, out); err != nil {
		return apperrors.New(apperrors.Serde, "document", "get_one", "failed to decode stored document", err)
	}
	return nil
}

// bulkIndexChunks writes one record per chunk via the backend's bulk API,
// stripping the outer embeddings array and writing a single chunk's
// embedding onto each record (mirroring the original's exclude_embeddings
// + append_embeddings dance in Document::create_body).
func (s *Service) bulkIndexChunks(ctx context.Context, index string, vectors model.DocumentVectors) (model.StoredDocumentPartsInfo, error) {
	var buf bytes.Buffer
	for i, text := range vectors.ChunkedText {
		chunkID := model.ChunkRecordID(vectors.LargeDocID, i)

		action, err := json.Marshal(map[string]interface{}{"index": map[string]string{"_id": chunkID}})
		if err != nil {
			return model.StoredDocumentPartsInfo{}, apperrors.New(apperrors.Serde, "document", "bulk_index", "failed to encode bulk action", err)
		}
		buf.Write(action)
		buf.WriteByte('\n')

		record := map[string]interface{}{
			"large_doc_id": vectors.LargeDocID,
			"file_name":    vectors.FileName,
			"file_path":    vectors.FilePath,
			"file_size":    vectors.FileSize,
			"created_at":   vectors.CreatedAt,
			"modified_at":  vectors.ModifiedAt,
			"chunked_text": text,
			"embeddings":   []model.Embedding{vectors.Embeddings[i]},
		}
		doc, err := json.Marshal(record)
		if err != nil {
			return model.StoredDocumentPartsInfo{}, apperrors.New(apperrors.Serde, "document", "bulk_index", "failed to encode chunk record", err)
		}
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	if err := s.client.Do(ctx, "bulk_index", backend.Request{
		Method:    http.MethodPost,
		Path:      "/" + index + "/_bulk?refresh=true",
		RawBody:   buf.Bytes(),
		Retryable: false,
	}, nil); err != nil {
		return model.StoredDocumentPartsInfo{}, err
	}

	return model.StoredDocumentPartsInfo{
		LargeDocID:     vectors.LargeDocID,
		FirstPartID:    0,
		DocPartsAmount: len(vectors.ChunkedText),
	}, nil
}
