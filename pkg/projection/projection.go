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

// Package projection converts a model.LargeDocument into
// the representation its target folder kind stores (DocumentPart for
// Document kind, DocumentPreview for Preview kind, DocumentVectors for
// Vectors kind), and merging
// updates back into a stored record without losing identity fields.
// Projection never invents content — chunking splits what's there, it
// doesn't summarize or pad it.
package projection

import (
	"github.com/kadirpekel/doc-searcher/pkg/apperrors"
	"github.com/kadirpekel/doc-searcher/pkg/chunking"
	"github.com/kadirpekel/doc-searcher/pkg/model"
)

// ToPart projects a LargeDocument into a single DocumentPart for a
// Document-kind index: one-to-one, doc_part_id is always 0.
func ToPart(doc model.LargeDocument) model.DocumentPart {
	return model.DocumentPart{
		LargeDocument: doc,
		DocPartID:     0,
	}
}

// ToPreview projects a LargeDocument into its lightweight DocumentPreview:
// identity and file attributes, content dropped.
func ToPreview(doc model.LargeDocument) model.DocumentPreview {
	return model.DocumentPreview{
		LargeDocID: doc.LargeDocID,
		DocPartID:  0,
		FileName:   doc.FileName,
		FilePath:   doc.FilePath,
		FileSize:   doc.FileSize,
		CreatedAt:  doc.CreatedAt,
		ModifiedAt: doc.ModifiedAt,
	}
}

// PreviewFromPart derives a DocumentPreview from an already-stored
// DocumentPart, used when an index's preview folder mirrors its document
// folder's identity fields without content.
func PreviewFromPart(part model.DocumentPart) model.DocumentPreview {
	return model.DocumentPreview{
		LargeDocID: part.LargeDocID,
		DocPartID:  part.DocPartID,
		FileName:   part.FileName,
		FilePath:   part.FilePath,
		FileSize:   part.FileSize,
		CreatedAt:  part.CreatedAt,
		ModifiedAt: part.ModifiedAt,
	}
}

// ToVectors chunks a LargeDocument's content with chunker and projects it
// into a DocumentVectors record: chunked_text and one Embedding placeholder
// per chunk, vectors left empty for a later embedding pass. The returned
// record always satisfies |chunked_text| == |embeddings|.
func ToVectors(doc model.LargeDocument, chunker *chunking.Chunker) model.DocumentVectors {
	parts := chunker.Chunk(doc.Content)

	v := model.DocumentVectors{
		LargeDocID:  doc.LargeDocID,
		FileName:    doc.FileName,
		FilePath:    doc.FilePath,
		FileSize:    doc.FileSize,
		CreatedAt:   doc.CreatedAt,
		ModifiedAt:  doc.ModifiedAt,
		ChunkedText: parts,
		Embeddings:  make([]model.Embedding, len(parts)),
	}

	for i, text := range parts {
		v.Embeddings[i] = model.Embedding{
			ChunkID:     model.ChunkRecordID(doc.LargeDocID, i),
			ChunkedText: text,
		}
	}

	return v
}

// MergeUpdatePart applies a partial field update onto an existing
// DocumentPart, replacing only the non-zero fields present in patch.
// Identity fields (large_doc_id, doc_part_id, document_ssdeep) and content
// always come from existing, never from patch — a preview-style field
// update cannot rewrite a document's content or its identity fingerprint.
func MergeUpdatePart(existing model.DocumentPart, patch model.LargeDocument) model.DocumentPart {
	merged := existing

	if patch.FileName != "" {
		merged.FileName = patch.FileName
	}
	if patch.FilePath != "" {
		merged.FilePath = patch.FilePath
	}
	if patch.FileSize != 0 {
		merged.FileSize = patch.FileSize
	}
	if !patch.CreatedAt.IsZero() {
		merged.CreatedAt = patch.CreatedAt
	}
	if !patch.ModifiedAt.IsZero() {
		merged.ModifiedAt = patch.ModifiedAt
	}
	if patch.Metadata != nil {
		merged.Metadata = patch.Metadata
	}

	return merged
}

// MergeUpdateChunk checks a partial field update against a single chunk of a
// Vectors-kind record and returns existing unchanged: an Embedding has no
// field a patch sets other than its text. Updating chunked_text (content)
// is not permitted —
// content changes require re-chunking the whole document, not patching one
// record — and is rejected with apperrors.UnsupportedForKind.
func MergeUpdateChunk(existing model.Embedding, patch model.LargeDocument) (model.Embedding, error) {
	if patch.Content != "" {
		return model.Embedding{}, apperrors.New(apperrors.UnsupportedForKind, "projection", "update_chunk",
			"updating content on a single vector chunk is not supported; re-ingest the document instead", nil)
	}
	return existing, nil
}
