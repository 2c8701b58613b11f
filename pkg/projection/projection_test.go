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

package projection

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/doc-searcher/pkg/apperrors"
	"github.com/kadirpekel/doc-searcher/pkg/chunking"
	"github.com/kadirpekel/doc-searcher/pkg/model"
)

func sampleDoc() model.LargeDocument {
	return model.LargeDocument{
		LargeDocID: "doc-1",
		FileName:   "a.txt",
		FilePath:   "/a.txt",
		FileSize:   100,
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ModifiedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Content:    "hello world",
	}
}

func TestToPartCopiesFieldsWithZeroOrdinal(t *testing.T) {
	part := ToPart(sampleDoc())
	assert.Equal(t, "doc-1", part.LargeDocID)
	assert.Equal(t, 0, part.DocPartID)
	assert.Equal(t, "hello world", part.Content)
}

func TestToPreviewDropsContent(t *testing.T) {
	preview := ToPreview(sampleDoc())
	assert.Equal(t, "doc-1", preview.LargeDocID)
	assert.Equal(t, "a.txt", preview.FileName)
}

func TestToVectorsMatchesChunkedTextAndEmbeddingsLength(t *testing.T) {
	chunker, err := chunking.New(chunking.Config{TokenLimit: 50})
	require.NoError(t, err)

	doc := sampleDoc()
	doc.Content = strings.Repeat("a moderately long sentence here. ", 50)

	vectors := ToVectors(doc, chunker)
	require.NoError(t, vectors.Validate(0))
	assert.Equal(t, len(vectors.ChunkedText), len(vectors.Embeddings))
	assert.True(t, len(vectors.ChunkedText) > 1)

	for i, emb := range vectors.Embeddings {
		assert.Equal(t, model.ChunkRecordID("doc-1", i), emb.ChunkID)
		assert.Equal(t, vectors.ChunkedText[i], emb.ChunkedText)
		assert.Empty(t, emb.Vector)
	}
}

func TestToVectorsNeverInventsContent(t *testing.T) {
	chunker, err := chunking.New(chunking.Config{TokenLimit: 512})
	require.NoError(t, err)

	doc := sampleDoc()
	vectors := ToVectors(doc, chunker)

	var rejoined strings.Builder
	for _, c := range vectors.ChunkedText {
		rejoined.WriteString(c)
	}
	assert.Equal(t, doc.Content, rejoined.String())
}

func TestMergeUpdatePartPreservesUnsetFields(t *testing.T) {
	existing := ToPart(sampleDoc())
	patch := model.LargeDocument{FileName: "renamed.txt"}

	merged := MergeUpdatePart(existing, patch)
	assert.Equal(t, "renamed.txt", merged.FileName)
	assert.Equal(t, "doc-1", merged.LargeDocID)
	assert.Equal(t, "hello world", merged.Content)
}

func TestMergeUpdatePartIgnoresPatchContentAndSsdeep(t *testing.T) {
	existing := ToPart(sampleDoc())
	existing.DocumentSsdeep = "3:abc:def"

	patch := model.LargeDocument{
		Content:        "attacker-supplied replacement text",
		DocumentSsdeep: "3:xyz:xyz",
		FileName:       "renamed.txt",
	}

	merged := MergeUpdatePart(existing, patch)
	assert.Equal(t, "hello world", merged.Content)
	assert.Equal(t, "3:abc:def", merged.DocumentSsdeep)
	assert.Equal(t, "doc-1", merged.LargeDocID)
	assert.Equal(t, 0, merged.DocPartID)
	assert.Equal(t, "renamed.txt", merged.FileName)
}

func TestMergeUpdateChunkRejectsContentChange(t *testing.T) {
	_, err := MergeUpdateChunk(model.Embedding{ChunkedText: "old"}, model.LargeDocument{Content: "new"})
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.UnsupportedForKind, appErr.Kind)
}
