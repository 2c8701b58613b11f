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

package document

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/doc-searcher/pkg/apperrors"
	"github.com/kadirpekel/doc-searcher/pkg/backend"
	"github.com/kadirpekel/doc-searcher/pkg/chunking"
	"github.com/kadirpekel/doc-searcher/pkg/model"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := backend.New(backend.Config{BaseURL: srv.URL, RequestTimeout: 5 * time.Second}, nil)
	chunker, err := chunking.New(chunking.Config{TokenLimit: 50})
	require.NoError(t, err)

	return New(client, nil, chunker)
}

func sampleDoc() model.LargeDocument {
	return model.LargeDocument{
		LargeDocID: "doc-1",
		FileName:   "a.txt",
		Content:    "hello world",
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ModifiedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateDocumentKindIndexesOneRecord(t *testing.T) {
	var gotPath, gotMethod string

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	})

	info, err := svc.Create(t.Context(), "docs", model.FolderDocument, sampleDoc())
	require.NoError(t, err)
	assert.Equal(t, 1, info.DocPartsAmount)
	assert.Equal(t, "/docs/_doc/doc-1", gotPath)
	assert.Equal(t, http.MethodPut, gotMethod)
}

func TestCreateVectorsKindBulkIndexesOneRecordPerChunk(t *testing.T) {
	var body string

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		assert.Equal(t, "/docs-vectors/_bulk", strings.Split(r.URL.RequestURI(), "?")[0])
		w.WriteHeader(http.StatusOK)
	})

	doc := sampleDoc()
	doc.Content = strings.Repeat("a moderately long sentence here. ", 40)

	info, err := svc.Create(t.Context(), "docs-vectors", model.FolderVectors, doc)
	require.NoError(t, err)
	assert.True(t, info.DocPartsAmount > 1)
	assert.Contains(t, body, `"_id":"doc-1:0"`)
}

func TestCreateRejectsVectorsWithoutChunker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := backend.New(backend.Config{BaseURL: srv.URL, RequestTimeout: time.Second}, nil)
	svc := New(client, nil, nil)

	_, err := svc.Create(t.Context(), "docs-vectors", model.FolderVectors, sampleDoc())
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.UnsupportedForKind, appErr.Kind)
}

func TestUpdateVectorsKindRejectsContentChange(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	err := svc.Update(t.Context(), "docs-vectors", model.FolderVectors, "doc-1:0", model.LargeDocument{Content: "new"})
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.UnsupportedForKind, appErr.Kind)
}

func TestDeleteByLargeDocIDUsesDeleteByQuery(t *testing.T) {
	var gotPath string
	var gotBody string

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = strings.Split(r.URL.RequestURI(), "?")[0]
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	})

	err := svc.DeleteByLargeDocID(t.Context(), "docs-vectors", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "/docs-vectors/_delete_by_query", gotPath)
	assert.Contains(t, gotBody, "doc-1")
}
