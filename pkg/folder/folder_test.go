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

package folder

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/doc-searcher/pkg/backend"
	"github.com/kadirpekel/doc-searcher/pkg/model"
)

func newTestService(t *testing.T, handler http.HandlerFunc, cacheTTL time.Duration) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := backend.New(backend.Config{
		BaseURL:        srv.URL,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     0,
	}, nil)

	svc, err := New(client, nil, CacheConfig{TTL: cacheTTL, MaxEntries: 16})
	require.NoError(t, err)
	return svc
}

func TestCreateWritesInfoFolderForNonSystemFolder(t *testing.T) {
	var infoFolderWrites int32

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/docs":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/info-folder/_doc/docs":
			atomic.AddInt32(&infoFolderWrites, 1)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, time.Minute)

	err := svc.Create(t.Context(), model.CreateFolderParams{ID: "docs", Kind: model.FolderDocument, Name: "Docs"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&infoFolderWrites))
}

func TestCreateRollsBackIndexOnInfoFolderWriteFailure(t *testing.T) {
	var deletedIndex int32

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/docs":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/info-folder/_doc/docs":
			w.WriteHeader(http.StatusInternalServerError)
		case r.Method == http.MethodDelete && r.URL.Path == "/docs":
			atomic.AddInt32(&deletedIndex, 1)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, time.Minute)

	err := svc.Create(t.Context(), model.CreateFolderParams{ID: "docs", Kind: model.FolderDocument})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&deletedIndex))
}

func TestCreateSkipsInfoFolderForSystemFolder(t *testing.T) {
	var infoFolderWrites int32

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/info-folder":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/info-folder/_doc/info-folder":
			atomic.AddInt32(&infoFolderWrites, 1)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, time.Minute)

	err := svc.Create(t.Context(), model.CreateFolderParams{
		ID: model.InfoFolderID, Kind: model.FolderInfoFolder, IsSystem: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&infoFolderWrites))
}

func TestLoadInfoFolderServesFromCacheWithinTTL(t *testing.T) {
	var backendReads int32

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&backendReads, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"index_id":"docs","name":"Docs","kind":"document","is_system":false}`))
	}, time.Minute)

	ctx := t.Context()
	rec1, err := svc.loadInfoFolder(ctx, "docs")
	require.NoError(t, err)
	require.NotNil(t, rec1)

	rec2, err := svc.loadInfoFolder(ctx, "docs")
	require.NoError(t, err)
	require.NotNil(t, rec2)

	assert.Equal(t, int32(1), atomic.LoadInt32(&backendReads))
	assert.Equal(t, "Docs", rec2.Name)
}

func TestDeleteInvalidatesCache(t *testing.T) {
	var backendReads int32

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/info-folder/_doc/docs":
			atomic.AddInt32(&backendReads, 1)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"index_id":"docs","name":"Docs","kind":"document","is_system":false}`))
		default:
			w.WriteHeader(http.StatusOK)
		}
	}, time.Minute)

	ctx := t.Context()
	_, err := svc.loadInfoFolder(ctx, "docs")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "docs"))

	_, err = svc.loadInfoFolder(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&backendReads))
}
