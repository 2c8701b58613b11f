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

package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDocumentsSkipsUndecodableHits(t *testing.T) {
	body := []byte(`{
		"_scroll_id": "abc123",
		"hits": {
			"hits": [
				{"_id": "1", "_index": "docs", "_score": 1.5, "_source": {"large_doc_id": "1", "file_name": "a.txt"}},
				{"_id": "2", "_index": "docs", "_score": 1.0, "_source": "not-an-object"}
			]
		}
	}`)

	page, err := ExtractDocuments(body, nil)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "1", page.Items[0].ID)
	require.NotNil(t, page.ScrollID)
	assert.Equal(t, "abc123", *page.ScrollID)
}

func TestExtractDocumentsAttachesHighlight(t *testing.T) {
	body := []byte(`{
		"hits": {
			"hits": [
				{
					"_id": "1", "_index": "docs",
					"_source": {"large_doc_id": "1"},
					"highlight": {"content": ["<em>hello</em> world"]}
				}
			]
		}
	}`)

	page, err := ExtractDocuments(body, nil)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, []string{"<em>hello</em> world"}, page.Items[0].Highlight)
}

func TestExtractDocumentsNoScrollID(t *testing.T) {
	body := []byte(`{"hits": {"hits": []}}`)

	page, err := ExtractDocuments(body, nil)
	require.NoError(t, err)
	assert.Nil(t, page.ScrollID)
	assert.Empty(t, page.Items)
}

func TestExtractDocumentsDropsHitsBelowMinScore(t *testing.T) {
	body := []byte(`{
		"hits": {
			"hits": [
				{"_id": "1", "_index": "docs", "_score": 1.5, "_source": {"large_doc_id": "1"}},
				{"_id": "2", "_index": "docs", "_score": 0.4, "_source": {"large_doc_id": "2"}}
			]
		}
	}`)

	minScore := 1.0
	page, err := ExtractDocuments(body, &minScore)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "1", page.Items[0].ID)
}

func TestExtractVectorsParsesEmbeddings(t *testing.T) {
	body := []byte(`{
		"hits": {
			"hits": [
				{
					"_id": "1:0", "_index": "docs-vectors",
					"_source": {
						"large_doc_id": "1",
						"chunked_text": ["hello"],
						"embeddings": [{"chunk_id": "1:0", "vector": [0.1, 0.2], "chunked_text": "hello"}]
					}
				}
			]
		}
	}`)

	page, err := ExtractVectors(body)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Len(t, page.Items[0].Embeddings, 1)
}
