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

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/doc-searcher/pkg/model"
)

func TestBuildFullTextUsesMultiMatch(t *testing.T) {
	body := Build(model.SearchingParams{
		Kind:    model.SearchFullText,
		Indexes: []string{"docs"},
		Query:   "hello world",
		Result:  model.ResultParams{Size: 10, Offset: 0},
	})

	query, ok := body["query"].(Body)
	require.True(t, ok)
	boolClause, ok := query["bool"].(Body)
	require.True(t, ok)
	must, ok := boolClause["must"].(Body)
	require.True(t, ok)
	multiMatch, ok := must["multi_match"].(Body)
	require.True(t, ok)
	assert.Equal(t, "hello world", multiMatch["query"])

	source, ok := body["_source"].(Body)
	require.True(t, ok)
	assert.Contains(t, source["excludes"], "embeddings")
}

func TestBuildFullTextEmptyQueryMatchesAll(t *testing.T) {
	body := Build(model.SearchingParams{
		Kind:    model.SearchFullText,
		Indexes: []string{"docs"},
		Result:  model.ResultParams{Size: 10},
	})

	query := body["query"].(Body)["bool"].(Body)["must"].(Body)
	assert.Contains(t, query, "match_all")
}

func TestBuildSemanticUsesKNNClause(t *testing.T) {
	vec := []float64{0.1, 0.2, 0.3}
	body := Build(model.SearchingParams{
		Kind:          model.SearchSemantic,
		Indexes:       []string{"docs-vectors"},
		KNNAmount:     5,
		KNNCandidates: 50,
		QueryVector:   vec,
		Result:        model.ResultParams{Size: 5},
	})

	knn, ok := body["knn"].(Body)
	require.True(t, ok)
	assert.Equal(t, 5, knn["k"])
	assert.Equal(t, 50, knn["num_candidates"])
	assert.Equal(t, vec, knn["query_vector"])
}

func TestBuildSemanticDefaultsCandidatesFromAmount(t *testing.T) {
	body := Build(model.SearchingParams{
		Kind:        model.SearchSemantic,
		Indexes:     []string{"docs-vectors"},
		KNNAmount:   5,
		QueryVector: []float64{1},
		Result:      model.ResultParams{Size: 5},
	})

	knn := body["knn"].(Body)
	assert.Equal(t, 50, knn["num_candidates"])
}

func TestBuildHybridCombinesMatchAndKNN(t *testing.T) {
	body := Build(model.SearchingParams{
		Kind:        model.SearchHybrid,
		Indexes:     []string{"docs-vectors"},
		Query:       "hello",
		KNNAmount:   5,
		QueryVector: []float64{1, 2},
		Result:      model.ResultParams{Size: 5},
	})

	assert.Contains(t, body, "query")
	assert.Contains(t, body, "knn")
}

func TestBuildRetrieveAllSortsByCreatedAtDescending(t *testing.T) {
	body := Build(model.SearchingParams{
		Kind:    model.SearchRetrieve,
		Indexes: []string{"docs"},
		Result:  model.ResultParams{Size: 100, Order: model.OrderAsc},
	})

	sort, ok := body["sort"].([]Body)
	require.True(t, ok)
	require.Len(t, sort, 2)
	created := sort[0]["created_at"].(Body)
	assert.Equal(t, "desc", created["order"])
	docPart := sort[1]["doc_part_id"].(Body)
	assert.Equal(t, "asc", docPart["order"])
}

func TestBuildFullTextIncludesTieBreakSort(t *testing.T) {
	body := Build(model.SearchingParams{
		Kind:    model.SearchFullText,
		Indexes: []string{"docs"},
		Query:   "hello",
		Result:  model.ResultParams{Size: 10},
	})

	sort, ok := body["sort"].([]Body)
	require.True(t, ok)
	require.Len(t, sort, 3)
	assert.Equal(t, "desc", sort[1]["created_at"].(Body)["order"])
	assert.Equal(t, "asc", sort[2]["doc_part_id"].(Body)["order"])
}

func TestBuildHybridIncludesTieBreakSort(t *testing.T) {
	body := Build(model.SearchingParams{
		Kind:        model.SearchHybrid,
		Indexes:     []string{"docs-vectors"},
		Query:       "hello",
		KNNAmount:   5,
		QueryVector: []float64{1, 2},
		Result:      model.ResultParams{Size: 5},
	})

	sort, ok := body["sort"].([]Body)
	require.True(t, ok)
	require.Len(t, sort, 3)
}

func TestFilterClausesBuildsRangeAndTermClauses(t *testing.T) {
	sizeFrom := int64(100)
	sizeTo := int64(2000)
	docClass := "invoice"
	prob := 0.8

	clauses := filterClauses(&model.FilterParams{
		SizeFrom:            &sizeFrom,
		SizeTo:              &sizeTo,
		DocClass:            &docClass,
		DocClassProbability: &prob,
	})

	assert.Len(t, clauses, 3)
}

func TestFilterClausesNilFilterReturnsEmpty(t *testing.T) {
	clauses := filterClauses(nil)
	assert.Empty(t, clauses)
}

func TestHighlightClauseOmittedWhenNotRequested(t *testing.T) {
	body := Build(model.SearchingParams{
		Kind:    model.SearchFullText,
		Indexes: []string{"docs"},
		Query:   "x",
		Result:  model.ResultParams{Size: 10},
	})
	assert.NotContains(t, body, "highlight")
}

func TestHighlightClauseIncludedWhenRequested(t *testing.T) {
	n := 3
	size := 200
	body := Build(model.SearchingParams{
		Kind:    model.SearchFullText,
		Indexes: []string{"docs"},
		Query:   "x",
		Result:  model.ResultParams{Size: 10, HighlightItems: &n, HighlightItemSize: &size},
	})
	assert.Contains(t, body, "highlight")
}
