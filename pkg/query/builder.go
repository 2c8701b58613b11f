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

// Package query implements pure functions that translate
// model.SearchingParams into the backend's bool/must/filter/knn JSON query
// DSL. Every builder is a pure function of its params — no I/O, no backend
// client dependency — so they're tested as data-in/data-out.
package query

import (
	"time"

	"github.com/kadirpekel/doc-searcher/pkg/model"
)

// Body is the JSON structure sent as a search request body. Fields are kept
// as interface{} maps (mirroring the backend's own loosely-typed query DSL)
// rather than a rigid struct tree, matching the teacher's own json map
// construction style for backend request bodies.
type Body map[string]interface{}

// matchFields are the text fields searched for full-text and hybrid queries.
var matchFields = []string{"content", "file_name", "file_path"}

// excludedSourceFields are stripped from every response's _source except
// when the caller explicitly asks for DocumentVectors (embeddings are large
// and normally irrelevant to the caller).
var excludedSourceFields = []string{"embeddings"}

// tieBreakSort orders equal-scoring hits deterministically by descending
// created_at then ascending doc_part_id, so hits don't reorder between
// scroll pages.
var tieBreakSort = []Body{
	{"_score": Body{"order": "desc"}},
	{"created_at": Body{"order": "desc"}},
	{"doc_part_id": Body{"order": "asc"}},
}

// Build dispatches to the kind-specific builder, matching the tagged-variant
// dispatch idiom used by model.FolderKind for model.SearchKind.
func Build(p model.SearchingParams) Body {
	switch p.Kind {
	case model.SearchFullText:
		return buildFullText(p)
	case model.SearchSemantic:
		return buildSemantic(p)
	case model.SearchHybrid:
		return buildHybrid(p)
	case model.SearchRetrieve:
		return buildRetrieveAll(p)
	default:
		return buildFullText(p)
	}
}

func buildFullText(p model.SearchingParams) Body {
	must := Body{
		"bool": Body{
			"must":   matchQuery(p.Query, matchFields),
			"filter": filterClauses(p.Filter),
		},
	}

	body := Body{
		"size":  p.Result.Size,
		"from":  p.Result.Offset,
		"query": must,
		"sort":  tieBreakSort,
		"_source": Body{
			"excludes": excludedSourceFields,
		},
	}

	if h := highlightClause(p.Result); h != nil {
		body["highlight"] = h
	}

	return body
}

func buildSemantic(p model.SearchingParams) Body {
	candidates := p.KNNCandidates
	if candidates < p.KNNAmount {
		candidates = p.KNNAmount * 10
	}

	body := Body{
		"size": p.Result.Size,
		"knn": Body{
			"field":          "embeddings.vector",
			"k":              p.KNNAmount,
			"num_candidates": candidates,
			"query_vector":   p.QueryVector,
		},
	}

	if filters := filterClauses(p.Filter); len(filters) > 0 {
		body["knn"].(Body)["filter"] = Body{"bool": Body{"filter": filters}}
	}

	return body
}

func buildHybrid(p model.SearchingParams) Body {
	candidates := p.KNNCandidates
	if candidates < p.KNNAmount {
		candidates = p.KNNAmount * 10
	}

	body := Body{
		"size": p.Result.Size,
		"query": Body{
			"bool": Body{
				"must":   matchQuery(p.Query, matchFields),
				"filter": filterClauses(p.Filter),
			},
		},
		"knn": Body{
			"field":          "embeddings.vector",
			"k":              p.KNNAmount,
			"num_candidates": candidates,
			"query_vector":   p.QueryVector,
		},
		"sort": tieBreakSort,
		"_source": Body{
			"excludes": excludedSourceFields,
		},
	}

	if h := highlightClause(p.Result); h != nil {
		body["highlight"] = h
	}

	return body
}

// buildRetrieveAll sorts by created_at descending with doc_part_id ascending
// as a tie-break, independent of the caller's ResultParams.Order — unlike
// the scored query kinds, retrieve-all has no relevance score to order by.
func buildRetrieveAll(p model.SearchingParams) Body {
	body := Body{
		"size": p.Result.Size,
		"from": p.Result.Offset,
		"query": Body{
			"bool": Body{
				"filter": filterClauses(p.Filter),
			},
		},
		"sort": []Body{
			{"created_at": Body{"order": "desc"}},
			{"doc_part_id": Body{"order": "asc"}},
		},
	}
	return body
}

func matchQuery(q string, fields []string) Body {
	if q == "" {
		return Body{"match_all": Body{}}
	}
	return Body{
		"multi_match": Body{
			"query":  q,
			"fields": fields,
		},
	}
}

// filterClauses translates model.FilterParams into a list of bool-filter
// clauses (range/term/geo_distance), grounded on the original's
// BoolMustFilter range/term builder chain.
func filterClauses(f *model.FilterParams) []Body {
	clauses := []Body{}
	if f == nil {
		return clauses
	}

	if f.DocPartID != nil {
		clauses = append(clauses, Body{"term": Body{"doc_part_id": *f.DocPartID}})
	}
	if f.SizeFrom != nil || f.SizeTo != nil {
		clauses = append(clauses, Body{"range": Body{"file_size": rangeClause(f.SizeFrom, f.SizeTo)}})
	}
	if f.CreatedFrom != nil || f.CreatedTo != nil {
		clauses = append(clauses, Body{"range": Body{"created_at": rangeClauseTime(f.CreatedFrom, f.CreatedTo)}})
	}
	if f.ModifiedFrom != nil || f.ModifiedTo != nil {
		clauses = append(clauses, Body{"range": Body{"modified_at": rangeClauseTime(f.ModifiedFrom, f.ModifiedTo)}})
	}
	if f.PipelineID != nil {
		clauses = append(clauses, Body{"term": Body{"metadata.pipeline_id": *f.PipelineID}})
	}
	if f.Source != nil {
		clauses = append(clauses, Body{"term": Body{"metadata.source": *f.Source}})
	}
	if f.SemanticSource != nil {
		clauses = append(clauses, Body{"term": Body{"metadata.semantic_source": *f.SemanticSource}})
	}
	if f.DocClass != nil {
		classClause := Body{"term": Body{"metadata.classes.name": *f.DocClass}}
		if f.DocClassProbability != nil {
			clauses = append(clauses, Body{"range": Body{"metadata.classes.probability": Body{"gte": *f.DocClassProbability}}})
		}
		clauses = append(clauses, classClause)
	}
	if f.Distance != nil && len(f.LocationCoords) == 2 {
		clauses = append(clauses, Body{
			"geo_distance": Body{
				"distance": *f.Distance,
				"metadata.locations": Body{
					"lon": f.LocationCoords[0],
					"lat": f.LocationCoords[1],
				},
			},
		})
	}

	return clauses
}

func rangeClause(from, to *int64) Body {
	r := Body{}
	if from != nil {
		r["gte"] = *from
	}
	if to != nil {
		r["lte"] = *to
	}
	return r
}

func rangeClauseTime(from, to *time.Time) Body {
	r := Body{}
	if from != nil {
		r["gte"] = from.Format(time.RFC3339)
	}
	if to != nil {
		r["lte"] = to.Format(time.RFC3339)
	}
	return r
}

func highlightClause(r model.ResultParams) Body {
	if r.HighlightItems == nil && r.HighlightItemSize == nil {
		return nil
	}

	fragSize := 150
	if r.HighlightItemSize != nil {
		fragSize = *r.HighlightItemSize
	}
	numFrags := 3
	if r.HighlightItems != nil {
		numFrags = *r.HighlightItems
	}

	fields := Body{}
	for _, f := range matchFields {
		fields[f] = Body{
			"fragment_size":       fragSize,
			"number_of_fragments": numFrags,
		}
	}

	return Body{"fields": fields}
}
