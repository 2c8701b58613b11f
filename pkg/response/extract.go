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

// Package response parses a raw backend search/scroll response into
// model.Paginated results, attaching highlight fragments and skipping
// (with a logged warning) any hit that fails to decode rather than
// failing the whole page.
package response

import (
	"encoding/json"
	"log/slog"

	"github.com/kadirpekel/doc-searcher/pkg/model"
)

// rawEnvelope mirrors the subset of the backend's search response JSON this
// package needs: hit list, per-hit source/score/highlight, and scroll id.
type rawEnvelope struct {
	ScrollID *string `json:"_scroll_id,omitempty"`
	Hits     struct {
		Hits []rawHit `json:"hits"`
	} `json:"hits"`
}

type rawHit struct {
	ID        string          `json:"_id"`
	Index     string          `json:"_index"`
	Score     *float64        `json:"_score"`
	Source    json.RawMessage `json:"_source"`
	Highlight map[string][]string `json:"highlight,omitempty"`
}

// ExtractDocuments parses a full-text/hybrid/retrieve search response into
// the founded-document envelope, skipping any hit whose _source fails to
// decode as model.LargeDocument fields (logged at Warn). When minScore is
// non-nil, hits scoring below it are dropped from the page entirely —
// applied post-hoc here rather than pushed into the backend query, since
// hybrid scores are the backend's own blended ranking value.
func ExtractDocuments(body []byte, minScore *float64) (model.Paginated[model.FoundedDocument], error) {
	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return model.Paginated[model.FoundedDocument]{}, err
	}

	items := make([]model.FoundedDocument, 0, len(env.Hits.Hits))
	for _, hit := range env.Hits.Hits {
		if minScore != nil && (hit.Score == nil || *hit.Score < *minScore) {
			continue
		}

		var part model.DocumentPart
		if err := json.Unmarshal(hit.Source, &part); err != nil {
			slog.Warn("skipping hit with undecodable source",
				"index", hit.Index, "id", hit.ID, "error", err)
			continue
		}

		part.Highlight = flattenHighlight(hit.Highlight)

		items = append(items, model.FoundedDocument{
			ID:        hit.ID,
			Index:     hit.Index,
			Score:     hit.Score,
			Highlight: part.Highlight,
			Document:  part,
		})
	}

	return model.Paginated[model.FoundedDocument]{Items: items, ScrollID: env.ScrollID}, nil
}

// ExtractVectors parses a kNN/semantic search response into DocumentVectors
// records — the one projection that legitimately carries vectors back to
// the caller.
func ExtractVectors(body []byte) (model.Paginated[model.DocumentVectors], error) {
	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return model.Paginated[model.DocumentVectors]{}, err
	}

	items := make([]model.DocumentVectors, 0, len(env.Hits.Hits))
	for _, hit := range env.Hits.Hits {
		var v model.DocumentVectors
		if err := json.Unmarshal(hit.Source, &v); err != nil {
			slog.Warn("skipping vector hit with undecodable source",
				"index", hit.Index, "id", hit.ID, "error", err)
			continue
		}
		items = append(items, v)
	}

	return model.Paginated[model.DocumentVectors]{Items: items, ScrollID: env.ScrollID}, nil
}

// ExtractPreviews parses a search/retrieve response restricted to
// DocumentPreview-shaped source fields (no content).
func ExtractPreviews(body []byte) (model.Paginated[model.DocumentPreview], error) {
	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return model.Paginated[model.DocumentPreview]{}, err
	}

	items := make([]model.DocumentPreview, 0, len(env.Hits.Hits))
	for _, hit := range env.Hits.Hits {
		var p model.DocumentPreview
		if err := json.Unmarshal(hit.Source, &p); err != nil {
			slog.Warn("skipping preview hit with undecodable source",
				"index", hit.Index, "id", hit.ID, "error", err)
			continue
		}
		items = append(items, p)
	}

	return model.Paginated[model.DocumentPreview]{Items: items, ScrollID: env.ScrollID}, nil
}

// flattenHighlight collapses the backend's per-field highlight map into a
// single ordered fragment list (field order: content, file_name, file_path,
// matching pkg/query's matchFields order).
func flattenHighlight(h map[string][]string) []string {
	if len(h) == 0 {
		return nil
	}

	var out []string
	for _, field := range []string{"content", "file_name", "file_path"} {
		out = append(out, h[field]...)
	}
	return out
}
