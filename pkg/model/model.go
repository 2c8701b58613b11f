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

// Package model defines the shared data types that flow between the query,
// response, projection, folder, document and search packages.
//
// Types here carry no behavior beyond simple validation: they are the wire
// between components, not an active layer.
package model

import (
	"fmt"
	"strconv"
	"time"
)

// InfoFolderID is the well-known index name holding per-index metadata
// overlays (name, kind, is_system).
const InfoFolderID = "info-folder"

// FolderKind identifies what an index stores and how it must be queried.
type FolderKind string

const (
	FolderDocument   FolderKind = "document"
	FolderPreview    FolderKind = "preview"
	FolderVectors    FolderKind = "vectors"
	FolderInfoFolder FolderKind = "info-folder"
)

// Valid reports whether k is one of the known folder kinds.
func (k FolderKind) Valid() bool {
	switch k {
	case FolderDocument, FolderPreview, FolderVectors, FolderInfoFolder:
		return true
	default:
		return false
	}
}

// Folder is a named collection at the backend (the client-facing "index").
type Folder struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Kind      FolderKind `json:"kind"`
	IsSystem  bool       `json:"is_system"`
	DocsCount int64      `json:"docs_count"`
	StoreSize int64      `json:"store_size_bytes"`
	KNNDim    int        `json:"knn_dimension,omitempty"`
}

// CreateFolderParams describes a new index to create.
type CreateFolderParams struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	Kind         FolderKind `json:"kind"`
	IsSystem     bool       `json:"is_system,omitempty"`
	KNNDimension int        `json:"knn_dimension,omitempty"`
}

// Validate enforces the minimal invariants required to create a folder.
func (p CreateFolderParams) Validate() error {
	if p.ID == "" {
		return errRequired("id")
	}
	if !p.Kind.Valid() {
		return errInvalid("kind", string(p.Kind))
	}
	if p.Kind == FolderVectors && p.KNNDimension <= 0 {
		return errRequired("knn_dimension")
	}
	return nil
}

// InfoFolderRecord is the metadata overlay record stored in the info-folder
// index, paired one-to-one with a non-system Folder.
type InfoFolderRecord struct {
	IndexID  string     `json:"index_id"`
	Name     string     `json:"name,omitempty"`
	Kind     FolderKind `json:"kind"`
	IsSystem bool       `json:"is_system"`
}

// Location is a named geographic point attached to a document.
type Location struct {
	Name string  `json:"name,omitempty"`
	Lon  float64 `json:"lon"`
	Lat  float64 `json:"lat"`
}

// DocClass is a classifier label with its confidence.
type DocClass struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
}

// PhotoMetadata captures EXIF-like attributes for image documents.
type PhotoMetadata struct {
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	CameraModel string    `json:"camera_model,omitempty"`
	TakenAt     time.Time `json:"taken_at,omitempty"`
}

// DocumentMetadata is the optional, set-valued metadata attached to a
// LargeDocument. Every field is optional; projections carry it through
// without interpreting it.
type DocumentMetadata struct {
	Photo          *PhotoMetadata `json:"photo,omitempty"`
	Source         string         `json:"source,omitempty"`
	SemanticSource string         `json:"semantic_source,omitempty"`
	Summary        string         `json:"summary,omitempty"`
	Locations      []Location     `json:"locations,omitempty"`
	Subjects       []string       `json:"subjects,omitempty"`
	Classes        []DocClass     `json:"classes,omitempty"`
	Icons          []string       `json:"icons,omitempty"`
	Groups         []string       `json:"groups,omitempty"`
	Pipelines      []string       `json:"pipelines,omitempty"`
	References     []string       `json:"references,omitempty"`
}

// LargeDocument is the logical client-visible ingest unit: one LargeDocument
// may be stored as many DocumentParts or Chunks.
type LargeDocument struct {
	LargeDocID     string            `json:"large_doc_id"`
	FileName       string            `json:"file_name"`
	FilePath       string            `json:"file_path"`
	FileSize       int64             `json:"file_size"`
	CreatedAt      time.Time         `json:"created_at"`
	ModifiedAt     time.Time         `json:"modified_at"`
	Content        string            `json:"content"`
	DocumentSsdeep string            `json:"document_ssdeep,omitempty"`
	Metadata       *DocumentMetadata `json:"metadata,omitempty"`
}

// Validate enforces the created_at <= modified_at invariant.
func (d LargeDocument) Validate() error {
	if d.LargeDocID == "" {
		return errRequired("large_doc_id")
	}
	if !d.ModifiedAt.IsZero() && !d.CreatedAt.IsZero() && d.CreatedAt.After(d.ModifiedAt) {
		return errInvalid("modified_at", "must not precede created_at")
	}
	return nil
}

// DocumentPart is a stored record in a Document-kind (or Preview-kind)
// index: all LargeDocument fields plus its ordinal within the logical
// document and highlight fragments populated only on search responses.
type DocumentPart struct {
	LargeDocument
	DocPartID int      `json:"doc_part_id"`
	Highlight []string `json:"highlight,omitempty"`
}

// RecordID returns the backend record id for this part: for Document/Preview
// kinds it is 1:1 with the LargeDocID.
func (p DocumentPart) RecordID() string {
	return p.LargeDocID
}

// DocumentPreview is the lightweight projection of a DocumentPart: identity
// and file attributes, without content.
type DocumentPreview struct {
	LargeDocID string    `json:"large_doc_id"`
	DocPartID  int       `json:"doc_part_id"`
	FileName   string    `json:"file_name"`
	FilePath   string    `json:"file_path"`
	FileSize   int64     `json:"file_size"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Embedding is one chunk's vector plus the text it was computed from.
type Embedding struct {
	ChunkID     string    `json:"chunk_id"`
	Vector      []float64 `json:"vector"`
	ChunkedText string    `json:"chunked_text"`
}

// DocumentVectors is the chunked projection of a LargeDocument stored in a
// Vectors-kind index: chunked_text and embeddings must stay the same length
// and in matching order.
type DocumentVectors struct {
	LargeDocID  string      `json:"large_doc_id"`
	FileName    string      `json:"file_name"`
	FilePath    string      `json:"file_path"`
	FileSize    int64       `json:"file_size"`
	CreatedAt   time.Time   `json:"created_at"`
	ModifiedAt  time.Time   `json:"modified_at"`
	ChunkedText []string    `json:"chunked_text"`
	Embeddings  []Embedding `json:"embeddings"`
}

// Validate enforces the |chunked_text| == |embeddings| invariant and, when
// dim > 0, that every vector has that length.
func (d DocumentVectors) Validate(dim int) error {
	if len(d.ChunkedText) != len(d.Embeddings) {
		return errInvalid("embeddings", "length must match chunked_text length")
	}
	if dim <= 0 {
		return nil
	}
	for i, e := range d.Embeddings {
		if len(e.Vector) != dim {
			return errInvalid("embeddings["+strconv.Itoa(i)+"].vector", "length must equal knn_dimension")
		}
	}
	return nil
}

// ChunkRecordID derives the per-chunk backend record id for a Vectors-kind
// index (one-to-many).
func ChunkRecordID(largeDocID string, ordinal int) string {
	return largeDocID + ":" + strconv.Itoa(ordinal)
}

// Paginated is the envelope returned by every search or scroll operation.
// ScrollID carries the backend's _scroll_id whenever the response includes
// one; it is not checked against whether more results remain beyond the
// requested window.
type Paginated[T any] struct {
	Items    []T     `json:"items"`
	ScrollID *string `json:"scroll_id,omitempty"`
}

// SearchKind selects the ranking model used for a search request.
type SearchKind string

const (
	SearchFullText SearchKind = "fulltext"
	SearchSemantic SearchKind = "semantic"
	SearchHybrid   SearchKind = "hybrid"
	SearchRetrieve SearchKind = "retrieve"
)

// ResultOrder is the caller-supplied order hint accepted on ResultParams.
// Backend sort direction for scored queries and retrieve-all is fixed
// (descending, with a deterministic tie-break) regardless of this value.
type ResultOrder string

const (
	OrderAsc  ResultOrder = "asc"
	OrderDesc ResultOrder = "desc"
)

// ResultParams controls pagination window, ordering and highlighting.
type ResultParams struct {
	Order              ResultOrder `json:"order"`
	Size               int         `json:"size"`
	Offset             int         `json:"offset"`
	IncludeExtraFields bool        `json:"include_extra_fields,omitempty"`
	HighlightItems     *int        `json:"highlight_items,omitempty"`
	HighlightItemSize  *int        `json:"highlight_item_size,omitempty"`
	ScrollLifetime     string      `json:"-"` // e.g. "1m"; defaults applied by caller
}

// Validate enforces the size>=1, offset>=0 invariants.
func (r ResultParams) Validate() error {
	if r.Size < 1 {
		return errInvalid("size", "must be >= 1")
	}
	if r.Offset < 0 {
		return errInvalid("offset", "must be >= 0")
	}
	if r.Order != "" && r.Order != OrderAsc && r.Order != OrderDesc {
		return errInvalid("order", string(r.Order))
	}
	return nil
}

// FilterParams is the shared predicate set attachable to any search kind.
type FilterParams struct {
	DocPartID           *int       `json:"doc_part_id,omitempty"`
	SizeFrom            *int64     `json:"size_from,omitempty"`
	SizeTo              *int64     `json:"size_to,omitempty"`
	CreatedFrom         *time.Time `json:"created_from,omitempty"`
	CreatedTo           *time.Time `json:"created_to,omitempty"`
	ModifiedFrom        *time.Time `json:"modified_from,omitempty"`
	ModifiedTo          *time.Time `json:"modified_to,omitempty"`
	PipelineID          *int64     `json:"pipeline_id,omitempty"`
	Source              *string    `json:"source,omitempty"`
	SemanticSource      *string    `json:"semantic_source,omitempty"`
	Distance            *string    `json:"distance,omitempty"`
	LocationCoords      []float64  `json:"location_coords,omitempty"`
	DocClass            *string    `json:"doc_class,omitempty"`
	DocClassProbability *float64   `json:"doc_class_probability,omitempty"`
}

// Validate enforces range consistency (from <= to) for every bounded field.
func (f FilterParams) Validate() error {
	if f.SizeFrom != nil && f.SizeTo != nil && *f.SizeFrom > *f.SizeTo {
		return errInvalid("size_from/size_to", "size_from must be <= size_to")
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedFrom.After(*f.CreatedTo) {
		return errInvalid("created_from/created_to", "created_from must be <= created_to")
	}
	if f.ModifiedFrom != nil && f.ModifiedTo != nil && f.ModifiedFrom.After(*f.ModifiedTo) {
		return errInvalid("modified_from/modified_to", "modified_from must be <= modified_to")
	}
	if f.LocationCoords != nil && len(f.LocationCoords) != 2 {
		return errInvalid("location_coords", "must be [lon, lat]")
	}
	return nil
}

// SearchingParams is the tagged union describing one search request.
type SearchingParams struct {
	Kind    SearchKind `json:"kind"`
	Indexes []string   `json:"indexes"`
	Query   string     `json:"query,omitempty"`
	// KNNAmount is the requested number of nearest neighbors (Semantic/Hybrid).
	KNNAmount int `json:"knn_amount,omitempty"`
	// KNNCandidates is the candidate pool searched before ranking (Semantic/Hybrid).
	KNNCandidates int `json:"knn_candidates,omitempty"`
	// QueryVector is resolved by the caller before reaching the query builder.
	QueryVector []float64 `json:"query_vector,omitempty"`
	// MinScore filters combined hybrid hits below this threshold (applied post-hoc).
	MinScore *float64 `json:"min_score,omitempty"`

	Result ResultParams  `json:"result"`
	Filter *FilterParams `json:"filter,omitempty"`
}

// Validate enforces the cross-field invariants: non-empty indexes,
// valid result/filter ranges, and knn_amount for vector-bearing kinds.
func (p SearchingParams) Validate() error {
	if len(p.Indexes) == 0 {
		return errRequired("indexes")
	}
	for _, idx := range p.Indexes {
		if idx == "" {
			return errInvalid("indexes", "must not contain empty names")
		}
	}
	if err := p.Result.Validate(); err != nil {
		return err
	}
	if p.Filter != nil {
		if err := p.Filter.Validate(); err != nil {
			return err
		}
	}
	switch p.Kind {
	case SearchSemantic, SearchHybrid:
		if p.KNNAmount < 1 {
			return errRequired("knn_amount")
		}
	case SearchFullText, SearchRetrieve:
		// no additional requirements
	default:
		return errInvalid("kind", string(p.Kind))
	}
	return nil
}

// FoundedDocument is one hit mapped from a raw backend result.
type FoundedDocument struct {
	ID        string       `json:"id"`
	Index     string       `json:"index"`
	Score     *float64     `json:"score,omitempty"`
	Highlight []string     `json:"highlight,omitempty"`
	Document  DocumentPart `json:"document"`
}

// StoredDocumentPartsInfo summarizes a bulk document store, returned even
// when some per-chunk items failed; callers reconcile via retrieve.
type StoredDocumentPartsInfo struct {
	LargeDocID     string `json:"large_doc_id"`
	FirstPartID    int    `json:"first_part_id"`
	DocPartsAmount int    `json:"doc_parts_amount"`
}

func errRequired(field string) error {
	return fmt.Errorf("%s is required", field)
}

func errInvalid(field, detail string) error {
	return fmt.Errorf("%s: %s", field, detail)
}
