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

// Package apperrors defines the typed error kinds shared by every core
// component and their mapping onto HTTP status codes.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers (and an eventual HTTP layer) can
// react without string-matching error messages.
type Kind string

const (
	IndexNotFound        Kind = "index_not_found"
	DocumentNotFound     Kind = "document_not_found"
	DocumentAlreadyExists Kind = "document_already_exists"
	Validation           Kind = "validation_error"
	UnsupportedForKind   Kind = "unsupported_for_kind"
	Pagination           Kind = "pagination_error"
	Embedding            Kind = "embedding_error"
	BackendUnavailable   Kind = "backend_unavailable"
	BackendTimeout       Kind = "backend_timeout"
	Serde                Kind = "serde_error"
	Internal             Kind = "internal_error"
)

// Error is the single error type returned across component boundaries.
// Component and Operation identify where the failure happened; Message is
// the short, bounded, client-safe description; Err is the wrapped cause,
// logged but never rendered to the client.
type Error struct {
	Kind      Kind
	Component string
	Operation string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Operation, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an Error of the given kind.
func New(kind Kind, component, operation, message string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Operation: operation, Message: message, Err: cause}
}

// HTTPStatus maps a Kind onto its HTTP status code. Returns 500 for kinds
// without a dedicated mapping.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case IndexNotFound, DocumentNotFound:
		return 404
	case DocumentAlreadyExists:
		return 409
	case Validation:
		return 400
	case UnsupportedForKind:
		return 501
	case Pagination:
		return 400
	case BackendUnavailable:
		return 503
	case BackendTimeout:
		return 408
	case Embedding, Serde, Internal:
		return 500
	default:
		return 500
	}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise returns Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
