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

// Package backend implements the typed HTTP client fronting the
// Elasticsearch-like search backend: index lifecycle, document CRUD,
// bulk writes, search, and scroll pagination calls.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/kadirpekel/doc-searcher/pkg/apperrors"
	"github.com/kadirpekel/doc-searcher/pkg/metrics"
)

// Client talks to the search backend over HTTP. A single Client is safe for
// concurrent use and is constructed once per process: it wraps one
// *http.Client with a tuned *http.Transport shared by every call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	metrics    *metrics.Metrics
}

// Config configures a Client.
type Config struct {
	BaseURL             string
	RequestTimeout      time.Duration
	MaxRetries          int
	MaxIdleConnsPerHost int
}

// New builds a Client from cfg, sharing one *http.Transport across all
// requests via a single pooled backend connection.
func New(cfg Config, m *metrics.Metrics) *Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		maxRetries: cfg.MaxRetries,
		metrics:    m,
	}
}

// raw is the minimal backend envelope read from responses to classify
// errors and extract scroll state. Full hit decoding happens in
// pkg/response.
type raw struct {
	Error *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// Request is a single backend call: method, path (joined with baseURL),
// and an optional JSON-encodable body.
type Request struct {
	Method string
	Path   string
	Body   interface{}
	// RawBody, when non-nil, is sent verbatim as the request body instead
	// of JSON-encoding Body — used for pre-built newline-delimited JSON
	// bulk payloads, which are not themselves a single JSON value.
	RawBody []byte
	// Retryable controls whether transient failures on this call are
	// retried. The zero value is false; the read paths in this module set
	// it, the write and delete paths leave it false.
	Retryable bool
}

// Do executes req against the backend, retrying transient failures
// (connection errors, 503) up to Client's configured MaxRetries via
// exponential backoff, and decodes the JSON response body into out (if
// non-nil). Non-2xx responses are translated into a *apperrors.Error.
func (c *Client) Do(ctx context.Context, operation string, req Request, out interface{}) error {
	start := time.Now()

	body, err := c.doWithRetry(ctx, operation, req)
	c.metrics.RecordBackendCall(operation, time.Since(start))

	if err != nil {
		c.metrics.RecordBackendError(operation, string(apperrors.KindOf(err)))
		return err
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return apperrors.New(apperrors.Serde, "backend", operation,
				"failed to decode backend response", err)
		}
	}

	return nil
}

// DoRaw behaves like Do but returns the undecoded response body, for
// callers (pkg/search) that hand the raw bytes to their own extraction
// layer rather than unmarshaling into a single struct.
func (c *Client) DoRaw(ctx context.Context, operation string, req Request) ([]byte, error) {
	start := time.Now()

	body, err := c.doWithRetry(ctx, operation, req)
	c.metrics.RecordBackendCall(operation, time.Since(start))

	if err != nil {
		c.metrics.RecordBackendError(operation, string(apperrors.KindOf(err)))
		return nil, err
	}

	return body, nil
}

func (c *Client) doWithRetry(ctx context.Context, operation string, req Request) ([]byte, error) {
	operationFn := func() ([]byte, error) {
		body, status, err := c.doOnce(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(apperrors.New(apperrors.BackendTimeout, "backend", operation,
					"request cancelled or timed out", err))
			}
			return nil, fmt.Errorf("connection error: %w", err) // retryable
		}

		if status == http.StatusServiceUnavailable {
			return nil, fmt.Errorf("backend unavailable (503)") // retryable
		}

		if status >= 400 {
			return nil, backoff.Permanent(classifyStatus(operation, status, body))
		}

		return body, nil
	}

	var (
		result []byte
		err    error
	)
	if !req.Retryable || c.maxRetries <= 0 {
		result, err = operationFn()
	} else {
		attempt := 0
		result, err = backoff.Retry(ctx, func() ([]byte, error) {
			if attempt > 0 {
				c.metrics.RecordBackendRetry(operation)
				slog.Warn("retrying backend call", "operation", operation, "attempt", attempt)
			}
			attempt++
			return operationFn()
		}, backoff.WithMaxTries(uint(c.maxRetries+1)), backoff.WithBackOff(backoff.NewExponentialBackOff()))
	}

	if err != nil {
		var appErr *apperrors.Error
		if asAppError(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.New(apperrors.BackendUnavailable, "backend", operation,
			"backend call failed", err)
	}

	return result, nil
}

func asAppError(err error, target **apperrors.Error) bool {
	for err != nil {
		if e, ok := err.(*apperrors.Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func (c *Client) doOnce(ctx context.Context, req Request) ([]byte, int, error) {
	var bodyReader io.Reader
	hasBody := req.RawBody != nil || req.Body != nil
	switch {
	case req.RawBody != nil:
		bodyReader = bytes.NewReader(req.RawBody)
	case req.Body != nil:
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	if hasBody {
		if req.RawBody != nil {
			httpReq.Header.Set("Content-Type", "application/x-ndjson")
		} else {
			httpReq.Header.Set("Content-Type", "application/json")
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return respBody, resp.StatusCode, nil
}

func classifyStatus(operation string, status int, body []byte) *apperrors.Error {
	var r raw
	_ = json.Unmarshal(body, &r)

	message := fmt.Sprintf("backend returned HTTP %d", status)
	if r.Error != nil && r.Error.Reason != "" {
		message = r.Error.Reason
	}

	kind := apperrors.Internal
	switch status {
	case http.StatusNotFound:
		kind = apperrors.IndexNotFound
	case http.StatusConflict:
		kind = apperrors.DocumentAlreadyExists
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = apperrors.Validation
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		kind = apperrors.BackendTimeout
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		kind = apperrors.BackendUnavailable
	}

	return apperrors.New(kind, "backend", operation, message, nil)
}
