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

// Package embedding implements an HTTP client resolving text into a
// fixed-dimension vector. Transport failures retry up to MaxRetries with
// exponential backoff; a 4xx response never retries; a response whose
// vector length disagrees with the deployment's declared dimension is a
// fatal BadShape error.
package embedding

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
	"github.com/google/uuid"

	"github.com/kadirpekel/doc-searcher/pkg/apperrors"
	"github.com/kadirpekel/doc-searcher/pkg/metrics"
)

// Config configures a Client.
type Config struct {
	Endpoint       string
	Dimension      int
	RequestTimeout time.Duration
	MaxRetries     int
}

// Client resolves text into embedding vectors via an HTTP service.
type Client struct {
	endpoint   string
	dimension  int
	maxRetries int
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// New builds a Client from cfg.
func New(cfg Config, m *metrics.Metrics) *Client {
	return &Client{
		endpoint:   cfg.Endpoint,
		dimension:  cfg.Dimension,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		metrics:    m,
	}
}

type embedRequest struct {
	Text          string `json:"text"`
	CorrelationID string `json:"correlation_id"`
}

type embedResponse struct {
	Vector []float64 `json:"vector"`
}

// Embed resolves text into a vector of the deployment's declared
// dimension. Every call carries a fresh correlation id for log
// correlation across the embedding service boundary.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	start := time.Now()
	correlationID := uuid.NewString()

	vector, err := c.embedWithRetry(ctx, correlationID, text)
	c.metrics.RecordEmbeddingCall(time.Since(start))

	if err != nil {
		c.metrics.RecordEmbeddingError(string(apperrors.KindOf(err)))
		return nil, err
	}

	if c.dimension > 0 && len(vector) != c.dimension {
		err := apperrors.New(apperrors.Embedding, "embedding", "embed",
			fmt.Sprintf("embedding service returned vector of length %d, expected %d", len(vector), c.dimension), nil)
		c.metrics.RecordEmbeddingError(string(err.Kind))
		return nil, err
	}

	return vector, nil
}

func (c *Client) embedWithRetry(ctx context.Context, correlationID, text string) ([]float64, error) {
	attempt := 0
	result, err := backoff.Retry(ctx, func() ([]float64, error) {
		if attempt > 0 {
			slog.Warn("retrying embedding call", "correlation_id", correlationID, "attempt", attempt)
		}
		attempt++
		return c.embedOnce(ctx, correlationID, text)
	}, backoff.WithMaxTries(uint(maxInt(c.maxRetries, 0)+1)), backoff.WithBackOff(backoff.NewExponentialBackOff()))

	if err != nil {
		var appErr *apperrors.Error
		if asAppError(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.New(apperrors.Embedding, "embedding", "embed", "embedding call failed after retries", err)
	}

	return result, nil
}

func (c *Client) embedOnce(ctx context.Context, correlationID, text string) ([]float64, error) {
	body, err := json.Marshal(embedRequest{Text: text, CorrelationID: correlationID})
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to encode embedding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build embedding request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-ID", correlationID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(apperrors.New(apperrors.BackendTimeout, "embedding", "embed",
				"embedding request cancelled or timed out", err))
		}
		return nil, fmt.Errorf("embedding transport error: %w", err) // retryable
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err) // retryable
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("embedding service returned HTTP %d", resp.StatusCode) // retryable
	}
	if resp.StatusCode >= 400 {
		return nil, backoff.Permanent(apperrors.New(apperrors.Embedding, "embedding", "embed",
			fmt.Sprintf("embedding service returned HTTP %d", resp.StatusCode), nil))
	}

	var decoded embedResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, backoff.Permanent(apperrors.New(apperrors.Serde, "embedding", "embed",
			"failed to decode embedding response", err))
	}

	return decoded.Vector, nil
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

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
