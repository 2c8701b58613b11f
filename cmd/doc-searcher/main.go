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

// Command doc-searcher wires the core packages (config, backend, chunking,
// folder, document, search, embedding) into a running process and exposes
// the operator-facing surface: config validation, a backend health probe,
// and Prometheus metrics. It does not implement the HTTP/RPC transport
// that would expose folder/document/search operations to callers — that
// is a separate concern layered on top of this core.
//
// Usage:
//
//	doc-searcher serve --config config.yaml
//	doc-searcher validate --config config.yaml
//	doc-searcher version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/doc-searcher/pkg/backend"
	"github.com/kadirpekel/doc-searcher/pkg/chunking"
	"github.com/kadirpekel/doc-searcher/pkg/config"
	"github.com/kadirpekel/doc-searcher/pkg/document"
	"github.com/kadirpekel/doc-searcher/pkg/embedding"
	"github.com/kadirpekel/doc-searcher/pkg/folder"
	"github.com/kadirpekel/doc-searcher/pkg/metrics"
	"github.com/kadirpekel/doc-searcher/pkg/search"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Load config, wire the core, and serve /metrics until interrupted."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file and exit."`

	Config    string `short:"c" help:"Path to config file (YAML)." type:"path" required:""`
	LogLevel  string `help:"Log level override (debug, info, warn, error)."`
	LogFormat string `help:"Log format override (simple, verbose)."`
}

// VersionCmd prints build version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(cli *CLI) error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("doc-searcher %s\n", version)
	return nil
}

// ValidateCmd loads and validates a config file without starting anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	fmt.Printf("config OK: backend=%s embedding=%s chunking={limit=%d overlap=%.2f encoding=%s}\n",
		cfg.Backend.BaseURL, firstNonEmpty(cfg.Embedding.Endpoint, "(disabled)"),
		cfg.Chunking.TokenLimit, cfg.Chunking.OverlapRate, cfg.Chunking.Encoding)
	return nil
}

// ServeCmd wires every core package, probes the backend once, and keeps
// the process alive serving /metrics until interrupted. It does not start
// an HTTP API for folder/document/search — callers embed those packages
// directly, or a separate transport layer is built on top of this core.
type ServeCmd struct {
	HealthTimeout time.Duration `help:"Timeout for the startup backend health probe." default:"10s"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	initLogger(cli.LogLevel, cli.LogFormat, cfg)

	core, err := wireCore(cfg)
	if err != nil {
		return fmt.Errorf("failed to wire core: %w", err)
	}

	probeCtx, probeCancel := context.WithTimeout(ctx, c.HealthTimeout)
	defer probeCancel()
	if err := probeBackend(probeCtx, core.backend); err != nil {
		return fmt.Errorf("backend health probe failed: %w", err)
	}
	slog.Info("backend reachable", "base_url", cfg.Backend.BaseURL)

	printResolvedConfig(cfg)

	if core.metrics == nil {
		slog.Info("metrics disabled, nothing left to serve; exiting")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Endpoint, core.metrics.Handler())
	srv := &http.Server{Addr: ":9095", Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("serving metrics", "addr", srv.Addr, "path", cfg.Metrics.Endpoint)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

// core bundles every wired component. cmd/doc-searcher is the composition
// root; nothing downstream constructs these itself.
type core struct {
	backend   *backend.Client
	metrics   *metrics.Metrics
	chunker   *chunking.Chunker
	folders   *folder.Service
	documents *document.Service
	searches  *search.Service
	embedder  *embedding.Client
}

func wireCore(cfg *config.Config) (*core, error) {
	m, err := metrics.New(&metrics.Config{
		Enabled:   cfg.Metrics.Enabled,
		Endpoint:  cfg.Metrics.Endpoint,
		Namespace: cfg.Metrics.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build metrics: %w", err)
	}

	backendClient := backend.New(backend.Config{
		BaseURL:             cfg.Backend.BaseURL,
		RequestTimeout:      cfg.Backend.RequestTimeout,
		MaxRetries:          cfg.Backend.MaxRetries,
		MaxIdleConnsPerHost: cfg.Backend.MaxIdleConnsPerHost,
	}, m)

	chunker, err := chunking.New(chunking.FromConfig(cfg.Chunking))
	if err != nil {
		return nil, fmt.Errorf("failed to build chunker: %w", err)
	}

	folderSvc, err := folder.New(backendClient, m, folder.CacheConfig{
		TTL:        cfg.FolderCache.TTL,
		MaxEntries: cfg.FolderCache.MaxEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build folder service: %w", err)
	}

	documentSvc := document.New(backendClient, m, chunker)

	var embedder *embedding.Client
	var resolver search.VectorResolver
	if cfg.Embedding.Endpoint != "" {
		embedder = embedding.New(embedding.Config{
			Endpoint:       cfg.Embedding.Endpoint,
			Dimension:      cfg.Embedding.Dimension,
			RequestTimeout: cfg.Embedding.RequestTimeout,
			MaxRetries:     cfg.Embedding.MaxRetries,
		}, m)
		resolver = embedder
	}

	searchSvc := search.New(backendClient, m, resolver, cfg.Backend.ScrollLifetime)

	return &core{
		backend:   backendClient,
		metrics:   m,
		chunker:   chunker,
		folders:   folderSvc,
		documents: documentSvc,
		searches:  searchSvc,
		embedder:  embedder,
	}, nil
}

// probeBackend exercises the backend's index-listing call as a readiness
// check — it requires no caller-supplied index name and succeeds against
// any reachable, empty deployment.
func probeBackend(ctx context.Context, client *backend.Client) error {
	return client.Do(ctx, "health_probe", backend.Request{
		Method:    http.MethodGet,
		Path:      "/_cat/indices?format=json",
		Retryable: true,
	}, nil)
}

func loadConfig(path string) (*config.Config, error) {
	if err := config.LoadEnvFiles(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	cfg, err := config.Load(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogger(levelOverride, formatOverride string, cfg *config.Config) {
	level := cfg.LogLevel
	if levelOverride != "" {
		level = levelOverride
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	format := cfg.LogFormat
	if formatOverride != "" {
		format = formatOverride
	}

	var handler slog.Handler
	if format == "verbose" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel, AddSource: true})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})
	}
	slog.SetDefault(slog.New(handler))
}

func printResolvedConfig(cfg *config.Config) {
	fmt.Println("resolved configuration:")
	fmt.Printf("  backend.base_url            = %s\n", cfg.Backend.BaseURL)
	fmt.Printf("  backend.request_timeout     = %s\n", cfg.Backend.RequestTimeout)
	fmt.Printf("  backend.scroll_lifetime     = %s\n", cfg.Backend.ScrollLifetime)
	fmt.Printf("  backend.max_retries         = %d\n", cfg.Backend.MaxRetries)
	fmt.Printf("  embedding.endpoint          = %s\n", firstNonEmpty(cfg.Embedding.Endpoint, "(disabled)"))
	fmt.Printf("  embedding.dimension         = %d\n", cfg.Embedding.Dimension)
	fmt.Printf("  chunking.token_limit        = %d\n", cfg.Chunking.TokenLimit)
	fmt.Printf("  chunking.overlap_rate       = %.2f\n", cfg.Chunking.OverlapRate)
	fmt.Printf("  chunking.encoding           = %s\n", cfg.Chunking.Encoding)
	fmt.Printf("  folder_cache.ttl            = %s\n", cfg.FolderCache.TTL)
	fmt.Printf("  folder_cache.max_entries    = %d\n", cfg.FolderCache.MaxEntries)
	fmt.Printf("  metrics.enabled             = %v\n", cfg.Metrics.Enabled)
}

func firstNonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("doc-searcher"),
		kong.Description("Core search/index/embedding services for the Elasticsearch-backed document search engine."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
