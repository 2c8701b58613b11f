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

// Package chunking splits LargeDocument content into token-bounded chunks
// for Vectors-kind indexes. Splitting is paragraph, then
// sentence, then hard-token-budget greedy packing, with a fractional
// overlap carried from the tail of one chunk into the head of the next —
// grounded on hector's pkg/context/chunking Chunker idiom, counted with a
// pkoukk/tiktoken-go-backed encoder instead of characters.
package chunking

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/kadirpekel/doc-searcher/pkg/config"
)

// Config is the resolved chunking configuration for one Chunker, mirroring
// config.ChunkingConfig's knobs after defaults have been applied.
type Config struct {
	// TokenLimit is the maximum number of tokens packed into a chunk.
	TokenLimit int
	// OverlapRate is the fraction of TokenLimit repeated at the start of
	// every chunk after the first, in [0, 1).
	OverlapRate float64
	// Encoding names the tiktoken-go encoding used to count and split
	// tokens. Falls back to cl100k_base if the name is unknown.
	Encoding string
}

// FromConfig adapts a config.ChunkingConfig into a chunking.Config.
func FromConfig(c config.ChunkingConfig) Config {
	return Config{
		TokenLimit:  c.TokenLimit,
		OverlapRate: c.OverlapRate,
		Encoding:    c.Encoding,
	}
}

// SetDefaults fills a zero-valued TokenLimit and Encoding with the package
// defaults (config's TokenLimit=512/Encoding=cl100k_base). OverlapRate is
// left as given: zero means no overlap.
func (c *Config) SetDefaults() {
	if c.TokenLimit <= 0 {
		c.TokenLimit = config.DefaultTokenLimit
	}
	if c.Encoding == "" {
		c.Encoding = config.DefaultEncoding
	}
}

// Validate reports whether c describes a usable chunker.
func (c Config) Validate() error {
	if c.TokenLimit <= 0 {
		return fmt.Errorf("chunking: token_limit must be > 0, got %d", c.TokenLimit)
	}
	if c.OverlapRate < 0 || c.OverlapRate >= 1 {
		return fmt.Errorf("chunking: overlap_rate must be in [0, 1), got %f", c.OverlapRate)
	}
	return nil
}

// overlapTokens returns floor(TokenLimit * OverlapRate), the number of
// trailing tokens from one chunk repeated at the head of the next.
func (c Config) overlapTokens() int {
	return int(float64(c.TokenLimit) * c.OverlapRate)
}

// ExpectedChunkCount returns the number of chunks Chunk is expected to
// produce for a document of totalTokens under cfg:
// ceil((totalTokens - T*r) / (T*(1-r))), bounded below by 1 for any
// non-empty input.
func ExpectedChunkCount(totalTokens int, cfg Config) int {
	if totalTokens <= 0 {
		return 0
	}

	limit := float64(cfg.TokenLimit)
	overlap := limit * cfg.OverlapRate
	stride := limit - overlap
	if stride <= 0 {
		stride = limit
	}

	count := int(math.Ceil((float64(totalTokens) - overlap) / stride))
	if count < 1 {
		count = 1
	}
	return count
}

var (
	encodingCache = map[string]*tiktoken.Tiktoken{}
	cacheMu       sync.RWMutex
)

func encodingFor(name string) (*tiktoken.Tiktoken, error) {
	cacheMu.RLock()
	enc, ok := encodingCache[name]
	cacheMu.RUnlock()
	if ok {
		return enc, nil
	}

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(config.DefaultEncoding)
		if err != nil {
			return nil, fmt.Errorf("chunking: failed to load encoding %q or fallback %q: %w",
				name, config.DefaultEncoding, err)
		}
	}

	cacheMu.Lock()
	encodingCache[name] = enc
	cacheMu.Unlock()
	return enc, nil
}

// Chunker splits LargeDocument content into token-bounded, overlapping
// text chunks.
type Chunker struct {
	cfg Config
	enc *tiktoken.Tiktoken
}

// New builds a Chunker from cfg, applying defaults and resolving its
// token encoder. Mirrors hector's NewChunker(cfg) factory shape, minus the
// strategy dispatch (this package implements one strategy: paragraph/
// sentence-then-token-budget packing).
func New(cfg Config) (*Chunker, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	enc, err := encodingFor(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	return &Chunker{cfg: cfg, enc: enc}, nil
}

// Config returns the resolved configuration this Chunker was built with.
func (c *Chunker) Config() Config {
	return c.cfg
}

// CountTokens returns the token count of text under this Chunker's
// encoding.
func (c *Chunker) CountTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Chunk splits content into an ordered list of chunk texts. Splitting
// prefers paragraph boundaries, then sentence boundaries, falling back to
// a hard token cut when a single unit alone exceeds the pack budget
// (TokenLimit minus overlapTokens()). Each chunk
// after the first is prefixed with the trailing overlapTokens() tokens of
// the previous chunk; the greedy pack budget is reduced by overlapTokens()
// up front so that prefix brings the chunk back up to, not over,
// TokenLimit. Deterministic for a given input and config.
func (c *Chunker) Chunk(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	units := splitUnits(content)
	overlap := c.cfg.overlapTokens()
	packBudget := c.cfg.TokenLimit - overlap
	if packBudget <= 0 {
		packBudget = c.cfg.TokenLimit
	}

	var chunks []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, ""))
		current = nil
		currentTokens = 0
	}

	for _, unit := range units {
		unitTokens := c.CountTokens(unit)

		if unitTokens > packBudget {
			flush()
			chunks = append(chunks, c.hardSplit(unit, packBudget)...)
			continue
		}

		if currentTokens+unitTokens > packBudget && currentTokens > 0 {
			flush()
		}

		current = append(current, unit)
		currentTokens += unitTokens
	}
	flush()

	if overlap > 0 {
		chunks = c.applyOverlap(chunks, overlap)
	}

	return chunks
}

// applyOverlap prefixes every chunk after the first with the trailing
// overlapTokens of its predecessor, decoded back from the encoder's token
// ids so the prefix is exact under the same encoding used to count it.
func (c *Chunker) applyOverlap(chunks []string, overlapTokens int) []string {
	if len(chunks) < 2 {
		return chunks
	}

	out := make([]string, len(chunks))
	out[0] = chunks[0]

	for i := 1; i < len(chunks); i++ {
		prevTokens := c.enc.Encode(chunks[i-1], nil, nil)
		start := len(prevTokens) - overlapTokens
		if start < 0 {
			start = 0
		}
		prefix := c.enc.Decode(prevTokens[start:])
		out[i] = prefix + chunks[i]
	}

	return out
}

// hardSplit cuts a single oversized unit into limit-sized pieces by token
// index, used only when one paragraph/sentence alone exceeds the pack
// budget.
func (c *Chunker) hardSplit(unit string, limit int) []string {
	tokens := c.enc.Encode(unit, nil, nil)

	var pieces []string
	for start := 0; start < len(tokens); start += limit {
		end := start + limit
		if end > len(tokens) {
			end = len(tokens)
		}
		pieces = append(pieces, c.enc.Decode(tokens[start:end]))
	}
	return pieces
}

// splitUnits breaks content into paragraphs, then each paragraph into
// sentences, preserving trailing whitespace so re-joining units with ""
// reconstructs the paragraph text exactly.
func splitUnits(content string) []string {
	paragraphs := strings.SplitAfter(content, "\n\n")

	var units []string
	for _, p := range paragraphs {
		if p == "" {
			continue
		}
		units = append(units, splitSentences(p)...)
	}
	return units
}

// splitSentences splits on ". " boundaries, keeping the delimiter attached
// to the preceding sentence.
func splitSentences(paragraph string) []string {
	parts := strings.SplitAfter(paragraph, ". ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{paragraph}
	}
	return out
}
