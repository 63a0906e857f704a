// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package gemdoc

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/sassoftware/gemdoc/logger"
)

// Engine is the external html-to-pdf rendering collaborator. It must
// produce pdf 1.7 output with /Info and /Root trailer references;
// uncompressed streams are preferred since they are re-encoded during
// assembly. Stylesheets are css source texts, applied in order.
type Engine interface {
	Render(ctx context.Context, html string, stylesheets []string) ([]byte, error)
}

// Converter defines the contract for turning text/gemini documents
// into polyglot files.
type Converter interface {
	Convert(ctx context.Context, doc string, meta Metadata, stylesheets []string) ([]byte, error)
	Reconvert(ctx context.Context, polyglot []byte, meta Metadata, stylesheets []string) ([]byte, error)
}

// processor runs document conversions with a concurrency cap. Each
// conversion owns its object table exclusively from parse to
// serialization; the semaphore only bounds how many documents are in
// flight at once.
type processor struct {
	cfg    *Config
	sem    *semaphore.Weighted
	engine Engine
}

// NewProcessor validates the config and creates a new processor
// around the given rendering engine.
func NewProcessor(cfg *Config, engine Engine) *processor {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	if cfg.Logger != nil {
		logger.SetLogger(cfg.Logger)
	}

	logger.Debug(fmt.Sprintf("Processor initialized: max_concurrent_docs=%d flate=%v",
		cfg.MaxConcurrentDocs, cfg.FlateEncodeStreams), true)

	return &processor{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrentDocs)),
		engine: engine,
	}
}

func (p *processor) acquireSlot(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire slot: %w", err)
	}
	logger.Debug("Slot acquired successfully", true)
	return nil
}

// Convert runs the whole pipeline for one text/gemini document:
// normalize, defang, translate, render, parse, attach, install
// metadata, serialize.
func (p *processor) Convert(ctx context.Context, doc string, meta Metadata, stylesheets []string) ([]byte, error) {
	if err := p.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)
	return p.convert(ctx, doc, meta, nil, stylesheets)
}

// convert merges metadata with the precedence caller > magic line >
// recovered (lowest), then runs the pipeline.
func (p *processor) convert(ctx context.Context, doc string, meta, recovered Metadata, stylesheets []string) ([]byte, error) {
	body, magicMeta, err := StripMagicLines(doc)
	if err != nil {
		return nil, err
	}
	merged := meta.Clone()
	merged.MergeUnder(magicMeta)
	merged.MergeUnder(recovered)
	merged.Normalize()
	merged.ApplyURLDefaults()

	body = DefangKeywords(body)
	gemini, html := Translate(body, merged)

	pdf, err := p.engine.Render(ctx, html, stylesheets)
	if err != nil {
		return nil, fmt.Errorf("rendering engine: %w", err)
	}
	logger.Debug(fmt.Sprintf("engine produced %d bytes of pdf", len(pdf)), true)

	f, err := ParseFile(pdf, []byte(gemini), merged.SourceFilename(p.cfg.SourceFilename), p.cfg.FlateEncodeStreams)
	if err != nil {
		return nil, err
	}
	if err := f.SetMetadata(merged); err != nil {
		return nil, err
	}
	return f.Serialize()
}

// Reconvert updates an existing polyglot: the embedded source is
// extracted, the stored metadata is merged underneath the
// caller-supplied entries, and the document is converted again.
func (p *processor) Reconvert(ctx context.Context, polyglot []byte, meta Metadata, stylesheets []string) ([]byte, error) {
	if err := p.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	source, recovered, err := ExtractSource(polyglot)
	if err != nil {
		return nil, err
	}
	return p.convert(ctx, source, meta, recovered, stylesheets)
}
