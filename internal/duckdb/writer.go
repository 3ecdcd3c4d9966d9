package duckdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/inodb/vibe-csq/internal/annotate"
)

// defaultFlushSize is the number of annotations buffered before an append.
const defaultFlushSize = 1000

// ResultWriter stores annotations in a Store under one batch id. It
// satisfies annotate.AnnotationWriter.
type ResultWriter struct {
	ctx       context.Context
	store     *Store
	batchID   string
	pending   []*annotate.VariantAnnotation
	flushSize int
	written   int
}

// NewResultWriter creates a writer for a new, randomly identified batch.
func NewResultWriter(ctx context.Context, store *Store) *ResultWriter {
	return &ResultWriter{
		ctx:       ctx,
		store:     store,
		batchID:   uuid.NewString(),
		flushSize: defaultFlushSize,
	}
}

// BatchID returns the id rows are written under.
func (w *ResultWriter) BatchID() string { return w.batchID }

// Written returns the number of annotations stored so far.
func (w *ResultWriter) Written() int { return w.written }

// WriteHeader is a no-op; the table schema is fixed.
func (w *ResultWriter) WriteHeader() error { return nil }

// Write buffers va and appends the buffer once it is full.
func (w *ResultWriter) Write(va *annotate.VariantAnnotation) error {
	w.pending = append(w.pending, va)
	if len(w.pending) >= w.flushSize {
		return w.Flush()
	}
	return nil
}

// Flush appends all buffered annotations.
func (w *ResultWriter) Flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	if err := w.store.WriteAnnotations(w.ctx, w.batchID, w.pending); err != nil {
		return err
	}
	w.written += len(w.pending)
	w.pending = w.pending[:0]
	return nil
}
