package output

import (
	"errors"

	"github.com/inodb/vibe-csq/internal/annotate"
)

// MultiWriter duplicates annotations to several writers, e.g. a file
// format and the result store.
type MultiWriter struct {
	writers []annotate.AnnotationWriter
}

// NewMultiWriter creates a writer that writes to all of ws in order.
func NewMultiWriter(ws ...annotate.AnnotationWriter) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// WriteHeader writes the header of every writer, stopping at the first error.
func (m *MultiWriter) WriteHeader() error {
	for _, w := range m.writers {
		if err := w.WriteHeader(); err != nil {
			return err
		}
	}
	return nil
}

// Write writes va to every writer, stopping at the first error.
func (m *MultiWriter) Write(va *annotate.VariantAnnotation) error {
	for _, w := range m.writers {
		if err := w.Write(va); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes every writer and joins their errors.
func (m *MultiWriter) Flush() error {
	var errs []error
	for _, w := range m.writers {
		errs = append(errs, w.Flush())
	}
	return errors.Join(errs...)
}
