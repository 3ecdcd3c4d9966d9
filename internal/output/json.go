package output

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/inodb/vibe-csq/internal/annotate"
)

// JSONWriter writes one JSON document per variant (JSON Lines).
type JSONWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// jsonAnnotation adds the degraded sources, which VariantAnnotation keeps
// as errors, to the encoded document.
type jsonAnnotation struct {
	*annotate.VariantAnnotation
	Degraded map[annotate.Source]string `json:"degraded,omitempty"`
}

// NewJSONWriter creates a new JSON Lines writer.
func NewJSONWriter(w io.Writer) *JSONWriter {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &JSONWriter{w: bw, enc: enc}
}

// WriteHeader is a no-op; JSON Lines has no header.
func (jw *JSONWriter) WriteHeader() error { return nil }

// Write encodes va on its own line.
func (jw *JSONWriter) Write(va *annotate.VariantAnnotation) error {
	doc := jsonAnnotation{VariantAnnotation: va}
	if len(va.Degraded) > 0 {
		doc.Degraded = make(map[annotate.Source]string, len(va.Degraded))
		for src, err := range va.Degraded {
			doc.Degraded[src] = err.Error()
		}
	}
	return jw.enc.Encode(doc)
}

// Flush flushes any buffered data to the underlying writer.
func (jw *JSONWriter) Flush() error {
	return jw.w.Flush()
}
