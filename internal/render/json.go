package render

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/rusenback/docker-stats/internal/model"
)

// JSONWriter writes one JSON object per line. Safe for concurrent use.
type JSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONWriter creates a JSONWriter on w
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{enc: json.NewEncoder(w)}
}

// Write encodes a single record
func (w *JSONWriter) Write(row model.ContainerStats) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(row)
}
