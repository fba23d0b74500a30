// Package stream reads and writes JSON Lines entries inside zip archives.
package stream

import (
	"archive/zip"
	"encoding/json"
)

// Writer appends one JSON document per line to a single archive entry.
type Writer struct {
	enc   *json.Encoder
	count int
}

// NewWriter opens path as a new entry of zw. The entry stays open until the
// next Create on zw.
func NewWriter(zw *zip.Writer, path string) (*Writer, error) {
	w, err := zw.Create(path)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Writer{enc: enc}, nil
}

// Write encodes v followed by a newline.
func (w *Writer) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of lines written.
func (w *Writer) Count() int {
	return w.count
}
