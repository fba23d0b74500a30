package stream

import (
	"archive/zip"
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"iter"
)

// ErrEntryNotFound is returned when an archive has no entry with the path.
var ErrEntryNotFound = errors.New("entry not found in archive")

// maxLine bounds a single JSON line. Clips with many items stay well below it.
const maxLine = 4 << 20

// Open returns the entry at path.
func Open(zr *zip.Reader, path string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == path {
			return f.Open()
		}
	}
	return nil, ErrEntryNotFound
}

// Lines decodes each non-empty line of rc into a T and closes rc when the
// sequence ends. A malformed line yields its error and decoding continues.
func Lines[T any](rc io.ReadCloser) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer rc.Close()

		sc := bufio.NewScanner(rc)
		sc.Buffer(make([]byte, 0, 64*1024), maxLine)
		for sc.Scan() {
			line := sc.Bytes()
			if len(line) == 0 {
				continue
			}
			var v T
			if err := json.Unmarshal(line, &v); err != nil {
				var zero T
				if !yield(zero, err) {
					return
				}
				continue
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}
