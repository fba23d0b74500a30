package stream

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func archive(t *testing.T, path string, entries ...entry) *zip.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := NewWriter(zw, path)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, w.Write(e))
	}
	assert.Equal(t, len(entries), w.Count())
	require.NoError(t, zw.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	return zr
}

func TestWriteThenRead(t *testing.T) {
	want := []entry{{ID: "1", Name: "Beach"}, {ID: "2", Name: "<b>&"}, {ID: "3", Name: "Road Trips"}}
	zr := archive(t, "entities/tags.jsonl", want...)

	rc, err := Open(zr, "entities/tags.jsonl")
	require.NoError(t, err)

	var got []entry
	for e, err := range Lines[entry](rc) {
		require.NoError(t, err)
		got = append(got, e)
	}
	assert.Equal(t, want, got)
}

func TestOpen_MissingEntry(t *testing.T) {
	zr := archive(t, "a.jsonl")
	_, err := Open(zr, "b.jsonl")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestLines_SkipsBadLines(t *testing.T) {
	data := "{\"id\":\"1\"}\n\n{nope}\n{\"id\":\"2\"}\n"
	var ids []string
	var errs int
	for e, err := range Lines[entry](io.NopCloser(strings.NewReader(data))) {
		if err != nil {
			errs++
			continue
		}
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"1", "2"}, ids)
	assert.Equal(t, 1, errs)
}

func TestLines_StopsEarly(t *testing.T) {
	data := "{\"id\":\"1\"}\n{\"id\":\"2\"}\n"
	n := 0
	for range Lines[entry](io.NopCloser(strings.NewReader(data))) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}
