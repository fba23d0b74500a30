// Package backup writes and verifies snapshot archives of the primary store.
//
// An archive is a zip file holding manifest.json, one JSON Lines entry per
// entity kind, and optionally the image blobs under images/<image id>.
package backup

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipbox/clipbox/internal/backup/stream"
	"github.com/clipbox/clipbox/internal/domain"
)

// FormatVersion is the archive format version.
const FormatVersion = "1.0"

const (
	manifestPath = "manifest.json"
	tagsPath     = "entities/tags.jsonl"
	clipsPath    = "entities/clips.jsonl"
	imagesDir    = "images/"
)

var (
	// ErrInvalidManifest indicates the manifest is missing or malformed.
	ErrInvalidManifest = errors.New("invalid or missing manifest")
	// ErrVersionMismatch indicates an unsupported archive version.
	ErrVersionMismatch = errors.New("archive version not supported")
	// ErrCorrupted indicates the archive contents disagree with the manifest.
	ErrCorrupted = errors.New("archive integrity check failed")
)

// Source is the read side of the primary store.
type Source interface {
	ReadAllTags(ctx context.Context) ([]*domain.Tag, error)
	ReadAllClips(ctx context.Context) ([]*domain.Clip, error)
}

// Locker keeps writers of the source out while fn runs.
type Locker interface {
	Exclusive(ctx context.Context, fn func(ctx context.Context) error) error
}

// ImageReader reads image blobs by image id.
type ImageReader interface {
	Read(ctx context.Context, id string) ([]byte, error)
}

// Manifest describes an archive.
type Manifest struct {
	Version        string    `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	Counts         Counts    `json:"counts"`
	IncludesImages bool      `json:"includes_images"`
}

// Counts tracks entity counts for verification.
type Counts struct {
	Tags   int `json:"tags"`
	Clips  int `json:"clips"`
	Images int `json:"images,omitempty"`
}

// Result is the outcome of an export.
type Result struct {
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Counts   Counts        `json:"counts"`
	Checksum string        `json:"checksum"`
	Duration time.Duration `json:"duration"`
}

// Exporter writes archives.
type Exporter struct {
	source Source
	images ImageReader
	locker Locker
	logger *slog.Logger
}

// NewExporter creates an Exporter. images may be nil when archives never
// include image blobs.
func NewExporter(source Source, images ImageReader, logger *slog.Logger) *Exporter {
	return &Exporter{source: source, images: images, logger: logger}
}

// SetLocker makes Export read tags and clips within one hold of l, so the
// archive never mixes states from before and after a write.
func (e *Exporter) SetLocker(l Locker) {
	e.locker = l
}

func (e *Exporter) snapshot(ctx context.Context) (tags []*domain.Tag, clips []*domain.Clip, err error) {
	read := func(ctx context.Context) error {
		if tags, err = e.source.ReadAllTags(ctx); err != nil {
			return fmt.Errorf("read tags: %w", err)
		}
		if clips, err = e.source.ReadAllClips(ctx); err != nil {
			return fmt.Errorf("read clips: %w", err)
		}
		return nil
	}
	if e.locker == nil {
		err = read(ctx)
	} else {
		err = e.locker.Exclusive(ctx, read)
	}
	return tags, clips, err
}

// Export writes an archive to path. The file only appears once complete.
func (e *Exporter) Export(ctx context.Context, path string, includeImages bool) (*Result, error) {
	if includeImages && e.images == nil {
		return nil, errors.New("image export requested without an image store")
	}
	start := time.Now()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	defer os.Remove(tmp)
	defer f.Close()

	hash := sha256.New()
	zw := zip.NewWriter(io.MultiWriter(f, hash))

	manifest := Manifest{Version: FormatVersion, CreatedAt: time.Now().UTC(), IncludesImages: includeImages}

	tags, clips, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if manifest.Counts.Tags, err = writeAll(zw, tagsPath, tags); err != nil {
		return nil, fmt.Errorf("export tags: %w", err)
	}

	if manifest.Counts.Clips, err = writeAll(zw, clipsPath, clips); err != nil {
		return nil, fmt.Errorf("export clips: %w", err)
	}

	if includeImages {
		if manifest.Counts.Images, err = e.writeImages(ctx, zw, clips); err != nil {
			return nil, fmt.Errorf("export images: %w", err)
		}
	}

	w, err := zw.Create(manifestPath)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, fmt.Errorf("rename archive: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Path:     path,
		Size:     info.Size(),
		Counts:   manifest.Counts,
		Checksum: hex.EncodeToString(hash.Sum(nil)),
		Duration: time.Since(start),
	}
	e.logger.Info("archive written",
		"path", res.Path,
		"tags", res.Counts.Tags,
		"clips", res.Counts.Clips,
		"images", res.Counts.Images,
		"duration", res.Duration)
	return res, nil
}

func writeAll[T any](zw *zip.Writer, path string, items []T) (int, error) {
	w, err := stream.NewWriter(zw, path)
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		if err := w.Write(item); err != nil {
			return w.Count(), err
		}
	}
	return w.Count(), nil
}

func (e *Exporter) writeImages(ctx context.Context, zw *zip.Writer, clips []*domain.Clip) (int, error) {
	n := 0
	for _, c := range clips {
		for _, item := range c.Items {
			if err := ctx.Err(); err != nil {
				return n, err
			}
			data, err := e.images.Read(ctx, item.ImageID)
			if err != nil {
				// A missing blob leaves the clip record intact in the archive.
				e.logger.Warn("image missing from blob store", "clip_id", c.ID, "image_id", item.ImageID, "error", err)
				continue
			}
			w, err := zw.CreateHeader(&zip.FileHeader{Name: imagesDir + item.ImageID, Method: zip.Store})
			if err != nil {
				return n, err
			}
			if _, err := w.Write(data); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// Verification is the outcome of Verify.
type Verification struct {
	Manifest Manifest `json:"manifest"`
	Found    Counts   `json:"found"`
	Errors   []string `json:"errors,omitempty"`
}

// Valid reports whether the archive matched its manifest.
func (v *Verification) Valid() bool { return len(v.Errors) == 0 }

// Verify reads an archive and checks every entry against the manifest.
// Line-level problems are collected in the result; a missing or unreadable
// manifest is returned as an error.
func Verify(path string) (*Verification, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	rc, err := stream.Open(&zr.Reader, manifestPath)
	if err != nil {
		return nil, ErrInvalidManifest
	}
	var v Verification
	err = json.NewDecoder(rc).Decode(&v.Manifest)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if v.Manifest.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %s", ErrVersionMismatch, v.Manifest.Version)
	}

	imageIDs := map[string]bool{}
	for _, f := range zr.File {
		if id, ok := strings.CutPrefix(f.Name, imagesDir); ok && id != "" {
			imageIDs[id] = true
		}
	}
	v.Found.Images = len(imageIDs)

	tagIDs := map[string]bool{}
	if err := readEntry(&zr.Reader, tagsPath, &v, func(t domain.Tag) {
		tagIDs[t.ID] = true
		v.Found.Tags++
	}); err != nil {
		return nil, err
	}
	if err := readEntry(&zr.Reader, clipsPath, &v, func(c domain.Clip) {
		v.Found.Clips++
		for _, t := range c.Tags {
			if !tagIDs[t.ID] {
				v.Errors = append(v.Errors, fmt.Sprintf("clip %s: unknown tag %s", c.ID, t.ID))
			}
		}
	}); err != nil {
		return nil, err
	}

	if v.Found.Tags != v.Manifest.Counts.Tags {
		v.Errors = append(v.Errors, fmt.Sprintf("tags: manifest %d, found %d", v.Manifest.Counts.Tags, v.Found.Tags))
	}
	if v.Found.Clips != v.Manifest.Counts.Clips {
		v.Errors = append(v.Errors, fmt.Sprintf("clips: manifest %d, found %d", v.Manifest.Counts.Clips, v.Found.Clips))
	}
	if v.Found.Images != v.Manifest.Counts.Images {
		v.Errors = append(v.Errors, fmt.Sprintf("images: manifest %d, found %d", v.Manifest.Counts.Images, v.Found.Images))
	}
	return &v, nil
}

func readEntry[T any](zr *zip.Reader, path string, v *Verification, fn func(T)) error {
	rc, err := stream.Open(zr, path)
	if err != nil {
		if errors.Is(err, stream.ErrEntryNotFound) {
			v.Errors = append(v.Errors, "missing "+path)
			return nil
		}
		return err
	}
	n := 0
	for item, err := range stream.Lines[T](rc) {
		n++
		if err != nil {
			v.Errors = append(v.Errors, fmt.Sprintf("%s record %d: %v", path, n, err))
			continue
		}
		fn(item)
	}
	return nil
}

// Err returns ErrCorrupted wrapping the first problem, or nil.
func (v *Verification) Err() error {
	if v.Valid() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrCorrupted, v.Errors[0])
}
