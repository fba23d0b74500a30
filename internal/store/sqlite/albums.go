package sqlite

import (
	"context"
	"time"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/store"
)

// CreateAlbum inserts a new album.
func (s *Store) CreateAlbum(ctx context.Context, a *domain.Album) error {
	if a.ID == "" || a.Title == "" {
		return store.ErrInvalidInput.WithMessage("album id and title are required")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}

	return s.Write(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO albums (id, title, is_hidden, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			a.ID, a.Title, boolInt(a.IsHidden), FormatTime(a.CreatedAt), FormatTime(a.UpdatedAt),
		)
		if IsUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	})
}

// ReadAlbumItems returns the items of an album ordered by index.
func (s *Store) ReadAlbumItems(ctx context.Context, albumID string) ([]*domain.AlbumItem, error) {
	rows, err := s.Reader().QueryContext(ctx, `
		SELECT id, album_id, clip_id, item_index, created_at
		FROM album_items
		WHERE album_id = ?
		ORDER BY item_index ASC, created_at ASC, id ASC`, albumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*domain.AlbumItem{}
	for rows.Next() {
		var (
			it        domain.AlbumItem
			createdAt string
		)
		if err := rows.Scan(&it.ID, &it.AlbumID, &it.ClipID, &it.Index, &createdAt); err != nil {
			return nil, err
		}
		if it.CreatedAt, err = ParseTime(createdAt); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}
