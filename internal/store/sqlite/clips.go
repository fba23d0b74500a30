package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/store"
)

const clipColumns = `id, description, is_hidden, data_size, registered_at, updated_at`

const clipItemColumns = `id, clip_id, clip_index, url, image_id, image_file_name, image_url,
	image_width, image_height, image_size, blur_hash, registered_at, updated_at`

func scanClip(scanner interface{ Scan(dest ...any) error }) (*domain.Clip, error) {
	var (
		c            domain.Clip
		description  sql.NullString
		registeredAt string
		updatedAt    string
	)

	if err := scanner.Scan(&c.ID, &description, &c.IsHidden, &c.DataSize, &registeredAt, &updatedAt); err != nil {
		return nil, err
	}
	c.Description = StringPtr(description)

	var err error
	if c.RegisteredAt, err = ParseTime(registeredAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = ParseTime(updatedAt); err != nil {
		return nil, err
	}
	c.Items = []domain.ClipItem{}
	c.Tags = []domain.Tag{}
	return &c, nil
}

func scanClipItem(scanner interface{ Scan(dest ...any) error }) (*domain.ClipItem, error) {
	var (
		it           domain.ClipItem
		url          sql.NullString
		imageURL     sql.NullString
		registeredAt string
		updatedAt    string
	)

	err := scanner.Scan(
		&it.ID, &it.ClipID, &it.ClipIndex, &url, &it.ImageID, &it.ImageFileName, &imageURL,
		&it.ImageWidth, &it.ImageHeight, &it.ImageSize, &it.BlurHash, &registeredAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	it.URL = StringPtr(url)
	it.ImageURL = StringPtr(imageURL)

	if it.RegisteredAt, err = ParseTime(registeredAt); err != nil {
		return nil, err
	}
	if it.UpdatedAt, err = ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateClip inserts a clip with its items and tag links.
// Tag ids that do not exist in the primary store are dropped.
// Returns store.ErrAlreadyExists when the clip or an item id is taken.
func (s *Store) CreateClip(ctx context.Context, c *domain.Clip) error {
	if c.ID == "" {
		return store.ErrInvalidInput.WithMessage("clip id is required")
	}
	if c.RegisteredAt.IsZero() {
		c.RegisteredAt = time.Now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.RegisteredAt
	}
	c.SortItems()

	err := s.Write(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO clips (`+clipColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, NullableString(c.Description), boolInt(c.IsHidden), c.DataSize,
			FormatTime(c.RegisteredAt), FormatTime(c.UpdatedAt),
		)
		if IsUniqueViolation(err) {
			return store.ErrAlreadyExists.WithCause(fmt.Errorf("clip %s", c.ID))
		}
		if err != nil {
			return fmt.Errorf("insert clip: %w", err)
		}

		for _, it := range c.Items {
			_, err := q.ExecContext(ctx, `
				INSERT INTO clip_items (`+clipItemColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				it.ID, c.ID, it.ClipIndex, NullableString(it.URL), it.ImageID, it.ImageFileName,
				NullableString(it.ImageURL), it.ImageWidth, it.ImageHeight, it.ImageSize, it.BlurHash,
				FormatTime(it.RegisteredAt), FormatTime(it.UpdatedAt),
			)
			if IsUniqueViolation(err) {
				return store.ErrAlreadyExists.WithCause(fmt.Errorf("clip item %s", it.ID))
			}
			if err != nil {
				return fmt.Errorf("insert clip item %s: %w", it.ID, err)
			}
		}

		for pos, tag := range c.Tags {
			_, err := q.ExecContext(ctx, `
				INSERT OR IGNORE INTO clip_tags (clip_id, tag_id, position)
				SELECT ?, id, ? FROM tags WHERE id = ?`,
				c.ID, pos, tag.ID,
			)
			if err != nil {
				return fmt.Errorf("link tag %s: %w", tag.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.OnCommit(func() {
		created, err := s.ReadClip(context.WithoutCancel(ctx), c.ID)
		if err != nil {
			s.logger.Warn("failed to load clip for indexing", "clip_id", c.ID, "error", err)
			return
		}
		if err := s.indexer.IndexClip(context.WithoutCancel(ctx), created); err != nil {
			s.logger.Warn("failed to index clip", "clip_id", c.ID, "error", err)
		}
	})
	return nil
}

// ReadClip retrieves a clip with its items and tags.
// Returns store.ErrNotFound if the clip does not exist.
func (s *Store) ReadClip(ctx context.Context, clipID string) (*domain.Clip, error) {
	q := s.Reader()

	c, err := scanClip(q.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clips WHERE id = ?`, clipID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	clips := map[string]*domain.Clip{c.ID: c}
	if err := s.loadItems(ctx, q, clips, `WHERE clip_id = ?`, clipID); err != nil {
		return nil, err
	}
	if err := s.loadTags(ctx, q, clips, `WHERE ct.clip_id = ?`, clipID); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadAllClips returns every clip with items and tags, in registration order.
func (s *Store) ReadAllClips(ctx context.Context) ([]*domain.Clip, error) {
	q := s.Reader()

	rows, err := q.QueryContext(ctx, `SELECT `+clipColumns+` FROM clips ORDER BY registered_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Clip{}
	byID := make(map[string]*domain.Clip)
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := s.loadItems(ctx, q, byID, ""); err != nil {
		return nil, err
	}
	if err := s.loadTags(ctx, q, byID, ""); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) loadItems(ctx context.Context, q Querier, clips map[string]*domain.Clip, where string, args ...any) error {
	rows, err := q.QueryContext(ctx,
		`SELECT `+clipItemColumns+` FROM clip_items `+where+` ORDER BY clip_id, clip_index`, args...)
	if err != nil {
		return fmt.Errorf("query clip items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		it, err := scanClipItem(rows)
		if err != nil {
			return err
		}
		if c, ok := clips[it.ClipID]; ok {
			c.Items = append(c.Items, *it)
		}
	}
	return rows.Err()
}

func (s *Store) loadTags(ctx context.Context, q Querier, clips map[string]*domain.Clip, where string, args ...any) error {
	rows, err := q.QueryContext(ctx, `
		SELECT ct.clip_id, t.id, t.name, t.is_hidden, t.created_at, t.updated_at
		FROM clip_tags ct
		JOIN tags t ON t.id = ct.tag_id
		`+where+`
		ORDER BY ct.clip_id, ct.position`, args...)
	if err != nil {
		return fmt.Errorf("query clip tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			clipID               string
			t                    domain.Tag
			createdAt, updatedAt string
		)
		if err := rows.Scan(&clipID, &t.ID, &t.Name, &t.IsHidden, &createdAt, &updatedAt); err != nil {
			return err
		}
		if t.CreatedAt, err = ParseTime(createdAt); err != nil {
			return err
		}
		if t.UpdatedAt, err = ParseTime(updatedAt); err != nil {
			return err
		}
		if c, ok := clips[clipID]; ok {
			c.Tags = append(c.Tags, t)
		}
	}
	return rows.Err()
}

// DeleteClips removes clips with their items and tag links.
// Missing ids are ignored.
func (s *Store) DeleteClips(ctx context.Context, clipIDs []string) error {
	if len(clipIDs) == 0 {
		return nil
	}
	err := s.Write(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx,
			`DELETE FROM clips WHERE id IN (`+Placeholders(len(clipIDs))+`)`, Args(clipIDs)...)
		return err
	})
	if err != nil {
		return err
	}

	s.OnCommit(func() {
		for _, clipID := range clipIDs {
			if err := s.indexer.DeleteClip(context.WithoutCancel(ctx), clipID); err != nil {
				s.logger.Warn("failed to remove clip from index", "clip_id", clipID, "error", err)
			}
		}
	})
	return nil
}
