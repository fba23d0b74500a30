package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/normalize"
	"github.com/clipbox/clipbox/internal/store"
)

// tagColumns is the ordered list of columns selected in tag queries.
// Must match the scan order in scanTag.
const tagColumns = `id, name, is_hidden, created_at, updated_at`

// scanTag scans a sql.Row (or sql.Rows via its Scan method) into a domain.Tag.
func scanTag(scanner interface{ Scan(dest ...any) error }) (*domain.Tag, error) {
	var (
		t         domain.Tag
		createdAt string
		updatedAt string
	)

	if err := scanner.Scan(&t.ID, &t.Name, &t.IsHidden, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if t.CreatedAt, err = ParseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTag inserts a new tag.
// Returns store.ErrDuplicateName when a tag with the same normalized name
// exists and store.ErrAlreadyExists when the id is taken.
func (s *Store) CreateTag(ctx context.Context, t *domain.Tag) error {
	if t.ID == "" || strings.TrimSpace(t.Name) == "" {
		return store.ErrInvalidInput.WithMessage("tag id and name are required")
	}
	key := normalize.TagName(t.Name)

	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	return s.Write(ctx, func(q Querier) error {
		var existing string
		err := q.QueryRowContext(ctx, `SELECT id FROM tags WHERE name_key = ? LIMIT 1`, key).Scan(&existing)
		switch {
		case err == nil && existing == t.ID:
			return store.ErrAlreadyExists
		case err == nil:
			return store.ErrDuplicateName.WithCause(fmt.Errorf("tag %q already named %q", existing, t.Name))
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check tag name: %w", err)
		}

		_, err = q.ExecContext(ctx, `
			INSERT INTO tags (id, name, name_key, is_hidden, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			t.ID, t.Name, key, boolInt(t.IsHidden),
			FormatTime(t.CreatedAt), FormatTime(t.UpdatedAt),
		)
		if IsUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	})
}

// ReadTag retrieves a tag by its ID.
// Returns store.ErrNotFound if the tag does not exist.
func (s *Store) ReadTag(ctx context.Context, tagID string) (*domain.Tag, error) {
	row := s.Reader().QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = ?`, tagID)

	t, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ReadAllTags returns all tags, oldest first.
func (s *Store) ReadAllTags(ctx context.Context) ([]*domain.Tag, error) {
	rows, err := s.Reader().QueryContext(ctx, `SELECT `+tagColumns+` FROM tags ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []*domain.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// UpdateTagName renames a tag.
func (s *Store) UpdateTagName(ctx context.Context, tagID, name string) error {
	if strings.TrimSpace(name) == "" {
		return store.ErrInvalidInput.WithMessage("tag name is required")
	}
	return s.updateTag(ctx, tagID,
		`UPDATE tags SET name = ?, name_key = ?, updated_at = ? WHERE id = ?`,
		name, normalize.TagName(name), FormatTime(time.Now()), tagID)
}

// UpdateTagHidden sets the hidden flag of a tag.
func (s *Store) UpdateTagHidden(ctx context.Context, tagID string, hidden bool) error {
	return s.updateTag(ctx, tagID,
		`UPDATE tags SET is_hidden = ?, updated_at = ? WHERE id = ?`,
		boolInt(hidden), FormatTime(time.Now()), tagID)
}

func (s *Store) updateTag(ctx context.Context, tagID, query string, args ...any) error {
	return s.Write(ctx, func(q Querier) error {
		result, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound.WithCause(fmt.Errorf("tag %s", tagID))
		}
		return nil
	})
}

// DeleteTags removes tags and their clip links. Missing ids are ignored.
func (s *Store) DeleteTags(ctx context.Context, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	return s.Write(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx,
			`DELETE FROM tags WHERE id IN (`+Placeholders(len(tagIDs))+`)`, Args(tagIDs)...)
		return err
	})
}
