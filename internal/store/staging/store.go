// Package staging implements the staging metadata store: clip recipes the
// capture flow deposits before migration, kept in their own SQLite file.
package staging

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/store"
	"github.com/clipbox/clipbox/internal/store/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store implements store.TemporaryClipStorage.
type Store struct {
	*sqlite.TxDB
	logger *slog.Logger
}

var _ store.TemporaryClipStorage = (*Store)(nil)

// Open opens (or creates) the staging database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sqlite.OpenDB(path, schemaSQL)
	if err != nil {
		return nil, fmt.Errorf("open staging store: %w", err)
	}
	return &Store{TxDB: sqlite.NewTxDB(db), logger: logger}, nil
}

const recipeColumns = `id, description, tag_ids, is_hidden, data_size, registered_at, updated_at`

const itemColumns = `id, clip_id, clip_index, url, image_id, image_file_name, image_url,
	image_width, image_height, image_size, blur_hash, registered_at, updated_at`

// CreateClip stores a recipe and its items.
func (s *Store) CreateClip(ctx context.Context, r *domain.ClipRecipe) error {
	tagIDs := r.TagIDs
	if tagIDs == nil {
		tagIDs = []string{}
	}
	tagJSON, err := json.Marshal(tagIDs)
	if err != nil {
		return fmt.Errorf("marshal tag ids: %w", err)
	}

	return s.Write(ctx, func(q sqlite.Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO clip_recipes (`+recipeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, sqlite.NullableString(r.Description), string(tagJSON), r.IsHidden, r.DataSize,
			sqlite.FormatTime(r.RegisteredAt), sqlite.FormatTime(r.UpdatedAt),
		)
		if sqlite.IsUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		if err != nil {
			return fmt.Errorf("insert recipe: %w", err)
		}

		for _, it := range r.Items {
			_, err := q.ExecContext(ctx, `
				INSERT INTO clip_item_recipes (`+itemColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				it.ID, r.ID, it.ClipIndex, sqlite.NullableString(it.URL), it.ImageID, it.ImageFileName,
				sqlite.NullableString(it.ImageURL), it.ImageWidth, it.ImageHeight, it.ImageSize, it.BlurHash,
				sqlite.FormatTime(it.RegisteredAt), sqlite.FormatTime(it.UpdatedAt),
			)
			if err != nil {
				return fmt.Errorf("insert item recipe %s: %w", it.ID, err)
			}
		}
		return nil
	})
}

// ReadAllClips returns every staged recipe in registration order.
func (s *Store) ReadAllClips(ctx context.Context) ([]*domain.ClipRecipe, error) {
	q := s.Reader()

	rows, err := q.QueryContext(ctx, `SELECT `+recipeColumns+` FROM clip_recipes ORDER BY registered_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.ClipRecipe{}
	byID := make(map[string]*domain.ClipRecipe)
	for rows.Next() {
		var (
			r                       domain.ClipRecipe
			description             sql.NullString
			tagJSON                 string
			registeredAt, updatedAt string
		)
		if err := rows.Scan(&r.ID, &description, &tagJSON, &r.IsHidden, &r.DataSize, &registeredAt, &updatedAt); err != nil {
			return nil, err
		}
		r.Description = sqlite.StringPtr(description)
		if err := json.Unmarshal([]byte(tagJSON), &r.TagIDs); err != nil {
			return nil, fmt.Errorf("recipe %s: decode tag ids: %w", r.ID, err)
		}
		if r.RegisteredAt, err = sqlite.ParseTime(registeredAt); err != nil {
			return nil, err
		}
		if r.UpdatedAt, err = sqlite.ParseTime(updatedAt); err != nil {
			return nil, err
		}
		r.Items = []domain.ClipItemRecipe{}
		out = append(out, &r)
		byID[r.ID] = &r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	items, err := q.QueryContext(ctx, `SELECT `+itemColumns+` FROM clip_item_recipes ORDER BY clip_id, clip_index`)
	if err != nil {
		return nil, err
	}
	defer items.Close()

	for items.Next() {
		var (
			it                      domain.ClipItemRecipe
			url, imageURL           sql.NullString
			registeredAt, updatedAt string
		)
		err := items.Scan(
			&it.ID, &it.ClipID, &it.ClipIndex, &url, &it.ImageID, &it.ImageFileName, &imageURL,
			&it.ImageWidth, &it.ImageHeight, &it.ImageSize, &it.BlurHash, &registeredAt, &updatedAt,
		)
		if err != nil {
			return nil, err
		}
		it.URL = sqlite.StringPtr(url)
		it.ImageURL = sqlite.StringPtr(imageURL)
		if it.RegisteredAt, err = sqlite.ParseTime(registeredAt); err != nil {
			return nil, err
		}
		if it.UpdatedAt, err = sqlite.ParseTime(updatedAt); err != nil {
			return nil, err
		}
		if r, ok := byID[it.ClipID]; ok {
			r.Items = append(r.Items, it)
		}
	}
	return out, items.Err()
}

// DeleteClip removes one recipe and its items.
// Returns store.ErrNotFound when the recipe does not exist.
func (s *Store) DeleteClip(ctx context.Context, clipID string) error {
	return s.Write(ctx, func(q sqlite.Querier) error {
		result, err := q.ExecContext(ctx, `DELETE FROM clip_recipes WHERE id = ?`, clipID)
		if err != nil {
			return err
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return store.ErrNotFound.WithCause(fmt.Errorf("recipe %s", clipID))
		}
		return nil
	})
}

// DeleteAll removes every recipe.
func (s *Store) DeleteAll(ctx context.Context) error {
	return s.Write(ctx, func(q sqlite.Querier) error {
		_, err := q.ExecContext(ctx, `DELETE FROM clip_recipes`)
		return err
	})
}
