package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clipbox/clipbox/internal/domain"
	"github.com/clipbox/clipbox/internal/normalize"
)

// ApplyRemoteChanges upserts tags and album items delivered by the sync
// layer. Unlike CreateTag it performs no duplicate-name check, so forks
// produced by a merge land as-is and are left for deduplication.
func (s *Store) ApplyRemoteChanges(ctx context.Context, batch *domain.RemoteBatch) (domain.RemoteChanges, error) {
	var changes domain.RemoteChanges

	err := s.Write(ctx, func(q Querier) error {
		for i := range batch.Tags {
			t := &batch.Tags[i]
			if t.CreatedAt.IsZero() {
				t.CreatedAt = time.Now()
			}
			if t.UpdatedAt.IsZero() {
				t.UpdatedAt = t.CreatedAt
			}

			exists, err := rowExists(ctx, q, `SELECT 1 FROM tags WHERE id = ?`, t.ID)
			if err != nil {
				return err
			}
			if exists {
				_, err = q.ExecContext(ctx, `
					UPDATE tags SET name = ?, name_key = ?, is_hidden = ?, updated_at = ?
					WHERE id = ?`,
					t.Name, normalize.TagName(t.Name), boolInt(t.IsHidden), FormatTime(t.UpdatedAt), t.ID)
				changes.Tags.Updated = append(changes.Tags.Updated, t.ID)
			} else {
				_, err = q.ExecContext(ctx, `
					INSERT INTO tags (id, name, name_key, is_hidden, created_at, updated_at)
					VALUES (?, ?, ?, ?, ?, ?)`,
					t.ID, t.Name, normalize.TagName(t.Name), boolInt(t.IsHidden),
					FormatTime(t.CreatedAt), FormatTime(t.UpdatedAt))
				changes.Tags.Inserted = append(changes.Tags.Inserted, t.ID)
			}
			if err != nil {
				return fmt.Errorf("apply remote tag %s: %w", t.ID, err)
			}
		}

		deleted, err := deleteExisting(ctx, q, "tags", batch.DeletedTagIDs)
		if err != nil {
			return err
		}
		changes.Tags.Deleted = deleted

		for i := range batch.AlbumItems {
			it := &batch.AlbumItems[i]
			if it.CreatedAt.IsZero() {
				it.CreatedAt = time.Now()
			}

			exists, err := rowExists(ctx, q, `SELECT 1 FROM album_items WHERE id = ?`, it.ID)
			if err != nil {
				return err
			}
			if exists {
				_, err = q.ExecContext(ctx, `
					UPDATE album_items SET album_id = ?, clip_id = ?, item_index = ? WHERE id = ?`,
					it.AlbumID, it.ClipID, it.Index, it.ID)
				changes.AlbumItems.Updated = append(changes.AlbumItems.Updated, it.ID)
			} else {
				_, err = q.ExecContext(ctx, `
					INSERT INTO album_items (id, album_id, clip_id, item_index, created_at)
					VALUES (?, ?, ?, ?, ?)`,
					it.ID, it.AlbumID, it.ClipID, it.Index, FormatTime(it.CreatedAt))
				changes.AlbumItems.Inserted = append(changes.AlbumItems.Inserted, it.ID)
			}
			if err != nil {
				return fmt.Errorf("apply remote album item %s: %w", it.ID, err)
			}
		}

		deleted, err = deleteExisting(ctx, q, "album_items", batch.DeletedAlbumItemIDs)
		if err != nil {
			return err
		}
		changes.AlbumItems.Deleted = deleted
		return nil
	})
	if err != nil {
		return domain.RemoteChanges{}, err
	}
	return changes, nil
}

func rowExists(ctx context.Context, q Querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// deleteExisting deletes ids from table and returns those that existed.
// table is always a package constant.
func deleteExisting(ctx context.Context, q Querier, table string, ids []string) ([]string, error) {
	var deleted []string
	for _, id := range ids {
		result, err := q.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
		if err != nil {
			return nil, fmt.Errorf("delete %s %s: %w", table, id, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}
