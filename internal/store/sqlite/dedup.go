package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DeduplicateTags collapses every group of tags that shares a normalized
// name with one of tagIDs. The oldest tag of a group (created_at, then id)
// survives; clip links of the others move to it before they are deleted.
func (s *Store) DeduplicateTags(ctx context.Context, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}

	var removed int
	err := s.Write(ctx, func(q Querier) error {
		seen := make(map[string]bool)
		for _, tagID := range tagIDs {
			var key string
			err := q.QueryRowContext(ctx, `SELECT name_key FROM tags WHERE id = ?`, tagID).Scan(&key)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("read tag %s: %w", tagID, err)
			}
			if seen[key] {
				continue
			}
			seen[key] = true

			group, err := queryIDs(ctx, q,
				`SELECT id FROM tags WHERE name_key = ? ORDER BY created_at ASC, id ASC`, key)
			if err != nil {
				return fmt.Errorf("group tags %q: %w", key, err)
			}
			if len(group) < 2 {
				continue
			}

			survivor := group[0]
			for _, dup := range group[1:] {
				if _, err := q.ExecContext(ctx, `
					INSERT OR IGNORE INTO clip_tags (clip_id, tag_id, position)
					SELECT clip_id, ?, position FROM clip_tags WHERE tag_id = ?`,
					survivor, dup,
				); err != nil {
					return fmt.Errorf("move links of tag %s: %w", dup, err)
				}
				if _, err := q.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, dup); err != nil {
					return fmt.Errorf("delete tag %s: %w", dup, err)
				}
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if removed > 0 {
		s.logger.Info("deduplicated tags", "removed", removed)
	}
	return nil
}

// DeduplicateAlbumItems collapses album items sharing an (album, clip) pair
// with one of itemIDs into the item with the lowest index, then re-indexes
// each touched album contiguously from zero.
func (s *Store) DeduplicateAlbumItems(ctx context.Context, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}

	var removed int
	err := s.Write(ctx, func(q Querier) error {
		type pair struct{ albumID, clipID string }
		seen := make(map[pair]bool)
		var albums []string

		for _, itemID := range itemIDs {
			var p pair
			err := q.QueryRowContext(ctx,
				`SELECT album_id, clip_id FROM album_items WHERE id = ?`, itemID).Scan(&p.albumID, &p.clipID)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("read album item %s: %w", itemID, err)
			}
			if seen[p] {
				continue
			}
			seen[p] = true

			group, err := queryIDs(ctx, q, `
				SELECT id FROM album_items
				WHERE album_id = ? AND clip_id = ?
				ORDER BY item_index ASC, created_at ASC, id ASC`, p.albumID, p.clipID)
			if err != nil {
				return fmt.Errorf("group album items: %w", err)
			}
			if len(group) < 2 {
				continue
			}

			dups := group[1:]
			if _, err := q.ExecContext(ctx,
				`DELETE FROM album_items WHERE id IN (`+Placeholders(len(dups))+`)`, Args(dups)...,
			); err != nil {
				return fmt.Errorf("delete album items: %w", err)
			}
			removed += len(dups)
			albums = append(albums, p.albumID)
		}

		for _, albumID := range albums {
			if err := reindexAlbum(ctx, q, albumID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if removed > 0 {
		s.logger.Info("deduplicated album items", "removed", removed)
	}
	return nil
}

func reindexAlbum(ctx context.Context, q Querier, albumID string) error {
	ids, err := queryIDs(ctx, q, `
		SELECT id FROM album_items
		WHERE album_id = ?
		ORDER BY item_index ASC, created_at ASC, id ASC`, albumID)
	if err != nil {
		return fmt.Errorf("list album %s: %w", albumID, err)
	}
	for i, itemID := range ids {
		if _, err := q.ExecContext(ctx, `UPDATE album_items SET item_index = ? WHERE id = ?`, i, itemID); err != nil {
			return fmt.Errorf("reindex album item %s: %w", itemID, err)
		}
	}
	return nil
}

func queryIDs(ctx context.Context, q Querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
