package store

import (
	"context"
	"fmt"
	"time"

	"chronicle/internal/sources"
)

// HasImported reports whether a natural key is already in the import cursor.
func (s *Store) HasImported(ctx context.Context, key NaturalKey) (bool, error) {
	var count int
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM import_cursors WHERE source_type = ? AND source_id = ?`,
		string(key.Source), key.SourceID)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check cursor: %w", err)
	}
	return count > 0, nil
}

// ImportedKeys returns every imported source-native id for one source type,
// so importers can filter whole manifests without a query per record.
func (s *Store) ImportedKeys(ctx context.Context, source sources.Type) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id FROM import_cursors WHERE source_type = ?`, string(source))
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		keys[id] = struct{}{}
	}
	return keys, rows.Err()
}

// RebuildCursors re-derives the import cursor index from the entries table.
// Forced full reimports call this after upserting so the cursor exactly
// matches what is stored.
func (s *Store) RebuildCursors(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM import_cursors`); err != nil {
		return fmt.Errorf("clear cursors: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO import_cursors (source_type, source_id, imported_at)
         SELECT source_type, source_id, ? FROM entries`,
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("rebuild cursors: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild: %w", err)
	}
	return nil
}
