package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"chronicle/internal/services"
	"chronicle/internal/sources"
)

const entryColumns = "id, source_type, source_id, timestamp, timestamp_flag, latitude, longitude, title, body, created_at, updated_at"

// AppendEntries inserts entries and marks their natural keys imported in a
// single transaction, so a crash between append and index can never leave an
// entry invisible to the incremental tracker. A duplicate natural key outside
// the tracked flow is a store integrity violation.
func (s *Store) AppendEntries(ctx context.Context, entries []*Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	inserted := 0
	for _, entry := range entries {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO entries (
                source_type, source_id, timestamp, timestamp_flag,
                latitude, longitude, title, body, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(entry.Source),
			entry.SourceID,
			nullableTime(entry.Timestamp),
			string(entry.TimestampFlag),
			nullableFloat(entry.Latitude),
			nullableFloat(entry.Longitude),
			entry.Title,
			entry.Body,
			now,
			now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return 0, services.Wrap(services.ErrIntegrity, "store", "append",
					fmt.Sprintf("duplicate natural key %s/%s", entry.Source, entry.SourceID), err)
			}
			return 0, fmt.Errorf("insert entry %s/%s: %w", entry.Source, entry.SourceID, err)
		}
		entryID, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("last insert id: %w", err)
		}
		entry.ID = entryID

		if err := insertMediaRefs(ctx, tx, entryID, entry.Media); err != nil {
			return 0, err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO import_cursors (source_type, source_id, imported_at) VALUES (?, ?, ?)`,
			string(entry.Source), entry.SourceID, now,
		); err != nil {
			return 0, fmt.Errorf("mark imported %s/%s: %w", entry.Source, entry.SourceID, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return inserted, nil
}

// UpsertEntries replaces entries by natural key, used by forced full
// reimports. Media references are rewritten wholesale; enrichment records are
// left in place and invalidated by their input hashes instead.
func (s *Store) UpsertEntries(ctx context.Context, entries []*Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	written := 0
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entries (
                source_type, source_id, timestamp, timestamp_flag,
                latitude, longitude, title, body, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT (source_type, source_id) DO UPDATE SET
                timestamp = excluded.timestamp,
                timestamp_flag = excluded.timestamp_flag,
                latitude = excluded.latitude,
                longitude = excluded.longitude,
                title = excluded.title,
                body = excluded.body,
                updated_at = excluded.updated_at`,
			string(entry.Source),
			entry.SourceID,
			nullableTime(entry.Timestamp),
			string(entry.TimestampFlag),
			nullableFloat(entry.Latitude),
			nullableFloat(entry.Longitude),
			entry.Title,
			entry.Body,
			now,
			now,
		); err != nil {
			return 0, fmt.Errorf("upsert entry %s/%s: %w", entry.Source, entry.SourceID, err)
		}

		var entryID int64
		row := tx.QueryRowContext(ctx,
			`SELECT id FROM entries WHERE source_type = ? AND source_id = ?`,
			string(entry.Source), entry.SourceID)
		if err := row.Scan(&entryID); err != nil {
			return 0, fmt.Errorf("resolve upserted id: %w", err)
		}
		entry.ID = entryID

		if _, err := tx.ExecContext(ctx, `DELETE FROM media_refs WHERE entry_id = ?`, entryID); err != nil {
			return 0, fmt.Errorf("clear media refs: %w", err)
		}
		if err := insertMediaRefs(ctx, tx, entryID, entry.Media); err != nil {
			return 0, err
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return written, nil
}

func insertMediaRefs(ctx context.Context, tx *sql.Tx, entryID int64, refs []MediaRef) error {
	for i := range refs {
		refs[i].EntryID = entryID
		res, err := tx.ExecContext(ctx,
			`INSERT INTO media_refs (entry_id, original_uri, resolved_path, unresolved_reason, mime_type)
             VALUES (?, ?, ?, ?, ?)`,
			entryID,
			refs[i].OriginalURI,
			nullableString(refs[i].ResolvedPath),
			nullableString(refs[i].UnresolvedReason),
			nullableString(refs[i].MimeType),
		)
		if err != nil {
			return fmt.Errorf("insert media ref: %w", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			refs[i].ID = id
		}
	}
	return nil
}

// GetEntry fetches an entry with its media references by natural key.
func (s *Store) GetEntry(ctx context.Context, key NaturalKey) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE source_type = ? AND source_id = ?`,
		string(key.Source), key.SourceID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	if err := s.attachMedia(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListEntries returns all entries ordered by timestamp (missing timestamps
// last), with media references attached.
func (s *Store) ListEntries(ctx context.Context) ([]*Entry, error) {
	return s.listEntries(ctx,
		`SELECT `+entryColumns+` FROM entries ORDER BY timestamp IS NULL, timestamp, id`)
}

// ListEntriesBySource returns entries for one source type ordered by timestamp.
func (s *Store) ListEntriesBySource(ctx context.Context, source sources.Type) ([]*Entry, error) {
	return s.listEntries(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE source_type = ? ORDER BY timestamp IS NULL, timestamp, id`,
		string(source))
}

// ListEntriesByTimeRange returns entries whose timestamps fall in [from, to).
func (s *Store) ListEntriesByTimeRange(ctx context.Context, from, to time.Time) ([]*Entry, error) {
	return s.listEntries(ctx,
		`SELECT `+entryColumns+` FROM entries
         WHERE timestamp IS NOT NULL AND timestamp >= ? AND timestamp < ?
         ORDER BY timestamp, id`,
		from.UTC().Format(time.RFC3339Nano), to.UTC().Format(time.RFC3339Nano))
}

func (s *Store) listEntries(ctx context.Context, query string, args ...any) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if err := s.attachMedia(ctx, entry); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (s *Store) attachMedia(ctx context.Context, entry *Entry) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entry_id, original_uri, resolved_path, unresolved_reason, mime_type
         FROM media_refs WHERE entry_id = ? ORDER BY id`,
		entry.ID)
	if err != nil {
		return fmt.Errorf("list media refs: %w", err)
	}
	defer rows.Close()

	entry.Media = nil
	for rows.Next() {
		var (
			ref      MediaRef
			resolved sql.NullString
			reason   sql.NullString
			mime     sql.NullString
		)
		if err := rows.Scan(&ref.ID, &ref.EntryID, &ref.OriginalURI, &resolved, &reason, &mime); err != nil {
			return err
		}
		ref.ResolvedPath = resolved.String
		ref.UnresolvedReason = reason.String
		ref.MimeType = mime.String
		entry.Media = append(entry.Media, ref)
	}
	return rows.Err()
}

// PurgeEntry removes an entry, its media references, its enrichment records,
// and its import cursor. This is the explicit user data-deletion path; the
// next export simply no longer includes the entry.
func (s *Store) PurgeEntry(ctx context.Context, key NaturalKey) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin purge tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM entries WHERE source_type = ? AND source_id = ?`,
		string(key.Source), key.SourceID)
	if err != nil {
		return false, fmt.Errorf("purge entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM enrichment_records WHERE source_type = ? AND source_id = ?`,
		string(key.Source), key.SourceID); err != nil {
		return false, fmt.Errorf("purge enrichment: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM import_cursors WHERE source_type = ? AND source_id = ?`,
		string(key.Source), key.SourceID); err != nil {
		return false, fmt.Errorf("purge cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit purge: %w", err)
	}
	return affected > 0, nil
}

// Counts aggregates store contents for status output.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	counts := Counts{
		Entries:    make(map[sources.Type]int),
		Enrichment: make(map[EnrichmentKind]map[EnrichmentStatus]int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT source_type, COUNT(1) FROM entries GROUP BY source_type`)
	if err != nil {
		return counts, fmt.Errorf("count entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return counts, err
		}
		counts.Entries[sources.Type(source)] = count
	}
	if err := rows.Err(); err != nil {
		return counts, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1), COUNT(unresolved_reason) FROM media_refs`)
	if err := row.Scan(&counts.Media, &counts.Unresolved); err != nil {
		return counts, fmt.Errorf("count media: %w", err)
	}

	enrichRows, err := s.db.QueryContext(ctx,
		`SELECT kind, status, COUNT(1) FROM enrichment_records GROUP BY kind, status`)
	if err != nil {
		return counts, fmt.Errorf("count enrichment: %w", err)
	}
	defer enrichRows.Close()
	for enrichRows.Next() {
		var kind, status string
		var count int
		if err := enrichRows.Scan(&kind, &status, &count); err != nil {
			return counts, err
		}
		k := EnrichmentKind(kind)
		if counts.Enrichment[k] == nil {
			counts.Enrichment[k] = make(map[EnrichmentStatus]int)
		}
		counts.Enrichment[k][EnrichmentStatus(status)] = count
	}
	if err := enrichRows.Err(); err != nil {
		return counts, err
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM geo_cache`)
	if err := row.Scan(&counts.GeoCacheRows); err != nil {
		return counts, fmt.Errorf("count geo cache: %w", err)
	}
	return counts, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id           int64
		sourceType   string
		sourceID     string
		timestampRaw sql.NullString
		flagRaw      string
		latitude     sql.NullFloat64
		longitude    sql.NullFloat64
		title        string
		body         string
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id, &sourceType, &sourceID, &timestampRaw, &flagRaw,
		&latitude, &longitude, &title, &body, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:            id,
		Source:        sources.Type(sourceType),
		SourceID:      sourceID,
		TimestampFlag: TimestampFlag(flagRaw),
		Title:         title,
		Body:          body,
	}
	if timestampRaw.Valid {
		if ts, err := parseTimeString(timestampRaw.String); err == nil {
			entry.Timestamp = &ts
		}
	}
	if latitude.Valid {
		v := latitude.Float64
		entry.Latitude = &v
	}
	if longitude.Valid {
		v := longitude.Float64
		entry.Longitude = &v
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}
	return entry, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed")
}
