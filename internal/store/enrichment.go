package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chronicle/internal/sources"
)

const enrichmentColumns = "id, source_type, source_id, kind, status, payload_json, input_hash, attempts, error_message, retryable, updated_at"

// GetEnrichment fetches the record for one (natural key, kind) pair.
func (s *Store) GetEnrichment(ctx context.Context, key NaturalKey, kind EnrichmentKind) (*EnrichmentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+enrichmentColumns+` FROM enrichment_records
         WHERE source_type = ? AND source_id = ? AND kind = ?`,
		string(key.Source), key.SourceID, string(kind))
	record, err := scanEnrichment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get enrichment: %w", err)
	}
	return record, nil
}

// ListEnrichment returns all enrichment records for one entry.
func (s *Store) ListEnrichment(ctx context.Context, key NaturalKey) ([]*EnrichmentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+enrichmentColumns+` FROM enrichment_records
         WHERE source_type = ? AND source_id = ? ORDER BY kind`,
		string(key.Source), key.SourceID)
	if err != nil {
		return nil, fmt.Errorf("list enrichment: %w", err)
	}
	defer rows.Close()

	var records []*EnrichmentRecord
	for rows.Next() {
		record, err := scanEnrichment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ListEnrichmentByKind returns every record of one kind.
func (s *Store) ListEnrichmentByKind(ctx context.Context, kind EnrichmentKind) ([]*EnrichmentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+enrichmentColumns+` FROM enrichment_records
         WHERE kind = ? ORDER BY source_type, source_id`,
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("list enrichment by kind: %w", err)
	}
	defer rows.Close()

	var records []*EnrichmentRecord
	for rows.Next() {
		record, err := scanEnrichment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpsertEnrichment writes a record with last-write-wins semantics. Concurrent
// workers on the same entry are anomalous but safe: the attempts counter is
// monotonic across writers.
func (s *Store) UpsertEnrichment(ctx context.Context, record *EnrichmentRecord) error {
	record.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrichment_records (
            source_type, source_id, kind, status, payload_json,
            input_hash, attempts, error_message, retryable, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (source_type, source_id, kind) DO UPDATE SET
            status = excluded.status,
            payload_json = excluded.payload_json,
            input_hash = excluded.input_hash,
            attempts = MAX(attempts, excluded.attempts),
            error_message = excluded.error_message,
            retryable = excluded.retryable,
            updated_at = excluded.updated_at`,
		string(record.Source),
		record.SourceID,
		string(record.Kind),
		string(record.Status),
		nullableString(record.PayloadJSON),
		record.InputHash,
		record.Attempts,
		nullableString(record.ErrorMessage),
		boolToInt(record.Retryable),
		record.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert enrichment %s/%s/%s: %w", record.Source, record.SourceID, record.Kind, err)
	}
	return nil
}

// PurgeEnrichment deletes records of one kind, or all kinds when kind is
// empty. Used by explicit re-enrichment purges only.
func (s *Store) PurgeEnrichment(ctx context.Context, kind EnrichmentKind) (int64, error) {
	if kind == "" {
		res, err := s.db.ExecContext(ctx, `DELETE FROM enrichment_records`)
		if err != nil {
			return 0, fmt.Errorf("purge enrichment: %w", err)
		}
		return res.RowsAffected()
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM enrichment_records WHERE kind = ?`, string(kind))
	if err != nil {
		return 0, fmt.Errorf("purge enrichment kind %s: %w", kind, err)
	}
	return res.RowsAffected()
}

// EnrichedKeys returns the natural keys already Enriched for a kind, letting
// the pipeline skip completed work unless forced.
func (s *Store) EnrichedKeys(ctx context.Context, kind EnrichmentKind) (map[NaturalKey]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_type, source_id, input_hash FROM enrichment_records
         WHERE kind = ? AND status = ?`,
		string(kind), string(EnrichmentEnriched))
	if err != nil {
		return nil, fmt.Errorf("list enriched keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[NaturalKey]string)
	for rows.Next() {
		var source, id, hash string
		if err := rows.Scan(&source, &id, &hash); err != nil {
			return nil, err
		}
		keys[NaturalKey{Source: sources.Type(source), SourceID: id}] = hash
	}
	return keys, rows.Err()
}

func scanEnrichment(scanner interface{ Scan(dest ...any) error }) (*EnrichmentRecord, error) {
	var (
		id         int64
		sourceType string
		sourceID   string
		kind       string
		status     string
		payload    sql.NullString
		inputHash  string
		attempts   int
		errMsg     sql.NullString
		retryable  sql.NullInt64
		updatedRaw string
	)
	if err := scanner.Scan(
		&id, &sourceType, &sourceID, &kind, &status,
		&payload, &inputHash, &attempts, &errMsg, &retryable, &updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &EnrichmentRecord{
		ID:           id,
		Source:       sources.Type(sourceType),
		SourceID:     sourceID,
		Kind:         EnrichmentKind(kind),
		Status:       EnrichmentStatus(status),
		PayloadJSON:  payload.String,
		InputHash:    inputHash,
		Attempts:     attempts,
		ErrorMessage: errMsg.String,
	}
	if retryable.Valid {
		record.Retryable = retryable.Int64 != 0
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}
