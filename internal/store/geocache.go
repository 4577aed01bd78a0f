package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetGeoCache fetches a cached reverse-geocoding result by bucket key.
func (s *Store) GetGeoCache(ctx context.Context, bucket string) (*GeoCacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT bucket, latitude, longitude, place_json, updated_at FROM geo_cache WHERE bucket = ?`,
		bucket)

	var (
		entry      GeoCacheEntry
		updatedRaw string
	)
	err := row.Scan(&entry.Bucket, &entry.Latitude, &entry.Longitude, &entry.PlaceJSON, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get geo cache: %w", err)
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}
	return &entry, nil
}

// UpsertGeoCache writes a cache entry with last-write-wins semantics. The geo
// cache is the only table mutated by concurrent workers; entries are derived
// and re-derivable, so a lost write only costs a repeat lookup.
func (s *Store) UpsertGeoCache(ctx context.Context, entry *GeoCacheEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geo_cache (bucket, latitude, longitude, place_json, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (bucket) DO UPDATE SET
             latitude = excluded.latitude,
             longitude = excluded.longitude,
             place_json = excluded.place_json,
             updated_at = excluded.updated_at`,
		entry.Bucket,
		entry.Latitude,
		entry.Longitude,
		entry.PlaceJSON,
		entry.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert geo cache %s: %w", entry.Bucket, err)
	}
	return nil
}

// ClearGeoCache removes all cached geocoding results.
func (s *Store) ClearGeoCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM geo_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear geo cache: %w", err)
	}
	return res.RowsAffected()
}
