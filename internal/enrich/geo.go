package enrich

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"chronicle/internal/services"
	"chronicle/internal/services/geocode"
	"chronicle/internal/store"
)

// Geocoder resolves a coordinate pair to a place. Satisfied by
// geocode.Client.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (geocode.Place, error)
}

// GeoStats counts cache effectiveness for one process lifetime.
type GeoStats struct {
	Lookups     int64
	MemoHits    int64
	StoreHits   int64
	RemoteCalls int64
}

// GeoEnricher reverse-geocodes entry coordinates. Results are shared through
// a two-level cache keyed by rounded coordinate bucket: an in-process TTL
// memo in front of the persistent geo_cache table. The persistent row is
// written before the enrichment record, so a crash between the two wastes at
// most one remote call.
type GeoEnricher struct {
	store     *store.Store
	geocoder  Geocoder
	logger    *slog.Logger
	precision int

	memo *gocache.Cache
	// single-flight per bucket so concurrent workers on nearby entries
	// collapse into one remote call
	inflight sync.Map

	lookups     atomic.Int64
	memoHits    atomic.Int64
	storeHits   atomic.Int64
	remoteCalls atomic.Int64
}

// NewGeoEnricher constructs a geo enricher with the given bucket precision in
// decimal places.
func NewGeoEnricher(st *store.Store, geocoder Geocoder, logger *slog.Logger, precision int) *GeoEnricher {
	if precision <= 0 {
		precision = 4
	}
	return &GeoEnricher{
		store:     st,
		geocoder:  geocoder,
		logger:    logger.With("component", "enrich.geo"),
		precision: precision,
		memo:      gocache.New(time.Hour, 10*time.Minute),
	}
}

func (g *GeoEnricher) Kind() store.EnrichmentKind { return store.KindGeo }

// InputHash covers only the coordinate bucket: moving an entry inside its
// bucket does not invalidate the result.
func (g *GeoEnricher) InputHash(entry *store.Entry) string {
	if !entry.HasCoordinate() {
		return "no-coordinate"
	}
	sum := sha256.Sum256([]byte(g.bucket(*entry.Latitude, *entry.Longitude)))
	return hex.EncodeToString(sum[:8])
}

// Stats returns a snapshot of cache counters.
func (g *GeoEnricher) Stats() GeoStats {
	return GeoStats{
		Lookups:     g.lookups.Load(),
		MemoHits:    g.memoHits.Load(),
		StoreHits:   g.storeHits.Load(),
		RemoteCalls: g.remoteCalls.Load(),
	}
}

func (g *GeoEnricher) Enrich(ctx context.Context, entry *store.Entry) (Outcome, error) {
	if !entry.HasCoordinate() {
		return Outcome{Status: store.EnrichmentSkipped}, nil
	}

	lat, lng := *entry.Latitude, *entry.Longitude
	bucket := g.bucket(lat, lng)
	g.lookups.Add(1)

	payload, err := g.placeForBucket(ctx, bucket, lat, lng)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: store.EnrichmentEnriched, PayloadJSON: payload}, nil
}

func (g *GeoEnricher) placeForBucket(ctx context.Context, bucket string, lat, lng float64) (string, error) {
	if cached, ok := g.memo.Get(bucket); ok {
		g.memoHits.Add(1)
		return cached.(string), nil
	}

	// Collapse concurrent lookups for the same bucket.
	lockAny, _ := g.inflight.LoadOrStore(bucket, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	if cached, ok := g.memo.Get(bucket); ok {
		g.memoHits.Add(1)
		return cached.(string), nil
	}

	persisted, err := g.store.GetGeoCache(ctx, bucket)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "enrich", "geo cache read", bucket, err)
	}
	if persisted != nil {
		g.storeHits.Add(1)
		g.memo.SetDefault(bucket, persisted.PlaceJSON)
		return persisted.PlaceJSON, nil
	}

	g.remoteCalls.Add(1)
	place, err := g.geocoder.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		return "", err
	}

	encoded, err := json.Marshal(place)
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, "enrich", "geo encode", bucket, err)
	}
	payload := string(encoded)

	// Persist before returning so the result survives even if writing the
	// enrichment record fails afterwards.
	if err := g.store.UpsertGeoCache(ctx, &store.GeoCacheEntry{
		Bucket:    bucket,
		Latitude:  lat,
		Longitude: lng,
		PlaceJSON: payload,
	}); err != nil {
		return "", services.Wrap(services.ErrTransient, "enrich", "geo cache write", bucket, err)
	}

	g.memo.SetDefault(bucket, payload)
	g.logger.Debug("reverse geocoded bucket", "bucket", bucket, "place", place.Locality())
	return payload, nil
}

func (g *GeoEnricher) bucket(lat, lng float64) string {
	return fmt.Sprintf("%.*f,%.*f", g.precision, lat, g.precision, lng)
}
