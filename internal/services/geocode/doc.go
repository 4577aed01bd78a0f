// Package geocode provides a reverse geocoding client for Nominatim-style
// services. Requests retry with capped exponential backoff on rate limits
// and server errors, and terminal failures are tagged with the shared
// service error taxonomy so callers can decide what to retry later.
package geocode
