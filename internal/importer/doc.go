// Package importer turns located archive manifests into normalized store
// entries. One importer per source type handles that source's manifest
// format; the Service layers incremental dedup and forced reimport on top.
//
// Importers are forgiving by construction: a malformed record is counted and
// skipped, a record without a timestamp is flagged and kept, and a media
// reference that cannot be mapped to a local file is retained with the
// failure reason. Parsing never invents data, in particular it never stamps
// a record with the import time.
package importer
