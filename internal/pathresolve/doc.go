// Package pathresolve maps manifest media URIs to files on disk.
//
// Archive exports reference media with inconsistent path conventions: some
// URIs are root-relative, some carry prefixes from older layouts, and some
// only match by filename. Resolution is an ordered list of pure strategies;
// a miss is a structured Unresolved result carrying every strategy attempted,
// never an error, so unresolved media cannot abort an entry's import.
package pathresolve
