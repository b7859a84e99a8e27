// Package uuid generates time-ordered UUIDv7 identifiers for primary keys.
// Rows created later sort later, which keeps btree inserts append-mostly.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a UUIDv7 string. If the randomness source fails it falls back
// to a random UUIDv4 rather than returning an error; an ID that does not
// sort perfectly is better than a failed insert.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.New().String()
	}
	return id.String()
}

// IsValid reports whether s parses as a UUID of any version.
func IsValid(s string) bool {
	return googleuuid.Validate(s) == nil
}
