// Package uuid issues the time-ordered identifiers used for every row.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a UUIDv7 string, so ids sort by creation time. If the random
// source fails it degrades to a v4 id.
func New() string {
	if id, err := googleuuid.NewV7(); err == nil {
		return id.String()
	}
	return googleuuid.NewString()
}

// Parse returns s in canonical lowercase form.
func Parse(s string) (string, error) {
	id, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IsValid reports whether s parses as a UUID.
func IsValid(s string) bool {
	return googleuuid.Validate(s) == nil
}
