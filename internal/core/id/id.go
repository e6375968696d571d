// Package id provides identifiers for journal entities.
// Reservation sessions use UUIDv7 strings: time-ordered, so the
// (status, expires_at) scans and the primary key index stay local.
package id

import (
	"github.com/google/uuid"
)

// NewSessionID generates a new session identifier.
func NewSessionID() string {
	v, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 if V7 fails (should never happen)
		return uuid.New().String()
	}
	return v.String()
}

// ValidSessionID reports whether s looks like a session identifier.
// Lookups with malformed ids are answered as "not found" without hitting storage.
func ValidSessionID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
