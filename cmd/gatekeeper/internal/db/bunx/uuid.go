package bunx

import (
	"strings"

	"github.com/google/uuid"
)

// NewUUIDv7 generates a time-ordered UUIDv7 string for database primary keys.
//
// Used instead of a gen_random_uuid() column default so the same models work
// on PostgreSQL and SQLite. Panics only if the entropy source fails.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewAPIKeyID generates a public API key identifier: 32 upper-case hex
// characters with no separators, safe to embed in a Basic credential.
func NewAPIKeyID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
