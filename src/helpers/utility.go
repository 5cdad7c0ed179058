package helpers

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID returns a new random identifier for store primary keys.
func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateSlug returns a short prefixed identifier, e.g. "fld-1a2b3c4d5e6f".
// Slugs are used for iid values so that cross-entity references stay readable
// in stored documents.
func GenerateSlug(prefix string) string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "-" + raw[:12]
}
