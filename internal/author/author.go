// Package author implements the author registry: canonical author identity
// with get-or-create semantics.
//
// Author names are normalized (trimmed, interior whitespace collapsed)
// before storage, and uniqueness is enforced at the database level on the
// case-folded normalized form, so concurrent creates for the same person
// can never produce two rows.
package author

import (
	"errors"
	"strings"
	"time"
)

// Sentinel errors for registry operations. Checked with errors.Is.
var (
	// ErrInvalidName indicates the author name is empty after normalization.
	ErrInvalidName = errors.New("author name is empty")

	// ErrNotFound indicates the requested author does not exist.
	ErrNotFound = errors.New("author not found")

	// ErrNameTaken indicates a rename collides with another author whose
	// name has the same canonical form.
	ErrNameTaken = errors.New("author name already in use")
)

// Author is a canonical author record.
type Author struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	SiteURL   string    `json:"site_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Normalize trims leading/trailing whitespace and collapses runs of
// interior whitespace (spaces, tabs, newlines) to single spaces.
func Normalize(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// CanonicalKey returns the deduplication key for a name: the normalized
// form, lowercased. Two names with the same canonical key denote the same
// author.
func CanonicalKey(name string) string {
	return strings.ToLower(Normalize(name))
}
