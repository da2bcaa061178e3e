package slug

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// DefaultAttempts bounds collision lookups before a random suffix is used.
const DefaultAttempts = 3

const suffixLen = 6

// Lookup reports whether an owner already has a page with the given slug.
type Lookup interface {
	FindPageBySlug(ctx context.Context, ownerID, slug string) (pagegen.Page, bool, error)
}

// Assigner picks a slug that is free for an owner at the time of the call.
type Assigner struct {
	lookup   Lookup
	attempts int
	random   func() string
}

// NewAssigner constructs an Assigner backed by lookup.
func NewAssigner(lookup Lookup) *Assigner {
	return &Assigner{
		lookup:   lookup,
		attempts: DefaultAttempts,
		random:   randomToken,
	}
}

// Assign normalizes raw and disambiguates it against the owner's pages. Each
// collision appends a suffix taken from the colliding page's ID; once the
// attempt budget is spent a random suffix is returned unchecked.
func (a *Assigner) Assign(ctx context.Context, ownerID, raw string) (string, error) {
	base := Normalize(raw)
	candidate := base
	for i := 0; i < a.attempts; i++ {
		existing, found, err := a.lookup.FindPageBySlug(ctx, ownerID, candidate)
		if err != nil {
			return "", fmt.Errorf("lookup slug %q: %w", candidate, err)
		}
		if !found {
			return candidate, nil
		}
		candidate = base + "-" + shortID(existing.ID)
	}
	return a.RandomSuffix(base), nil
}

// RandomSuffix appends a random short token to base.
func (a *Assigner) RandomSuffix(base string) string {
	return base + "-" + a.random()
}

// shortID keeps the tail of an ID, which carries the random bits of a v7 UUID.
func shortID(id string) string {
	compact := strings.ReplaceAll(id, "-", "")
	if len(compact) <= suffixLen {
		return compact
	}
	return compact[len(compact)-suffixLen:]
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLen]
}
