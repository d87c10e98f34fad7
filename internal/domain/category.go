package domain

import (
	"strings"
	"time"
)

// Category is the closed set of marker kinds.
type Category string

const (
	CategoryICE      Category = "ice"
	CategoryObserver Category = "observer"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryICE, CategoryObserver}

// ttls is the fixed expiry table.
var ttls = map[Category]time.Duration{
	CategoryICE:      24 * time.Hour,
	CategoryObserver: time.Hour,
}

// ParseCategory trims s and returns the matching Category.
// Matching is case-sensitive; anything else yields ErrInvalidCategory.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSpace(s))
	if !c.Valid() {
		return "", invalidCategory(s)
	}
	return c, nil
}

// Valid reports whether c belongs to the closed set.
func (c Category) Valid() bool {
	_, ok := ttls[c]
	return ok
}

func (c Category) String() string { return string(c) }
