package routes

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// TrainRecord is a single parsed row of the train table.
// Origin and Destination are trimmed and upper-cased.
type TrainRecord struct {
	Row         int
	Number      string
	Name        string
	Origin      string
	Destination string
}

// RouteKey is an unordered station pair. A is always the lexicographically
// smaller station, so both directions of a route share one key.
type RouteKey struct {
	A string
	B string
}

// NewRouteKey builds the canonical key for a pair of stations given in any order.
func NewRouteKey(origin, destination string) RouteKey {
	if destination < origin {
		return RouteKey{A: destination, B: origin}
	}
	return RouteKey{A: origin, B: destination}
}

// Key returns the route key of the record.
func (r TrainRecord) Key() RouteKey {
	return NewRouteKey(r.Origin, r.Destination)
}

// String returns "A - B".
func (k RouteKey) String() string {
	return k.A + " - " + k.B
}

// Filename returns the page filename for the route.
func (k RouteKey) Filename() string {
	return fmt.Sprintf("train-between-%s-%s.html", Slugify(k.A), Slugify(k.B))
}

var slugSeparators = regexp.MustCompile(`[\s\p{Z}_]+`)

// Slugify lower-cases and trims text and collapses runs of whitespace,
// including Unicode spaces, and underscores into a single hyphen.
func Slugify(text string) string {
	return slugSeparators.ReplaceAllString(strings.TrimFunc(strings.ToLower(text), unicode.IsSpace), "-")
}
