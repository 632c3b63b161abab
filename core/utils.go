package core

import (
	"strings"
	"time"
)

// NowFunc returns the current UTC time. Mockable in tests.
var NowFunc = func() time.Time { return time.Now().UTC() }

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// StringSet is a set of non-empty strings.
type StringSet map[string]struct{}

func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, it := range items {
		s.Add(it)
	}
	return s
}

func (s StringSet) Add(item string) {
	if item != "" {
		s[item] = struct{}{}
	}
}

func (s StringSet) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Slice returns the items in no particular order.
func (s StringSet) Slice() []string {
	items := make([]string, 0, len(s))
	for it := range s {
		items = append(items, it)
	}
	return items
}
