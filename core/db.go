package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderingFields maps public sort keys to storage columns.
type OrderingFields map[string]string

// Resolve keeps only the orderings whose field is known, translated to column names.
// When nothing survives, `def` is used.
func (of OrderingFields) Resolve(orderings []DBOrdering, def ...DBOrdering) []DBOrdering {
	resolved := make([]DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		if col, ok := of[strings.ToLower(ord.Field)]; ok {
			resolved = append(resolved, DBOrdering{Field: col, Ascending: ord.Ascending})
		}
	}
	if len(resolved) == 0 {
		resolved = append(resolved, def...)
	}
	return resolved
}

// OrderBy renders orderings as an ORDER BY clause body.
func OrderBy(orderings []DBOrdering) string {
	parts := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		parts = append(parts, ord.String())
	}
	return strings.Join(parts, ", ")
}
