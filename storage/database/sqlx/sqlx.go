// Package sqlxrepos implements the repositories on Postgres with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/mmust/marktrack/core"
)

const uniqueViolation = "unique_violation"

// uniqueConstraint returns the name of the unique constraint violated by err, if any.
func uniqueConstraint(err error) (string, bool) {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok || pqErr.Code.Name() != uniqueViolation {
		return "", false
	}
	return pqErr.Constraint, true
}

// trapNoRowsErr turns sql.ErrNoRows into the domain's not-found error.
func trapNoRowsErr(err, notFound error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return err
}

// where builds a WHERE clause with `?` placeholders, expanded by sqlx.In then rebound.
// A nil slice filter is skipped; an empty one makes the whole query match nothing.
type where struct {
	clauses []string
	args    []interface{}
	none    bool
}

func (w *where) add(clause string, args ...interface{}) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) inStrings(col string, values []string) {
	if values == nil {
		return
	}
	if len(values) == 0 {
		w.none = true
		return
	}
	w.add(col+" IN (?)", values)
}

func (w *where) inInts(col string, values []int) {
	if values == nil {
		return
	}
	if len(values) == 0 {
		w.none = true
		return
	}
	w.add(col+" IN (?)", values)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// build expands the slice arguments of `base` restricted by w and followed by `suffix`.
// The query keeps `?` placeholders.
func (w *where) build(base, suffix string) (string, []interface{}, error) {
	query, args, err := sqlx.In(base+w.String()+" "+suffix, w.args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "building query")
	}
	return query, args, nil
}

// selectWhere runs `base` restricted by w and followed by `suffix` (ORDER BY...).
func selectWhere(ctx context.Context, exec sqlx.ExtContext, dest interface{}, base string, w *where, suffix string) error {
	query, args, err := w.build(base, suffix)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, exec, dest, exec.Rebind(query), args...)
}

func orderBy(ordering []core.DBOrdering, tieBreaker string) string {
	clause := core.OrderBy(ordering)
	if clause == "" {
		return "ORDER BY " + tieBreaker
	}
	return "ORDER BY " + clause + ", " + tieBreaker
}
