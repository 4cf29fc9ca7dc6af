package sqlxrepos

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/newstandard/academy/core"
)

const uniqueViolation = "23505"

// extOf returns the transaction passed by the caller, or db.
func extOf(db *sqlx.DB, exec []core.DBExecutor) sqlx.ExtContext {
	if len(exec) > 0 && exec[0] != nil {
		if ext, ok := exec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return db
}

// uniqueViolationOn reports whether err breaks the named unique constraint.
func uniqueViolationOn(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == uniqueViolation && pqErr.Constraint == constraint
}

// orderBy renders orderings whose field is allowed, falling back to def.
func orderBy(orderings []core.DBOrdering, allowed map[string]string, def string) string {
	parts := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if col, ok := allowed[ord.Field]; ok {
			parts = append(parts, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(parts) == 0 {
		return " ORDER BY " + def
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func newID() string { return uuid.New().String() }

// isUUID guards uuid columns against malformed ids, which Postgres rejects with an error.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullID(id string) null.String { return null.NewString(id, id != "") }
