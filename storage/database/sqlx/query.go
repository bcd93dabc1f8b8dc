package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/preschool/core"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// where accumulates AND-ed conditions written with "?" bind vars.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// build returns the postgres query and args of `base` filtered by `w` and ordered by `orderBy`.
func (w *where) build(base, orderBy string) (string, []interface{}) {
	return sqlx.Rebind(sqlx.DOLLAR, base+w.String()+orderBy), w.args
}

func like(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// validIDs drops the IDs that are not UUIDs, which postgres would reject.
func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// qualified prefixes ordering fields with a table alias.
func qualified(alias string, ordering []core.DBOrdering) []core.DBOrdering {
	q := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		q = append(q, core.DBOrdering{Field: alias + "." + ord.Field, Ascending: ord.Ascending})
	}
	return q
}

func pqErrCode(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return string(pqErr.Code)
	}
	return ""
}

// trapNoRowsErr maps "no rows" errors to `notFound`.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// affected maps a result with no affected rows to `notFound`.
func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
