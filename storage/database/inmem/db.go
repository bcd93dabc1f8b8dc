package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/plan"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/student"
	"github.com/trezcool/preschool/core/user"
)

// DB is an in-process database with the relational semantics of the postgres schema:
// deleting a user unassigns their students and deletes their plans,
// deleting a student deletes its progress entries.
type DB struct {
	mu       sync.RWMutex
	users    map[string]user.User
	students map[string]student.Student
	entries  map[string]progress.Entry
	plans    map[string]plan.Plan
}

func Open() *DB {
	return &DB{
		users:    make(map[string]user.User),
		students: make(map[string]student.Student),
		entries:  make(map[string]progress.Entry),
		plans:    make(map[string]plan.Plan),
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = make(map[string]user.User)
	db.students = make(map[string]student.Student)
	db.entries = make(map[string]progress.Entry)
	db.plans = make(map[string]plan.Plan)
}

func newID() string {
	return uuid.New().String()
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func copyStrings(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return append([]string{}, ss...)
}

// sortRecords sorts `records` by `ordering`, falling back to `deflt`, then by ID.
// cmp compares two records on one field, returning -1, 0 or 1. Unknown fields compare equal.
func sortRecords[T any](records []T, cmp func(a, b T, field string) int, ordering []core.DBOrdering, deflt ...core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = deflt
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, ord := range ordering {
			c := cmp(records[i], records[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return cmp(records[i], records[j], "id") < 0
	})
}

func cmpStrings(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func cmpInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
