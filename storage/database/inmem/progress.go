package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/student"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db}
}

// dateTaken reports whether another entry of the student exists on the date of `e`.
func (repo *progressRepository) dateTaken(e progress.Entry) bool {
	for _, other := range repo.db.entries {
		if other.ID != e.ID && other.StudentID == e.StudentID && other.Date.Equal(e.Date) {
			return true
		}
	}
	return false
}

func (repo *progressRepository) CreateEntry(_ context.Context, e progress.Entry) (progress.Entry, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[e.StudentID]; !ok {
		return progress.Entry{}, student.ErrNotFound
	}
	if repo.dateTaken(e) {
		return progress.Entry{}, progress.ErrEntryExists
	}
	if e.ID == "" {
		e.ID = newID()
	}
	repo.db.entries[e.ID] = e
	return e, nil
}

func (repo *progressRepository) QueryEntries(_ context.Context, filter *progress.QueryFilter, ordering []core.DBOrdering) ([]progress.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	entries := make([]progress.Entry, 0, len(repo.db.entries))
	for _, e := range repo.db.entries {
		if filter == nil || repo.match(e, filter) {
			entries = append(entries, e)
		}
	}
	sortRecords(entries, cmpEntries, ordering, core.DBOrdering{Field: "date"}, core.DBOrdering{Field: "created_at"})
	return entries, nil
}

func (repo *progressRepository) match(e progress.Entry, filter *progress.QueryFilter) bool {
	if len(filter.StudentIDs) > 0 && !core.StringInSlice(e.StudentID, filter.StudentIDs) {
		return false
	}
	if len(filter.Classes) > 0 || filter.TeacherID != "" {
		st := repo.db.students[e.StudentID]
		if len(filter.Classes) > 0 && !core.StringInSlice(st.Class, filter.Classes) {
			return false
		}
		if filter.TeacherID != "" && !st.IsAssignedTo(filter.TeacherID) {
			return false
		}
	}
	if !filter.DateFrom.IsZero() && e.Date.Before(filter.DateFrom) {
		return false
	}
	if !filter.DateTo.IsZero() && e.Date.After(filter.DateTo) {
		return false
	}
	return true
}

func cmpEntries(a, b progress.Entry, field string) int {
	switch field {
	case "id":
		return strings.Compare(a.ID, b.ID)
	case "date":
		return cmpTimes(a.Date.Time, b.Date.Time)
	case "created_at":
		return cmpTimes(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return cmpTimes(a.UpdatedAt, b.UpdatedAt)
	case "language":
		return cmpInts(a.Language, b.Language)
	case "numeracy":
		return cmpInts(a.Numeracy, b.Numeracy)
	case "motor":
		return cmpInts(a.Motor, b.Motor)
	case "social":
		return cmpInts(a.Social, b.Social)
	case "creativity":
		return cmpInts(a.Creativity, b.Creativity)
	}
	return 0
}

func (repo *progressRepository) GetEntry(_ context.Context, id string) (progress.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if e, ok := repo.db.entries[id]; ok {
		return e, nil
	}
	return progress.Entry{}, progress.ErrNotFound
}

func (repo *progressRepository) UpdateEntry(_ context.Context, e progress.Entry) (progress.Entry, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.entries[e.ID]
	if !ok {
		return progress.Entry{}, progress.ErrNotFound
	}
	e.StudentID, e.RecordedBy, e.CreatedAt = orig.StudentID, orig.RecordedBy, orig.CreatedAt
	if repo.dateTaken(e) {
		return progress.Entry{}, progress.ErrEntryExists
	}
	repo.db.entries[e.ID] = e
	return e, nil
}

func (repo *progressRepository) DeleteEntriesByID(_ context.Context, ids ...string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.entries[id]; ok {
			delete(repo.db.entries, id)
			n++
		}
	}
	return n, nil
}
