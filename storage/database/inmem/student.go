package inmemdb

import (
	"context"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/student"
)

var errUnknownTeacher = core.NewFieldError("teacher_id", "teacher not found")

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) checkTeacher(teacherID null.String) error {
	if !teacherID.Valid {
		return nil
	}
	if _, ok := repo.db.users[teacherID.String]; !ok {
		return errUnknownTeacher
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, st student.Student) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkTeacher(st.TeacherID); err != nil {
		return student.Student{}, err
	}
	if st.ID == "" {
		st.ID = newID()
	}
	repo.db.students[st.ID] = st
	return st, nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]student.Student, 0, len(repo.db.students))
	for _, st := range repo.db.students {
		if filter == nil || matchStudent(st, filter) {
			students = append(students, st)
		}
	}
	sortRecords(students, cmpStudents, ordering, core.DBOrdering{Field: "name", Ascending: true})
	return students, nil
}

func matchStudent(st student.Student, filter *student.QueryFilter) bool {
	if filter.Search != "" && !(containsFold(st.Name, filter.Search) || containsFold(st.GuardianName, filter.Search)) {
		return false
	}
	if len(filter.Classes) > 0 && !core.StringInSlice(st.Class, filter.Classes) {
		return false
	}
	if filter.TeacherID != "" && !st.IsAssignedTo(filter.TeacherID) {
		return false
	}
	if filter.Unassigned && st.TeacherID.Valid {
		return false
	}
	if len(filter.LearningAbilities) > 0 && !core.StringInSlice(st.LearningAbility, filter.LearningAbilities) {
		return false
	}
	if len(filter.WritingSpeeds) > 0 && !core.StringInSlice(st.WritingSpeed, filter.WritingSpeeds) {
		return false
	}
	if filter.IDs != nil && !core.StringInSlice(st.ID, filter.IDs) {
		return false
	}
	return true
}

func cmpStudents(a, b student.Student, field string) int {
	switch field {
	case "id":
		return strings.Compare(a.ID, b.ID)
	case "name":
		return cmpStrings(a.Name, b.Name)
	case "age":
		return cmpInts(a.Age, b.Age)
	case "class":
		return strings.Compare(a.Class, b.Class)
	case "learning_ability":
		return strings.Compare(a.LearningAbility, b.LearningAbility)
	case "writing_speed":
		return strings.Compare(a.WritingSpeed, b.WritingSpeed)
	case "created_at":
		return cmpTimes(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return cmpTimes(a.UpdatedAt, b.UpdatedAt)
	}
	return 0
}

func (repo *studentRepository) GetStudent(_ context.Context, id string) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if st, ok := repo.db.students[id]; ok {
		return st, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(_ context.Context, st student.Student) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[st.ID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	if err := repo.checkTeacher(st.TeacherID); err != nil {
		return student.Student{}, err
	}
	repo.db.students[st.ID] = st
	return st, nil
}

func (repo *studentRepository) SetTeacher(_ context.Context, teacherID null.String, updatedAt time.Time, ids ...string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkTeacher(teacherID); err != nil {
		return 0, err
	}
	var n int
	for _, id := range ids {
		if st, ok := repo.db.students[id]; ok {
			st.TeacherID = teacherID
			st.UpdatedAt = updatedAt.UTC()
			repo.db.students[id] = st
			n++
		}
	}
	return n, nil
}

// DeleteStudentsByID deletes students and their progress entries.
func (repo *studentRepository) DeleteStudentsByID(_ context.Context, ids ...string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.students[id]; !ok {
			continue
		}
		delete(repo.db.students, id)
		n++
		for eID, e := range repo.db.entries {
			if e.StudentID == id {
				delete(repo.db.entries, eID)
			}
		}
	}
	return n, nil
}
