package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/student"
)

const studentColumns = `id, name, age, class, learning_ability, writing_speed, teacher_id, photo_url,
	guardian_name, guardian_phone, support_notes, created_at, updated_at`

var (
	studentOrderings       = []string{"name", "age", "class", "learning_ability", "writing_speed", "created_at", "updated_at"}
	defaultStudentOrdering = core.DBOrdering{Field: "name", Ascending: true}

	errUnknownTeacher = core.NewFieldError("teacher_id", "teacher not found")
)

type studentRow struct {
	ID              string      `db:"id"`
	Name            string      `db:"name"`
	Age             int         `db:"age"`
	Class           string      `db:"class"`
	LearningAbility string      `db:"learning_ability"`
	WritingSpeed    string      `db:"writing_speed"`
	TeacherID       null.String `db:"teacher_id"`
	PhotoURL        null.String `db:"photo_url"`
	GuardianName    string      `db:"guardian_name"`
	GuardianPhone   string      `db:"guardian_phone"`
	SupportNotes    string      `db:"support_notes"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func toStudentRow(st student.Student) studentRow {
	row := studentRow(st)
	row.CreatedAt = st.CreatedAt.UTC()
	row.UpdatedAt = st.UpdatedAt.UTC()
	return row
}

func (row studentRow) student() student.Student {
	st := student.Student(row)
	st.CreatedAt = row.CreatedAt.UTC()
	st.UpdatedAt = row.UpdatedAt.UTC()
	return st
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	q := `INSERT INTO student (` + studentColumns + `)
		VALUES (:id, :name, :age, :class, :learning_ability, :writing_speed, :teacher_id, :photo_url,
			:guardian_name, :guardian_phone, :support_notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, toStudentRow(st)); err != nil {
		if pqErrCode(err) == foreignKeyViolation {
			return student.Student{}, errUnknownTeacher
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return repo.GetStudent(ctx, st.ID)
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	w := new(where)
	if filter != nil {
		if filter.Search != "" {
			val := like(filter.Search)
			w.add("(name ILIKE ? OR guardian_name ILIKE ?)", val, val)
		}
		if len(filter.Classes) > 0 {
			w.add("class = ANY(?)", pq.Array(filter.Classes))
		}
		if filter.TeacherID != "" {
			w.add("teacher_id = ?", null.NewString(filter.TeacherID, isValidID(filter.TeacherID)))
		}
		if filter.Unassigned {
			w.add("teacher_id IS NULL")
		}
		if len(filter.LearningAbilities) > 0 {
			w.add("learning_ability = ANY(?)", pq.Array(filter.LearningAbilities))
		}
		if len(filter.WritingSpeeds) > 0 {
			w.add("writing_speed = ANY(?)", pq.Array(filter.WritingSpeeds))
		}
		if filter.IDs != nil {
			w.add("id = ANY(?)", pq.Array(validIDs(filter.IDs)))
		}
	}
	orderBy := core.OrderByClause(core.AllowedOrderings(ordering, studentOrderings...), defaultStudentOrdering)
	q, args := w.build(`SELECT `+studentColumns+` FROM student`, orderBy)

	var rows []studentRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	if !isValidID(id) {
		return student.Student{}, student.ErrNotFound
	}
	var row studentRow
	if err := sqlx.GetContext(ctx, repo.db, &row, `SELECT `+studentColumns+` FROM student WHERE id = $1`, id); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	return row.student(), nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	if !isValidID(st.ID) {
		return student.Student{}, student.ErrNotFound
	}
	q := `UPDATE student SET name = :name, age = :age, class = :class, learning_ability = :learning_ability,
		writing_speed = :writing_speed, teacher_id = :teacher_id, photo_url = :photo_url,
		guardian_name = :guardian_name, guardian_phone = :guardian_phone, support_notes = :support_notes,
		updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.db, q, toStudentRow(st))
	if err != nil {
		if pqErrCode(err) == foreignKeyViolation {
			return student.Student{}, errUnknownTeacher
		}
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if err = affected(res, student.ErrNotFound); err != nil {
		return student.Student{}, err
	}
	return repo.GetStudent(ctx, st.ID)
}

func (repo *studentRepository) SetTeacher(ctx context.Context, teacherID null.String, updatedAt time.Time, ids ...string) (int, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(
		ctx,
		`UPDATE student SET teacher_id = $1, updated_at = $2 WHERE id = ANY($3)`,
		teacherID, updatedAt.UTC(), pq.Array(ids),
	)
	if err != nil {
		if pqErrCode(err) == foreignKeyViolation {
			return 0, errUnknownTeacher
		}
		return 0, errors.Wrap(err, "setting students teacher")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting updated rows")
}

func (repo *studentRepository) DeleteStudentsByID(ctx context.Context, ids ...string) (int, error) {
	return deleteByID(ctx, repo.db, "student", ids)
}
