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
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/student"
)

const entryColumns = `e.id, e.student_id, e.date, e.recorded_by, e.language, e.numeracy, e.motor, e.social,
	e.creativity, e.remarks, e.created_at, e.updated_at`

var (
	entryOrderings       = []string{"date", "created_at", "updated_at", "language", "numeracy", "motor", "social", "creativity"}
	defaultEntryOrdering = []core.DBOrdering{{Field: "e.date"}, {Field: "e.created_at"}}
)

type entryRow struct {
	ID         string      `db:"id"`
	StudentID  string      `db:"student_id"`
	Date       core.Date   `db:"date"`
	RecordedBy null.String `db:"recorded_by"`
	progress.Ratings
	Remarks   string    `db:"remarks"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func toEntryRow(e progress.Entry) entryRow {
	row := entryRow(e)
	row.CreatedAt = e.CreatedAt.UTC()
	row.UpdatedAt = e.UpdatedAt.UTC()
	return row
}

func (row entryRow) entry() progress.Entry {
	e := progress.Entry(row)
	e.CreatedAt = row.CreatedAt.UTC()
	e.UpdatedAt = row.UpdatedAt.UTC()
	return e
}

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) progress.Repository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) CreateEntry(ctx context.Context, e progress.Entry) (progress.Entry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	q := `INSERT INTO progress_entry (id, student_id, date, recorded_by, language, numeracy, motor, social,
			creativity, remarks, created_at, updated_at)
		VALUES (:id, :student_id, :date, :recorded_by, :language, :numeracy, :motor, :social,
			:creativity, :remarks, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, toEntryRow(e)); err != nil {
		switch pqErrCode(err) {
		case uniqueViolation:
			return progress.Entry{}, progress.ErrEntryExists
		case foreignKeyViolation:
			return progress.Entry{}, student.ErrNotFound
		}
		return progress.Entry{}, errors.Wrap(err, "inserting progress entry")
	}
	return repo.GetEntry(ctx, e.ID)
}

func (repo *progressRepository) QueryEntries(ctx context.Context, filter *progress.QueryFilter, ordering []core.DBOrdering) ([]progress.Entry, error) {
	w := new(where)
	if filter != nil {
		if len(filter.StudentIDs) > 0 {
			w.add("e.student_id = ANY(?)", pq.Array(validIDs(filter.StudentIDs)))
		}
		if len(filter.Classes) > 0 {
			w.add("s.class = ANY(?)", pq.Array(filter.Classes))
		}
		if filter.TeacherID != "" {
			w.add("s.teacher_id = ?", null.NewString(filter.TeacherID, isValidID(filter.TeacherID)))
		}
		if !filter.DateFrom.IsZero() {
			w.add("e.date >= ?", filter.DateFrom)
		}
		if !filter.DateTo.IsZero() {
			w.add("e.date <= ?", filter.DateTo)
		}
	}
	ordering = qualified("e", core.AllowedOrderings(ordering, entryOrderings...))
	orderBy := core.OrderByClause(ordering, defaultEntryOrdering...)
	q, args := w.build(`SELECT `+entryColumns+` FROM progress_entry e JOIN student s ON s.id = e.student_id`, orderBy)

	var rows []entryRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying progress entries")
	}
	entries := make([]progress.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.entry())
	}
	return entries, nil
}

func (repo *progressRepository) GetEntry(ctx context.Context, id string) (progress.Entry, error) {
	if !isValidID(id) {
		return progress.Entry{}, progress.ErrNotFound
	}
	var row entryRow
	if err := sqlx.GetContext(ctx, repo.db, &row, `SELECT `+entryColumns+` FROM progress_entry e WHERE e.id = $1`, id); err != nil {
		return progress.Entry{}, trapNoRowsErr(err, progress.ErrNotFound, "finding progress entry")
	}
	return row.entry(), nil
}

func (repo *progressRepository) UpdateEntry(ctx context.Context, e progress.Entry) (progress.Entry, error) {
	if !isValidID(e.ID) {
		return progress.Entry{}, progress.ErrNotFound
	}
	q := `UPDATE progress_entry SET date = :date, language = :language, numeracy = :numeracy, motor = :motor,
		social = :social, creativity = :creativity, remarks = :remarks, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.db, q, toEntryRow(e))
	if err != nil {
		if pqErrCode(err) == uniqueViolation {
			return progress.Entry{}, progress.ErrEntryExists
		}
		return progress.Entry{}, errors.Wrap(err, "updating progress entry")
	}
	if err = affected(res, progress.ErrNotFound); err != nil {
		return progress.Entry{}, err
	}
	return repo.GetEntry(ctx, e.ID)
}

func (repo *progressRepository) DeleteEntriesByID(ctx context.Context, ids ...string) (int, error) {
	return deleteByID(ctx, repo.db, "progress_entry", ids)
}
