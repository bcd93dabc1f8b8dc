package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/plan"
)

const planColumns = `id, type, class, title, start_date, end_date, description, activities, goals, teacher_id,
	created_at, updated_at`

var (
	planOrderings       = []string{"start_date", "end_date", "title", "type", "class", "created_at", "updated_at"}
	defaultPlanOrdering = core.DBOrdering{Field: "start_date"}
)

type planRow struct {
	ID          string         `db:"id"`
	Type        string         `db:"type"`
	Class       string         `db:"class"`
	Title       string         `db:"title"`
	StartDate   core.Date      `db:"start_date"`
	EndDate     core.Date      `db:"end_date"`
	Description string         `db:"description"`
	Activities  pq.StringArray `db:"activities"`
	Goals       pq.StringArray `db:"goals"`
	TeacherID   string         `db:"teacher_id"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func toPlanRow(p plan.Plan) planRow {
	return planRow{
		ID:          p.ID,
		Type:        p.Type,
		Class:       p.Class,
		Title:       p.Title,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Description: p.Description,
		Activities:  pq.StringArray(nonNil(p.Activities)),
		Goals:       pq.StringArray(nonNil(p.Goals)),
		TeacherID:   p.TeacherID,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

func (row planRow) plan() plan.Plan {
	return plan.Plan{
		ID:          row.ID,
		Type:        row.Type,
		Class:       row.Class,
		Title:       row.Title,
		StartDate:   row.StartDate,
		EndDate:     row.EndDate,
		Description: row.Description,
		Activities:  []string(row.Activities),
		Goals:       []string(row.Goals),
		TeacherID:   row.TeacherID,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

type planRepository struct {
	db *sqlx.DB
}

var _ plan.Repository = (*planRepository)(nil) // interface compliance check

func NewPlanRepository(db *sqlx.DB) plan.Repository {
	return &planRepository{db: db}
}

func (repo *planRepository) CreatePlan(ctx context.Context, p plan.Plan) (plan.Plan, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	q := `INSERT INTO teaching_plan (` + planColumns + `)
		VALUES (:id, :type, :class, :title, :start_date, :end_date, :description, :activities, :goals, :teacher_id,
			:created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, toPlanRow(p)); err != nil {
		if pqErrCode(err) == foreignKeyViolation {
			return plan.Plan{}, errUnknownTeacher
		}
		return plan.Plan{}, errors.Wrap(err, "inserting plan")
	}
	return repo.GetPlan(ctx, p.ID)
}

func (repo *planRepository) QueryPlans(ctx context.Context, filter *plan.QueryFilter, ordering []core.DBOrdering) ([]plan.Plan, error) {
	w := new(where)
	if filter != nil {
		if filter.Search != "" {
			val := like(filter.Search)
			w.add("(title ILIKE ? OR description ILIKE ?)", val, val)
		}
		if len(filter.Types) > 0 {
			w.add("type = ANY(?)", pq.Array(filter.Types))
		}
		if len(filter.Classes) > 0 {
			w.add("class = ANY(?)", pq.Array(filter.Classes))
		}
		if filter.TeacherID != "" {
			if !isValidID(filter.TeacherID) {
				return []plan.Plan{}, nil
			}
			w.add("teacher_id = ?", filter.TeacherID)
		}
		// plans overlapping the period
		if !filter.DateFrom.IsZero() {
			w.add("end_date >= ?", filter.DateFrom)
		}
		if !filter.DateTo.IsZero() {
			w.add("start_date <= ?", filter.DateTo)
		}
	}
	orderBy := core.OrderByClause(core.AllowedOrderings(ordering, planOrderings...), defaultPlanOrdering)
	q, args := w.build(`SELECT `+planColumns+` FROM teaching_plan`, orderBy)

	var rows []planRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying plans")
	}
	plans := make([]plan.Plan, 0, len(rows))
	for _, row := range rows {
		plans = append(plans, row.plan())
	}
	return plans, nil
}

func (repo *planRepository) GetPlan(ctx context.Context, id string) (plan.Plan, error) {
	if !isValidID(id) {
		return plan.Plan{}, plan.ErrNotFound
	}
	var row planRow
	if err := sqlx.GetContext(ctx, repo.db, &row, `SELECT `+planColumns+` FROM teaching_plan WHERE id = $1`, id); err != nil {
		return plan.Plan{}, trapNoRowsErr(err, plan.ErrNotFound, "finding plan")
	}
	return row.plan(), nil
}

func (repo *planRepository) UpdatePlan(ctx context.Context, p plan.Plan) (plan.Plan, error) {
	if !isValidID(p.ID) {
		return plan.Plan{}, plan.ErrNotFound
	}
	q := `UPDATE teaching_plan SET type = :type, class = :class, title = :title, start_date = :start_date,
		end_date = :end_date, description = :description, activities = :activities, goals = :goals,
		teacher_id = :teacher_id, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.db, q, toPlanRow(p))
	if err != nil {
		if pqErrCode(err) == foreignKeyViolation {
			return plan.Plan{}, errUnknownTeacher
		}
		return plan.Plan{}, errors.Wrap(err, "updating plan")
	}
	if err = affected(res, plan.ErrNotFound); err != nil {
		return plan.Plan{}, err
	}
	return repo.GetPlan(ctx, p.ID)
}

func (repo *planRepository) DeletePlansByID(ctx context.Context, ids ...string) (int, error) {
	return deleteByID(ctx, repo.db, "teaching_plan", ids)
}
