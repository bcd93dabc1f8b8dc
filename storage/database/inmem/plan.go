package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/plan"
)

type planRepository struct {
	db *DB
}

var _ plan.Repository = (*planRepository)(nil) // interface compliance check

func NewPlanRepository(db *DB) plan.Repository {
	return &planRepository{db: db}
}

func clonePlan(p plan.Plan) plan.Plan {
	p.Activities = copyStrings(p.Activities)
	p.Goals = copyStrings(p.Goals)
	return p
}

func (repo *planRepository) CreatePlan(_ context.Context, p plan.Plan) (plan.Plan, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[p.TeacherID]; !ok {
		return plan.Plan{}, errUnknownTeacher
	}
	if p.ID == "" {
		p.ID = newID()
	}
	repo.db.plans[p.ID] = clonePlan(p)
	return clonePlan(p), nil
}

func (repo *planRepository) QueryPlans(_ context.Context, filter *plan.QueryFilter, ordering []core.DBOrdering) ([]plan.Plan, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	plans := make([]plan.Plan, 0, len(repo.db.plans))
	for _, p := range repo.db.plans {
		if filter == nil || matchPlan(p, filter) {
			plans = append(plans, clonePlan(p))
		}
	}
	sortRecords(plans, cmpPlans, ordering, core.DBOrdering{Field: "start_date"})
	return plans, nil
}

func matchPlan(p plan.Plan, filter *plan.QueryFilter) bool {
	if filter.Search != "" && !(containsFold(p.Title, filter.Search) || containsFold(p.Description, filter.Search)) {
		return false
	}
	if len(filter.Types) > 0 && !core.StringInSlice(p.Type, filter.Types) {
		return false
	}
	if len(filter.Classes) > 0 && !core.StringInSlice(p.Class, filter.Classes) {
		return false
	}
	if filter.TeacherID != "" && p.TeacherID != filter.TeacherID {
		return false
	}
	// plans overlapping the period
	if !filter.DateFrom.IsZero() && p.EndDate.Before(filter.DateFrom) {
		return false
	}
	if !filter.DateTo.IsZero() && p.StartDate.After(filter.DateTo) {
		return false
	}
	return true
}

func cmpPlans(a, b plan.Plan, field string) int {
	switch field {
	case "id":
		return strings.Compare(a.ID, b.ID)
	case "start_date":
		return cmpTimes(a.StartDate.Time, b.StartDate.Time)
	case "end_date":
		return cmpTimes(a.EndDate.Time, b.EndDate.Time)
	case "title":
		return cmpStrings(a.Title, b.Title)
	case "type":
		return strings.Compare(a.Type, b.Type)
	case "class":
		return strings.Compare(a.Class, b.Class)
	case "created_at":
		return cmpTimes(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return cmpTimes(a.UpdatedAt, b.UpdatedAt)
	}
	return 0
}

func (repo *planRepository) GetPlan(_ context.Context, id string) (plan.Plan, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.plans[id]; ok {
		return clonePlan(p), nil
	}
	return plan.Plan{}, plan.ErrNotFound
}

func (repo *planRepository) UpdatePlan(_ context.Context, p plan.Plan) (plan.Plan, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.plans[p.ID]; !ok {
		return plan.Plan{}, plan.ErrNotFound
	}
	if _, ok := repo.db.users[p.TeacherID]; !ok {
		return plan.Plan{}, errUnknownTeacher
	}
	repo.db.plans[p.ID] = clonePlan(p)
	return clonePlan(p), nil
}

func (repo *planRepository) DeletePlansByID(_ context.Context, ids ...string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.plans[id]; ok {
			delete(repo.db.plans, id)
			n++
		}
	}
	return n, nil
}
