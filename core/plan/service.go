package plan

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("teaching plan not found")

	errNotATeacher   = errors.New("selected user is not an active teacher")
	errClassMismatch = "%s does not teach the %s class"
)

type (
	Repository interface {
		CreatePlan(ctx context.Context, p Plan) (Plan, error)
		// QueryPlans applies AND operation on available QueryFilter fields.
		// QueryFilter.DateFrom & QueryFilter.DateTo select the plans overlapping the period.
		QueryPlans(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Plan, error)
		GetPlan(ctx context.Context, id string) (Plan, error)
		UpdatePlan(ctx context.Context, p Plan) (Plan, error)
		DeletePlansByID(ctx context.Context, ids ...string) (int, error)
	}

	Service interface {
		// Create saves `np` owned by `author`, or by the teacher with NewPlan.TeacherID when set.
		Create(ctx context.Context, np NewPlan, author user.User) (Plan, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Plan, error)
		GetByID(ctx context.Context, id string) (Plan, error)
		Update(ctx context.Context, p Plan, up UpdatePlan) (Plan, error)
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo    Repository
		userSvc user.Service
		clock   clockwork.Clock
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, userSvc user.Service, clock clockwork.Clock) Service {
	return &service{repo: repo, userSvc: userSvc, clock: clock}
}

func (svc *service) Create(ctx context.Context, np NewPlan, author user.User) (Plan, error) {
	owner := author
	if np.TeacherID != "" && np.TeacherID != author.ID {
		teacher, err := svc.teacher(ctx, np.TeacherID)
		if err != nil {
			return Plan{}, err
		}
		owner = teacher
	}
	if !owner.TeachesClass(np.Class) {
		return Plan{}, classMismatch(owner, np.Class)
	}
	now := svc.clock.Now().UTC()
	p := Plan{
		Type:        np.Type,
		Class:       np.Class,
		Title:       np.Title,
		StartDate:   np.StartDate,
		EndDate:     np.EndDate,
		Description: np.Description,
		Activities:  np.Activities,
		Goals:       np.Goals,
		TeacherID:   owner.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	p, err := svc.repo.CreatePlan(ctx, p)
	if err != nil {
		return Plan{}, errors.Wrap(err, "creating plan")
	}
	return p, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Plan, error) {
	return svc.repo.QueryPlans(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Plan, error) {
	return svc.repo.GetPlan(ctx, id)
}

// Update merges `up` into `p` and saves it. The owner must teach the resulting class.
func (svc *service) Update(ctx context.Context, p Plan, up UpdatePlan) (Plan, error) {
	np := up.Merge(p)
	if np.TeacherID != p.TeacherID || np.Class != p.Class {
		owner, err := svc.userSvc.GetByID(ctx, np.TeacherID)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return Plan{}, core.NewFieldError("teacher_id", errNotATeacher.Error())
			}
			return Plan{}, errors.Wrap(err, "finding plan owner")
		}
		if np.TeacherID != p.TeacherID && (!owner.IsTeacher() || !owner.Active()) {
			return Plan{}, core.NewFieldError("teacher_id", errNotATeacher.Error())
		}
		if !owner.TeachesClass(np.Class) {
			return Plan{}, classMismatch(owner, np.Class)
		}
	}
	p.Type = np.Type
	p.Class = np.Class
	p.Title = np.Title
	p.StartDate = np.StartDate
	p.EndDate = np.EndDate
	p.Description = np.Description
	p.Activities = np.Activities
	p.Goals = np.Goals
	p.TeacherID = np.TeacherID
	p.UpdatedAt = svc.clock.Now().UTC()
	return svc.repo.UpdatePlan(ctx, p)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := svc.repo.DeletePlansByID(ctx, ids...)
	return err
}

func (svc *service) teacher(ctx context.Context, id string) (user.User, error) {
	teacher, err := svc.userSvc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, core.NewFieldError("teacher_id", errNotATeacher.Error())
		}
		return user.User{}, errors.Wrap(err, "finding teacher")
	}
	if !teacher.IsTeacher() || !teacher.Active() {
		return user.User{}, core.NewFieldError("teacher_id", errNotATeacher.Error())
	}
	return teacher, nil
}

func classMismatch(owner user.User, class string) error {
	return core.NewFieldError("class", fmt.Sprintf(errClassMismatch, owner.Name, class))
}
