package report

import (
	"context"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/plan"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/student"
	"github.com/trezcool/preschool/core/user"
)

// Service fetches the records of a report and assembles its Document.
// Callers scope the filters to what the requesting user may see.
type Service interface {
	Roster(ctx context.Context, filter *student.QueryFilter) (Document, error)
	StudentProgress(ctx context.Context, st student.Student, period Period) (Document, error)
	ProgressSheet(ctx context.Context, filter *student.QueryFilter, period Period) (Document, error)
	PlanBook(ctx context.Context, filter *plan.QueryFilter, period Period) (Document, error)
}

type service struct {
	userSvc     user.Service
	studentSvc  student.Service
	progressSvc progress.Service
	planSvc     plan.Service
	clock       clockwork.Clock
}

var _ Service = (*service)(nil)

func NewService(
	userSvc user.Service,
	studentSvc student.Service,
	progressSvc progress.Service,
	planSvc plan.Service,
	clock clockwork.Clock,
) Service {
	return &service{
		userSvc:     userSvc,
		studentSvc:  studentSvc,
		progressSvc: progressSvc,
		planSvc:     planSvc,
		clock:       clock,
	}
}

func (svc *service) Roster(ctx context.Context, filter *student.QueryFilter) (Document, error) {
	students, err := svc.studentSvc.Query(ctx, filter, nil)
	if err != nil {
		return Document{}, errors.Wrap(err, "querying students")
	}
	names, err := svc.teacherNames(ctx)
	if err != nil {
		return Document{}, err
	}
	return StudentRoster(students, names, svc.studentMeta(filter, names), svc.clock.Now().UTC()), nil
}

func (svc *service) StudentProgress(ctx context.Context, st student.Student, period Period) (Document, error) {
	entries, err := svc.progressSvc.Query(
		ctx,
		&progress.QueryFilter{StudentIDs: []string{st.ID}, DateFrom: period.From, DateTo: period.To},
		[]core.DBOrdering{{Field: "date", Ascending: true}},
	)
	if err != nil {
		return Document{}, errors.Wrap(err, "querying progress entries")
	}
	var teacher string
	if st.TeacherID.Valid {
		if usr, err := svc.userSvc.GetByID(ctx, st.TeacherID.String); err == nil {
			teacher = usr.Name
		} else if errors.Cause(err) != user.ErrNotFound {
			return Document{}, errors.Wrap(err, "finding teacher")
		}
	}
	return StudentProgress(st, teacher, entries, period, svc.clock.Now().UTC()), nil
}

func (svc *service) ProgressSheet(ctx context.Context, filter *student.QueryFilter, period Period) (Document, error) {
	students, err := svc.studentSvc.Query(ctx, filter, nil)
	if err != nil {
		return Document{}, errors.Wrap(err, "querying students")
	}
	var entries []progress.Entry
	if len(students) > 0 {
		ids := make([]string, 0, len(students))
		for _, st := range students {
			ids = append(ids, st.ID)
		}
		entries, err = svc.progressSvc.Query(
			ctx,
			&progress.QueryFilter{StudentIDs: ids, DateFrom: period.From, DateTo: period.To},
			[]core.DBOrdering{{Field: "date", Ascending: true}},
		)
		if err != nil {
			return Document{}, errors.Wrap(err, "querying progress entries")
		}
	}
	names, err := svc.teacherNames(ctx)
	if err != nil {
		return Document{}, err
	}
	return ProgressSheet(students, entries, period, svc.studentMeta(filter, names), svc.clock.Now().UTC()), nil
}

func (svc *service) PlanBook(ctx context.Context, filter *plan.QueryFilter, period Period) (Document, error) {
	if filter == nil {
		filter = &plan.QueryFilter{}
	}
	filter.DateFrom, filter.DateTo = period.From, period.To
	plans, err := svc.planSvc.Query(ctx, filter, []core.DBOrdering{{Field: "start_date", Ascending: true}})
	if err != nil {
		return Document{}, errors.Wrap(err, "querying plans")
	}
	names, err := svc.teacherNames(ctx)
	if err != nil {
		return Document{}, err
	}

	meta := []Meta{{Label: "Period", Value: period.String()}}
	if len(filter.Classes) > 0 {
		meta = append(meta, Meta{Label: "Class", Value: strings.Join(filter.Classes, ", ")})
	}
	if len(filter.Types) > 0 {
		meta = append(meta, Meta{Label: "Type", Value: strings.Join(filter.Types, ", ")})
	}
	if filter.TeacherID != "" {
		meta = append(meta, Meta{Label: "Teacher", Value: names.get(filter.TeacherID)})
	}
	return PlanBook(plans, names, meta, svc.clock.Now().UTC()), nil
}

// teacherNames maps every teacher and admin ID to their name.
func (svc *service) teacherNames(ctx context.Context) (Names, error) {
	users, err := svc.userSvc.Query(ctx, &user.QueryFilter{}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	names := make(Names, len(users))
	for _, usr := range users {
		names[usr.ID] = usr.Name
	}
	return names, nil
}

func (svc *service) studentMeta(filter *student.QueryFilter, names Names) []Meta {
	var meta []Meta
	if filter == nil {
		return meta
	}
	if len(filter.Classes) > 0 {
		meta = append(meta, Meta{Label: "Class", Value: strings.Join(filter.Classes, ", ")})
	}
	if filter.TeacherID != "" {
		meta = append(meta, Meta{Label: "Teacher", Value: names.get(filter.TeacherID)})
	}
	if filter.Unassigned {
		meta = append(meta, Meta{Label: "Teacher", Value: "Unassigned"})
	}
	return meta
}
