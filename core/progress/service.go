package progress

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/user"
)

var (
	// errors
	ErrNotFound    = errors.New("progress entry not found")
	ErrEntryExists = errors.New("a progress entry already exists for this student on this date")

	errFutureDate = errors.New("date cannot be in the future")
)

type (
	Repository interface {
		// CreateEntry returns ErrEntryExists if the student already has an entry on that date.
		CreateEntry(ctx context.Context, e Entry) (Entry, error)
		// QueryEntries applies AND operation on available QueryFilter fields.
		// QueryFilter.Classes & QueryFilter.TeacherID match the current class & teacher of the student.
		QueryEntries(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Entry, error)
		GetEntry(ctx context.Context, id string) (Entry, error)
		// UpdateEntry returns ErrEntryExists if the new date collides with another entry of the student.
		UpdateEntry(ctx context.Context, e Entry) (Entry, error)
		DeleteEntriesByID(ctx context.Context, ids ...string) (int, error)
	}

	Service interface {
		// Create records `ne` on behalf of `recorder`.
		Create(ctx context.Context, ne NewEntry, recorder user.User) (Entry, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Entry, error)
		GetByID(ctx context.Context, id string) (Entry, error)
		Update(ctx context.Context, e Entry, ue UpdateEntry) (Entry, error)
		Delete(ctx context.Context, ids ...string) error
		// Latest returns the `n` most recent entries of the student.
		Latest(ctx context.Context, studentID string, n int) ([]Entry, error)
	}

	service struct {
		repo  Repository
		clock clockwork.Clock
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, clock clockwork.Clock) Service {
	return &service{repo: repo, clock: clock}
}

func (svc *service) Create(ctx context.Context, ne NewEntry, recorder user.User) (Entry, error) {
	if err := svc.checkDate(ne.Date); err != nil {
		return Entry{}, err
	}
	now := svc.clock.Now().UTC()
	e := Entry{
		StudentID:  ne.StudentID,
		Date:       ne.Date,
		RecordedBy: null.NewString(recorder.ID, recorder.ID != ""),
		Ratings:    ne.Ratings,
		Remarks:    ne.Remarks,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	e, err := svc.repo.CreateEntry(ctx, e)
	if err != nil {
		return Entry{}, dateConflict(err, "creating progress entry")
	}
	return e, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Entry, error) {
	return svc.repo.QueryEntries(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Entry, error) {
	return svc.repo.GetEntry(ctx, id)
}

func (svc *service) Update(ctx context.Context, e Entry, ue UpdateEntry) (Entry, error) {
	ne := ue.Merge(e)
	if err := svc.checkDate(ne.Date); err != nil {
		return Entry{}, err
	}
	e.Date = ne.Date
	e.Ratings = ne.Ratings
	e.Remarks = core.CleanString(ne.Remarks)
	e.UpdatedAt = svc.clock.Now().UTC()
	e, err := svc.repo.UpdateEntry(ctx, e)
	if err != nil {
		return Entry{}, dateConflict(err, "updating progress entry")
	}
	return e, nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := svc.repo.DeleteEntriesByID(ctx, ids...)
	return err
}

func (svc *service) Latest(ctx context.Context, studentID string, n int) ([]Entry, error) {
	entries, err := svc.repo.QueryEntries(
		ctx,
		&QueryFilter{StudentIDs: []string{studentID}},
		[]core.DBOrdering{{Field: "date"}},
	)
	if err != nil {
		return nil, err
	}
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (svc *service) checkDate(date core.Date) error {
	if date.After(core.DateOf(svc.clock.Now())) {
		return core.NewFieldError("date", errFutureDate.Error())
	}
	return nil
}

func dateConflict(err error, msg string) error {
	if errors.Cause(err) == ErrEntryExists {
		return core.NewValidationError(err, core.FieldError{Field: "date", Error: ErrEntryExists.Error()})
	}
	return errors.Wrap(err, msg)
}
