package student

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("student not found")

	errNotATeacher    = errors.New("selected user is not an active teacher")
	errClassMismatch  = "teacher %q does not teach the %s class"
	errNoStudents     = errors.New("no students selected")
	errNotImage       = errors.New("only JPEG, PNG and WebP images are allowed")
	allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, st Student) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Student.Name or Student.GuardianName.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		UpdateStudent(ctx context.Context, st Student) (Student, error)
		// SetTeacher assigns (or unassigns, when teacherID is null) the students with the given IDs.
		SetTeacher(ctx context.Context, teacherID null.String, updatedAt time.Time, ids ...string) (int, error)
		DeleteStudentsByID(ctx context.Context, ids ...string) (int, error)
	}

	Service interface {
		Create(ctx context.Context, ns NewStudent) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		Update(ctx context.Context, st Student, us UpdateStudent) (Student, error)
		Delete(ctx context.Context, ids ...string) error
		// AssignTeacher assigns the students with the given IDs to `teacher`.
		// Every student must belong to one of the teacher's classes.
		AssignTeacher(ctx context.Context, teacher user.User, ids ...string) (int, error)
		// UnassignTeacher removes the students with the given IDs from `teacher`.
		UnassignTeacher(ctx context.Context, teacher user.User, ids ...string) (int, error)
		SetPhoto(ctx context.Context, st Student, name, contentType string, r io.Reader) (Student, error)
		ClearPhoto(ctx context.Context, st Student) (Student, error)
	}

	service struct {
		repo    Repository
		userSvc user.Service
		images  core.ImageHost
		logger  core.Logger
		clock   clockwork.Clock
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, userSvc user.Service, images core.ImageHost, logger core.Logger, clock clockwork.Clock) Service {
	return &service{
		repo:    repo,
		userSvc: userSvc,
		images:  images,
		logger:  logger,
		clock:   clock,
	}
}

func (svc *service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	if ns.TeacherID != "" {
		if err := svc.checkTeacher(ctx, ns.TeacherID, ns.Class); err != nil {
			return Student{}, err
		}
	}
	now := svc.clock.Now().UTC()
	st := Student{
		Name:            ns.Name,
		Age:             ns.Age,
		Class:           ns.Class,
		LearningAbility: ns.LearningAbility,
		WritingSpeed:    ns.WritingSpeed,
		TeacherID:       null.NewString(ns.TeacherID, ns.TeacherID != ""),
		GuardianName:    ns.GuardianName,
		GuardianPhone:   ns.GuardianPhone,
		SupportNotes:    ns.SupportNotes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	st, err := svc.repo.CreateStudent(ctx, st)
	if err != nil {
		return Student{}, errors.Wrap(err, "creating student")
	}
	return st, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

// Update merges `us` into `st`, validates the result and saves it.
// A class change keeps the assigned teacher only if they teach the new class.
func (svc *service) Update(ctx context.Context, st Student, us UpdateStudent) (Student, error) {
	ns := us.Merge(st)
	if ns.TeacherID != "" && (us.ChangesTeacher(st) || ns.Class != st.Class) {
		if err := svc.checkTeacher(ctx, ns.TeacherID, ns.Class); err != nil {
			return Student{}, err
		}
	}
	st.Name = ns.Name
	st.Age = ns.Age
	st.Class = ns.Class
	st.LearningAbility = ns.LearningAbility
	st.WritingSpeed = ns.WritingSpeed
	st.TeacherID = null.NewString(ns.TeacherID, ns.TeacherID != "")
	st.GuardianName = ns.GuardianName
	st.GuardianPhone = ns.GuardianPhone
	st.SupportNotes = ns.SupportNotes
	st.UpdatedAt = svc.clock.Now().UTC()
	return svc.repo.UpdateStudent(ctx, st)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := svc.repo.DeleteStudentsByID(ctx, ids...)
	return err
}

func (svc *service) AssignTeacher(ctx context.Context, teacher user.User, ids ...string) (int, error) {
	if !teacher.IsTeacher() || !teacher.Active() {
		return 0, core.NewFieldError("teacher_id", errNotATeacher.Error())
	}
	students, err := svc.selected(ctx, ids)
	if err != nil {
		return 0, err
	}
	selectedIDs := make([]string, 0, len(students))
	for _, st := range students {
		if !teacher.TeachesClass(st.Class) {
			return 0, core.NewFieldError("student_ids", fmt.Sprintf(errClassMismatch, teacher.Name, st.Class))
		}
		selectedIDs = append(selectedIDs, st.ID)
	}
	return svc.repo.SetTeacher(ctx, null.StringFrom(teacher.ID), svc.clock.Now().UTC(), selectedIDs...)
}

func (svc *service) UnassignTeacher(ctx context.Context, teacher user.User, ids ...string) (int, error) {
	students, err := svc.selected(ctx, ids)
	if err != nil {
		return 0, err
	}
	owned := make([]string, 0, len(students))
	for _, st := range students {
		if st.IsAssignedTo(teacher.ID) {
			owned = append(owned, st.ID)
		}
	}
	if len(owned) == 0 {
		return 0, nil
	}
	return svc.repo.SetTeacher(ctx, null.String{}, svc.clock.Now().UTC(), owned...)
}

func (svc *service) SetPhoto(ctx context.Context, st Student, name, contentType string, r io.Reader) (Student, error) {
	if !core.StringInSlice(contentType, allowedImageTypes) {
		return Student{}, core.NewFieldError("photo", errNotImage.Error())
	}
	url, err := svc.images.Upload(ctx, name, contentType, r)
	if err != nil {
		return Student{}, errors.Wrap(err, "uploading photo")
	}
	prev := st.PhotoURL
	st.PhotoURL = null.StringFrom(url)
	st.UpdatedAt = svc.clock.Now().UTC()
	st, err = svc.repo.UpdateStudent(ctx, st)
	if err != nil {
		return Student{}, err
	}
	svc.deletePhoto(ctx, prev)
	return st, nil
}

func (svc *service) ClearPhoto(ctx context.Context, st Student) (Student, error) {
	if !st.PhotoURL.Valid {
		return st, nil
	}
	prev := st.PhotoURL
	st.PhotoURL = null.String{}
	st.UpdatedAt = svc.clock.Now().UTC()
	st, err := svc.repo.UpdateStudent(ctx, st)
	if err != nil {
		return Student{}, err
	}
	svc.deletePhoto(ctx, prev)
	return st, nil
}

// deletePhoto removes a replaced photo. Failures are logged only.
func (svc *service) deletePhoto(ctx context.Context, url null.String) {
	if !url.Valid || url.String == "" {
		return
	}
	if err := svc.images.Delete(ctx, url.String); err != nil {
		svc.logger.Warn(fmt.Sprintf("deleting photo %s: %v", url.String, err), err)
	}
}

// selected loads every student in `ids`, failing if any of them does not exist.
func (svc *service) selected(ctx context.Context, ids []string) ([]Student, error) {
	ids = core.CleanStrings(ids, true /* lower */)
	if len(ids) == 0 {
		return nil, core.NewFieldError("student_ids", errNoStudents.Error())
	}
	students, err := svc.repo.QueryStudents(ctx, &QueryFilter{IDs: ids}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	found := make(map[string]struct{}, len(students))
	for _, st := range students {
		found[st.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, core.NewFieldError("student_ids", fmt.Sprintf("student %q not found", id))
		}
	}
	return students, nil
}

// checkTeacher ensures the user with `teacherID` is an active teacher of `class`.
func (svc *service) checkTeacher(ctx context.Context, teacherID, class string) error {
	teacher, err := svc.userSvc.GetByID(ctx, teacherID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewFieldError("teacher_id", errNotATeacher.Error())
		}
		return errors.Wrap(err, "finding teacher")
	}
	if !teacher.IsTeacher() || !teacher.Active() {
		return core.NewFieldError("teacher_id", errNotATeacher.Error())
	}
	if !teacher.TeachesClass(class) {
		return core.NewFieldError("teacher_id", fmt.Sprintf(errClassMismatch, teacher.Name, class))
	}
	return nil
}
