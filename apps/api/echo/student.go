package echoapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/student"
	"github.com/trezcool/preschool/core/user"
)

const (
	photoField = "photo"
	sniffLen   = 512
)

type studentApi struct {
	svc          student.Service
	validate     *validator.Validate
	maxPhotoSize int64
}

func registerStudentAPI(g *echo.Group, s *Server, authed []echo.MiddlewareFunc) {
	api := studentApi{
		svc:          s.deps.StudentSvc,
		validate:     s.deps.Validate,
		maxPhotoSize: s.deps.Conf.ImageHost.MaxSize,
	}
	invalidates := s.cache.invalidates(resStudents, resProgress)

	sg := g.Group("/students", authed...)
	sg.GET("", api.query, s.cache.lists(resStudents))
	sg.POST("", api.create, adminMiddleware(), invalidates)
	sg.DELETE("", api.destroyMultiple, adminMiddleware(), invalidates)

	// detail endpoints
	dg := sg.Group("/:id", studentObjectMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, invalidates)
	dg.DELETE("", api.destroy, adminMiddleware(), invalidates)
	dg.POST("/photo", api.uploadPhoto, s.cache.invalidates(resStudents))
	dg.DELETE("/photo", api.deletePhoto, s.cache.invalidates(resStudents))
}

// Handlers

// query lists students. Teachers only see their own students.
func (api *studentApi) query(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	scopeStudentFilter(filter, ctxUsr)
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	st, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	st, ok := ctx.Get(contextObjKey).(student.Student)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, st)
}

// update modifies a student. Only admins may change the assigned teacher.
func (api *studentApi) update(ctx echo.Context) error {
	st, ok := ctx.Get(contextObjKey).(student.Student)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() && data.ChangesTeacher(st) {
		return errHttpForbidden
	}
	if err = data.Validate(st, api.validate); err != nil {
		return err
	}

	st, err = api.svc.Update(ctx.Request().Context(), st, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	st, ok := ctx.Get(contextObjKey).(student.Student)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), st.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if err := api.svc.Delete(ctx.Request().Context(), core.CleanStrings(query.IDs, true)...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// uploadPhoto stores the multipart `photo` file as the student's photo.
// The content type is sniffed from the file itself.
func (api *studentApi) uploadPhoto(ctx echo.Context) error {
	st, ok := ctx.Get(contextObjKey).(student.Student)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	fh, err := ctx.FormFile(photoField)
	if err != nil {
		return core.NewFieldError(photoField, "a photo file is required")
	}
	if api.maxPhotoSize > 0 && fh.Size > api.maxPhotoSize {
		return core.NewFieldError(photoField, fmt.Sprintf("image cannot exceed %d KB", api.maxPhotoSize>>10))
	}

	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening photo")
	}
	//goland:noinspection GoUnhandledErrorResult
	defer file.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return errors.Wrap(err, "reading photo")
	}
	head = head[:n]
	contentType := http.DetectContentType(head)

	st, err = api.svc.SetPhoto(ctx.Request().Context(), st, fh.Filename, contentType, io.MultiReader(bytes.NewReader(head), file))
	if err != nil {
		return errors.Wrap(err, "setting photo")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) deletePhoto(ctx echo.Context) error {
	st, ok := ctx.Get(contextObjKey).(student.Student)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	st, err := api.svc.ClearPhoto(ctx.Request().Context(), st)
	if err != nil {
		return errors.Wrap(err, "clearing photo")
	}
	return ctx.JSON(http.StatusOK, st)
}

// scopeStudentFilter restricts the filter to the students of `usr` unless they are an admin.
func scopeStudentFilter(filter *student.QueryFilter, usr user.User) {
	if usr.IsAdmin() {
		return
	}
	filter.TeacherID = usr.ID
	filter.Unassigned = false
}

// canAccessStudent reports whether `usr` may see and edit `st`.
func canAccessStudent(usr user.User, st student.Student) bool {
	return usr.IsAdmin() || st.IsAssignedTo(usr.ID)
}

// studentObjectMiddleware loads the student with the ID param if the context user may access it.
func studentObjectMiddleware(svc student.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			st, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == student.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding student by ID")
			}
			if !canAccessStudent(ctxUsr, st) {
				return errHttpNotFound
			}
			ctx.Set(contextObjKey, st)
			return next(ctx)
		}
	}
}
