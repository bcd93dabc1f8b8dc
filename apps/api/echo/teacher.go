package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/preschool/core/student"
	"github.com/trezcool/preschool/core/user"
)

type teacherApi struct {
	svc        user.Service
	studentSvc student.Service
	validate   *validator.Validate
}

func registerTeacherAPI(g *echo.Group, s *Server, authed []echo.MiddlewareFunc) {
	api := teacherApi{
		svc:        s.deps.UserSvc,
		studentSvc: s.deps.StudentSvc,
		validate:   s.deps.Validate,
	}

	tg := g.Group("/teachers", authed...)
	tg.POST("", api.create, adminMiddleware(), s.cache.invalidates(resTeachers))
	tg.GET("", api.query, adminMiddleware(), s.cache.lists(resTeachers))

	// detail endpoints
	dg := tg.Group("/:id", teacherObjectMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware(), s.cache.invalidates(resTeachers))
	dg.DELETE("", api.destroy, adminMiddleware(), s.cache.invalidates(allResources...))
	dg.GET("/students", api.queryStudents)
	dg.PUT("/students", api.assignStudents, adminMiddleware(), s.cache.invalidates(resStudents, resProgress))
	dg.DELETE("/students", api.unassignStudents, adminMiddleware(), s.cache.invalidates(resStudents, resProgress))
}

// Handlers

// create creates a teacher account. The welcome email is sent by the service.
func (api *teacherApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	data.Roles = []string{user.RoleTeacher}
	usr, err := createUser(ctx, api.svc, api.validate, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *teacherApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	filter.Roles = []string{user.RoleTeacher}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	teachers, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	if teachers == nil {
		teachers = []user.User{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *teacherApi) retrieve(ctx echo.Context) error {
	teacher, ok := ctx.Get(contextObjKey).(user.User)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, teacher)
}

// update changes a teacher's account. Roles are managed through /users only.
func (api *teacherApi) update(ctx echo.Context) error {
	teacher, ok := ctx.Get(contextObjKey).(user.User)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	data.Roles = nil
	teacher, err := updateUser(ctx, api.svc, api.validate, teacher, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, teacher)
}

func (api *teacherApi) destroy(ctx echo.Context) error {
	teacher, ok := ctx.Get(contextObjKey).(user.User)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	if err := deleteUsers(ctx, api.svc, teacher.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *teacherApi) queryStudents(ctx echo.Context) error {
	teacher, ok := ctx.Get(contextObjKey).(user.User)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.studentSvc.Query(ctx.Request().Context(), &student.QueryFilter{TeacherID: teacher.ID}, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

// assignStudents assigns students to the teacher and returns all of the teacher's students.
func (api *teacherApi) assignStudents(ctx echo.Context) error {
	teacher, ok := ctx.Get(contextObjKey).(user.User)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	var data AssignStudentsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignStudentsRequest")
	}
	if _, err := api.studentSvc.AssignTeacher(ctx.Request().Context(), teacher, data.StudentIDs...); err != nil {
		return errors.Wrap(err, "assigning students")
	}
	return api.queryStudents(ctx)
}

func (api *teacherApi) unassignStudents(ctx echo.Context) error {
	teacher, ok := ctx.Get(contextObjKey).(user.User)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if len(query.IDs) > 0 {
		if _, err := api.studentSvc.UnassignTeacher(ctx.Request().Context(), teacher, query.IDs...); err != nil {
			return errors.Wrap(err, "unassigning students")
		}
	}
	return ctx.NoContent(http.StatusNoContent)
}

// teacherObjectMiddleware loads the teacher with the ID param.
// Only admins and the teacher themselves may access it.
func teacherObjectMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !ctxUsr.IsAdmin() && ctx.Param("id") != ctxUsr.ID {
				return errHttpNotFound
			}
			teacher, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding teacher by ID")
			}
			if !teacher.IsTeacher() {
				return errHttpNotFound
			}
			ctx.Set(contextObjKey, teacher)
			return next(ctx)
		}
	}
}

type AssignStudentsRequest struct {
	StudentIDs []string `json:"student_ids"`
}
