package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/student"
)

type progressApi struct {
	svc        progress.Service
	studentSvc student.Service
	validate   *validator.Validate
}

func registerProgressAPI(g *echo.Group, s *Server, authed []echo.MiddlewareFunc) {
	api := progressApi{
		svc:        s.deps.ProgressSvc,
		studentSvc: s.deps.StudentSvc,
		validate:   s.deps.Validate,
	}
	invalidates := s.cache.invalidates(resProgress)

	pg := g.Group("/progress", authed...)
	pg.GET("", api.query, s.cache.lists(resProgress))
	pg.POST("", api.create, invalidates)
	pg.GET("/skills", api.querySkills)

	dg := pg.Group("/:id", entryObjectMiddleware(api.svc, api.studentSvc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, invalidates)
	dg.DELETE("", api.destroy, invalidates)
}

// Handlers

// query lists progress entries. Teachers only see the entries of their students.
func (api *progressApi) query(ctx echo.Context) error {
	filter := new(progress.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() {
		filter.TeacherID = ctxUsr.ID
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	entries, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying progress entries")
	}
	if entries == nil {
		entries = []progress.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *progressApi) querySkills(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, progress.Skills)
}

// create records a progress entry for a student the context user may access.
func (api *progressApi) create(ctx echo.Context) error {
	var data progress.NewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEntry")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	reqCtx := ctx.Request().Context()
	st, err := api.studentSvc.GetByID(reqCtx, data.StudentID)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return core.NewFieldError("student_id", "student not found")
		}
		return errors.Wrap(err, "finding student by ID")
	}
	if !canAccessStudent(ctxUsr, st) {
		return errHttpForbidden
	}

	e, err := api.svc.Create(reqCtx, data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "creating progress entry")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *progressApi) retrieve(ctx echo.Context) error {
	e, ok := ctx.Get(contextObjKey).(progress.Entry)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *progressApi) update(ctx echo.Context) error {
	e, ok := ctx.Get(contextObjKey).(progress.Entry)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	var data progress.UpdateEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEntry")
	}
	merged := data.Merge(e)
	if err := merged.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.Update(ctx.Request().Context(), e, data)
	if err != nil {
		return errors.Wrap(err, "updating progress entry")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *progressApi) destroy(ctx echo.Context) error {
	e, ok := ctx.Get(contextObjKey).(progress.Entry)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), e.ID); err != nil {
		return errors.Wrap(err, "deleting progress entry")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// entryObjectMiddleware loads the entry with the ID param if the context user may access its student.
func entryObjectMiddleware(svc progress.Service, studentSvc student.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			reqCtx := ctx.Request().Context()
			e, err := svc.GetByID(reqCtx, ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == progress.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding progress entry by ID")
			}
			if !ctxUsr.IsAdmin() {
				st, err := studentSvc.GetByID(reqCtx, e.StudentID)
				if err != nil {
					if errors.Cause(err) == student.ErrNotFound {
						return errHttpNotFound
					}
					return errors.Wrap(err, "finding student by ID")
				}
				if !canAccessStudent(ctxUsr, st) {
					return errHttpNotFound
				}
			}
			ctx.Set(contextObjKey, e)
			return next(ctx)
		}
	}
}
