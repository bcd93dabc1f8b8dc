package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/plan"
)

type planApi struct {
	svc      plan.Service
	validate *validator.Validate
}

func registerPlanAPI(g *echo.Group, s *Server, authed []echo.MiddlewareFunc) {
	api := planApi{
		svc:      s.deps.PlanSvc,
		validate: s.deps.Validate,
	}
	invalidates := s.cache.invalidates(resPlans)

	pg := g.Group("/plans", authed...)
	pg.GET("", api.query, s.cache.lists(resPlans))
	pg.POST("", api.create, invalidates)

	dg := pg.Group("/:id", planObjectMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, invalidates)
	dg.DELETE("", api.destroy, invalidates)
}

// Handlers

// query lists teaching plans. Teachers only see their own plans.
func (api *planApi) query(ctx echo.Context) error {
	filter := new(plan.QueryFilter)
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

	plans, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying plans")
	}
	if plans == nil {
		plans = []plan.Plan{}
	}
	return ctx.JSON(http.StatusOK, plans)
}

// create creates a plan. Only admins may create plans on behalf of a teacher.
func (api *planApi) create(ctx echo.Context) error {
	var data plan.NewPlan
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPlan")
	}
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() {
		data.TeacherID = ""
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if ctxUsr.IsAdmin() && !ctxUsr.IsTeacher() && data.TeacherID == "" {
		return core.NewFieldError("teacher_id", "this field is required")
	}

	p, err := api.svc.Create(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "creating plan")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *planApi) retrieve(ctx echo.Context) error {
	p, ok := ctx.Get(contextObjKey).(plan.Plan)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, p)
}

// update modifies a plan. Only admins may hand a plan over to another teacher.
func (api *planApi) update(ctx echo.Context) error {
	p, ok := ctx.Get(contextObjKey).(plan.Plan)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	var data plan.UpdatePlan
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePlan")
	}
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() && data.TeacherID != nil && core.CleanString(*data.TeacherID, true) != p.TeacherID {
		return errHttpForbidden
	}
	if err = data.Validate(p, api.validate); err != nil {
		return err
	}

	p, err = api.svc.Update(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "updating plan")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *planApi) destroy(ctx echo.Context) error {
	p, ok := ctx.Get(contextObjKey).(plan.Plan)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), p.ID); err != nil {
		return errors.Wrap(err, "deleting plan")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// planObjectMiddleware loads the plan with the ID param if the context user owns it or is an admin.
func planObjectMiddleware(svc plan.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			p, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == plan.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding plan by ID")
			}
			if !ctxUsr.IsAdmin() && p.TeacherID != ctxUsr.ID {
				return errHttpNotFound
			}
			ctx.Set(contextObjKey, p)
			return next(ctx)
		}
	}
}
