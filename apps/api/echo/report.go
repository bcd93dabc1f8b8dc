package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/preschool/core/plan"
	"github.com/trezcool/preschool/core/report"
	"github.com/trezcool/preschool/core/student"
)

type reportApi struct {
	svc        report.Service
	renderer   report.Renderer
	studentSvc student.Service
}

func registerReportAPI(g *echo.Group, s *Server, authed []echo.MiddlewareFunc) {
	api := reportApi{
		svc:        s.deps.ReportSvc,
		renderer:   s.deps.Renderer,
		studentSvc: s.deps.StudentSvc,
	}

	rg := g.Group("/reports", authed...)
	rg.GET("/students", api.roster)
	rg.GET("/students/:id/progress", api.studentProgress, studentObjectMiddleware(api.studentSvc))
	rg.GET("/progress", api.progressSheet)
	rg.GET("/plans", api.planBook)
}

// Handlers

func (api *reportApi) roster(ctx echo.Context) error {
	var query ReportQuery
	format, _, err := query.Bind(ctx)
	if err != nil {
		return err
	}
	filter, err := api.studentFilter(ctx)
	if err != nil {
		return err
	}

	doc, err := api.svc.Roster(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "building roster")
	}
	return api.render(ctx, doc, format)
}

func (api *reportApi) studentProgress(ctx echo.Context) error {
	st, ok := ctx.Get(contextObjKey).(student.Student)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	var query ReportQuery
	format, period, err := query.Bind(ctx)
	if err != nil {
		return err
	}

	doc, err := api.svc.StudentProgress(ctx.Request().Context(), st, period)
	if err != nil {
		return errors.Wrap(err, "building student progress")
	}
	return api.render(ctx, doc, format)
}

func (api *reportApi) progressSheet(ctx echo.Context) error {
	var query ReportQuery
	format, period, err := query.Bind(ctx)
	if err != nil {
		return err
	}
	filter, err := api.studentFilter(ctx)
	if err != nil {
		return err
	}

	doc, err := api.svc.ProgressSheet(ctx.Request().Context(), filter, period)
	if err != nil {
		return errors.Wrap(err, "building progress sheet")
	}
	return api.render(ctx, doc, format)
}

func (api *reportApi) planBook(ctx echo.Context) error {
	var query ReportQuery
	format, period, err := query.Bind(ctx)
	if err != nil {
		return err
	}
	filter := new(plan.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
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

	doc, err := api.svc.PlanBook(ctx.Request().Context(), filter, period)
	if err != nil {
		return errors.Wrap(err, "building plan book")
	}
	return api.render(ctx, doc, format)
}

// studentFilter binds the student filter of the request, scoped to the context user.
func (api *reportApi) studentFilter(ctx echo.Context) (*student.QueryFilter, error) {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	scopeStudentFilter(filter, ctxUsr)
	return filter, nil
}

// render writes `doc` as an attachment. Nothing is sent until the document is fully rendered.
func (api *reportApi) render(ctx echo.Context, doc report.Document, format report.Format) error {
	var buf bytes.Buffer
	if err := api.renderer.Render(&buf, doc, format); err != nil {
		return errors.Wrapf(err, "rendering %s", format)
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.FileName(format)))
	return ctx.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}
