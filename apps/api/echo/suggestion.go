package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/student"
	"github.com/trezcool/preschool/core/suggestion"
)

type suggestionApi struct {
	svc        suggestion.Service
	studentSvc student.Service
	validate   *validator.Validate
}

func registerSuggestionAPI(g *echo.Group, s *Server, authed []echo.MiddlewareFunc) {
	api := suggestionApi{
		svc:        s.deps.SuggestionSvc,
		studentSvc: s.deps.StudentSvc,
		validate:   s.deps.Validate,
	}
	g.POST("/ai-suggestions", api.suggest, authed...)
}

// suggest asks the assistant for activities, goals or remarks.
// Remarks are written for a student the context user may access.
func (api *suggestionApi) suggest(ctx echo.Context) error {
	var data suggestion.Request
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Request")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	reqCtx := ctx.Request().Context()
	var st *student.Student
	if data.StudentID != "" {
		found, err := api.studentSvc.GetByID(reqCtx, data.StudentID)
		if err != nil {
			if errors.Cause(err) == student.ErrNotFound {
				return core.NewFieldError("student_id", "student not found")
			}
			return errors.Wrap(err, "finding student by ID")
		}
		if !canAccessStudent(ctxUsr, found) {
			return errHttpForbidden
		}
		st = &found
	}

	sug, err := api.svc.Suggest(reqCtx, data, st)
	if err != nil {
		return errors.Wrap(err, "suggesting")
	}
	return ctx.JSON(http.StatusOK, sug)
}
