package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/report"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

type (
	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}

	// ReportQuery holds the query params shared by every report.
	ReportQuery struct {
		Format string    `query:"format"`
		From   core.Date `query:"from"`
		To     core.Date `query:"to"`
	}
)

func (rq *ReportQuery) Bind(ctx echo.Context) (report.Format, report.Period, error) {
	if err := ctx.Bind(rq); err != nil {
		return "", report.Period{}, errors.Wrap(err, "binding to ReportQuery")
	}
	format, err := report.ParseFormat(rq.Format)
	if err != nil {
		return "", report.Period{}, err
	}
	if !rq.From.IsZero() && !rq.To.IsZero() && rq.To.Before(rq.From) {
		return "", report.Period{}, core.NewFieldError("to", "end date cannot be before the start date")
	}
	return format, report.Period{From: rq.From, To: rq.To}, nil
}
