package reportsvc

import (
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/report"
)

const timeLayout = "2006-01-02 15:04 MST"

type renderer struct {
	appName string
}

var _ report.Renderer = (*renderer)(nil)

// NewRenderer returns a renderer writing PDF documents with fpdf and Excel workbooks with excelize.
func NewRenderer(conf *core.Config) report.Renderer {
	return &renderer{appName: conf.AppName}
}

func (r *renderer) Render(w io.Writer, doc report.Document, format report.Format) error {
	switch format {
	case report.FormatPDF:
		return r.renderPDF(w, doc)
	case report.FormatXLSX:
		return r.renderXLSX(w, doc)
	default:
		return errors.Wrap(report.ErrInvalidFormat, string(format))
	}
}
