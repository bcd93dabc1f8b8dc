package reportsvc

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"github.com/trezcool/preschool/core/report"
)

const (
	pdfFont       = "Helvetica"
	pdfLineHeight = 6.0
	pdfMargin     = 12.0
	// tables with more columns are laid out on landscape pages
	pdfPortraitMaxCols = 6
)

func (r *renderer) renderPDF(w io.Writer, doc report.Document) error {
	orientation := "P"
	for _, tbl := range doc.Tables {
		if len(tbl.Columns) > pdfPortraitMaxCols {
			orientation = "L"
			break
		}
	}

	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetAuthor(r.appName, true)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin+4)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("") // cp1252

	footer := fmt.Sprintf("%s - generated %s", r.appName, doc.GeneratedAt.UTC().Format(timeLayout))
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(0, 5, tr(footer), "", 0, "L", false, 0, "")
		pdf.SetX(pdfMargin)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	// heading
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont(pdfFont, "B", 16)
	pdf.CellFormat(0, 9, tr(doc.Title), "", 1, "L", false, 0, "")
	if doc.Subtitle != "" {
		pdf.SetFont(pdfFont, "", 11)
		pdf.CellFormat(0, 7, tr(doc.Subtitle), "", 1, "L", false, 0, "")
	}
	if len(doc.Meta) > 0 {
		pdf.Ln(1)
		for _, m := range doc.Meta {
			pdf.SetFont(pdfFont, "B", 9)
			pdf.CellFormat(35, 5, tr(m.Label+":"), "", 0, "L", false, 0, "")
			pdf.SetFont(pdfFont, "", 9)
			pdf.CellFormat(0, 5, tr(m.Value), "", 1, "L", false, 0, "")
		}
	}

	for _, tbl := range doc.Tables {
		pdf.Ln(4)
		writePDFTable(pdf, tbl, tr)
	}

	if err := pdf.Error(); err != nil {
		return errors.Wrap(err, "building pdf")
	}
	return errors.Wrap(pdf.Output(w), "writing pdf")
}

func writePDFTable(pdf *fpdf.Fpdf, tbl report.Table, tr func(string) string) {
	if tbl.Title != "" {
		pdf.SetFont(pdfFont, "B", 12)
		pdf.CellFormat(0, 8, tr(tbl.Title), "", 1, "L", false, 0, "")
	}
	if len(tbl.Columns) == 0 {
		return
	}

	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colW := (pageW - left - right) / float64(len(tbl.Columns))

	header := func() {
		pdf.SetFont(pdfFont, "B", 9)
		pdf.SetFillColor(225, 232, 240)
		for _, col := range tbl.Columns {
			pdf.CellFormat(colW, pdfLineHeight+1, fit(pdf, tr(col), colW), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
	}
	row := func(cells []string, style string, fill bool) {
		_, pageH := pdf.GetPageSize()
		_, _, _, bottom := pdf.GetMargins()
		if pdf.GetY()+pdfLineHeight > pageH-bottom {
			pdf.AddPage()
			header()
		}
		pdf.SetFont(pdfFont, style, 9)
		pdf.SetFillColor(245, 245, 245)
		for i := range tbl.Columns {
			var cell string
			if i < len(cells) {
				cell = cells[i]
			}
			pdf.CellFormat(colW, pdfLineHeight, fit(pdf, tr(cell), colW), "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	header()
	if len(tbl.Rows) == 0 {
		pdf.SetFont(pdfFont, "I", 9)
		pdf.CellFormat(colW*float64(len(tbl.Columns)), pdfLineHeight, "No records", "1", 1, "C", false, 0, "")
	}
	for i, cells := range tbl.Rows {
		row(cells, "", i%2 == 1)
	}
	for _, cells := range tbl.Summary {
		row(cells, "B", false)
	}
}

// fit truncates `s` with an ellipsis so that it fits in a cell of width `w`.
func fit(pdf *fpdf.Fpdf, s string, w float64) string {
	w -= 2 * pdf.GetCellMargin()
	if pdf.GetStringWidth(s) <= w {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > w {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
