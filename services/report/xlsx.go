package reportsvc

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/preschool/core/report"
)

const (
	maxSheetName  = 31
	infoSheet     = "About"
	defaultSheet  = "Sheet1"
	colWidth      = 18
	wideColWidth  = 40
	wideColMinLen = 30
	maxNumericLen = 6
)

var sheetNameReplacer = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")")

func (r *renderer) renderXLSX(w io.Writer, doc report.Document) error {
	f := excelize.NewFile()
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   doc.Title,
		Subject: doc.Subtitle,
		Creator: r.appName,
		Created: doc.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}); err != nil {
		return errors.Wrap(err, "setting document properties")
	}

	boldID, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating style")
	}
	headerID, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"E1E8F0"}, Pattern: 1},
	})
	if err != nil {
		return errors.Wrap(err, "creating style")
	}

	used := make(map[string]int)
	for i, tbl := range doc.Tables {
		name := sheetName(tbl.Title, i, used)
		if i == 0 {
			err = f.SetSheetName(defaultSheet, name)
		} else {
			_, err = f.NewSheet(name)
		}
		if err != nil {
			return errors.Wrapf(err, "creating sheet %q", name)
		}
		if err := writeSheet(f, name, tbl, headerID, boldID); err != nil {
			return errors.Wrapf(err, "writing sheet %q", name)
		}
	}

	infoName := infoSheet
	if len(doc.Tables) == 0 {
		err = f.SetSheetName(defaultSheet, infoName)
	} else {
		infoName = sheetName(infoSheet, len(doc.Tables), used)
		_, err = f.NewSheet(infoName)
	}
	if err != nil {
		return errors.Wrap(err, "creating info sheet")
	}
	if err := writeInfo(f, infoName, doc, boldID); err != nil {
		return errors.Wrap(err, "writing info sheet")
	}

	f.SetActiveSheet(0)
	return errors.Wrap(f.Write(w), "writing xlsx")
}

func writeSheet(f *excelize.File, sheet string, tbl report.Table, headerID, boldID int) error {
	if len(tbl.Columns) == 0 {
		return nil
	}
	if err := setRow(f, sheet, 1, tbl.Columns, false); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(tbl.Columns))
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerID); err != nil {
		return err
	}

	rowNum := 2
	for _, cells := range tbl.Rows {
		if err := setRow(f, sheet, rowNum, cells, true); err != nil {
			return err
		}
		rowNum++
	}
	if len(tbl.Summary) > 0 {
		rowNum++ // blank separator
		first := rowNum
		for _, cells := range tbl.Summary {
			if err := setRow(f, sheet, rowNum, cells, true); err != nil {
				return err
			}
			rowNum++
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", first), fmt.Sprintf("%s%d", lastCol, rowNum-1), boldID); err != nil {
			return err
		}
	}

	for i, col := range tbl.Columns {
		colName, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(colWidth)
		if longestCell(tbl, i) >= wideColMinLen {
			width = wideColWidth
		}
		if err := f.SetColWidth(sheet, colName, colName, width); err != nil {
			return errors.Wrapf(err, "sizing column %q", col)
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeInfo(f *excelize.File, sheet string, doc report.Document, boldID int) error {
	rows := [][]string{{doc.Title}}
	if doc.Subtitle != "" {
		rows = append(rows, []string{doc.Subtitle})
	}
	rows = append(rows, nil)
	for _, m := range doc.Meta {
		rows = append(rows, []string{m.Label, m.Value})
	}
	rows = append(rows, []string{"Generated at", doc.GeneratedAt.UTC().Format(timeLayout)})

	for i, cells := range rows {
		if err := setRow(f, sheet, i+1, cells, false); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", boldID); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", "B", wideColWidth)
}

// setRow writes `cells` at row `num`. When `numbers` is set, short numeric cells (ages, ratings, counts)
// are written as numbers; longer digit strings like phone numbers stay text.
func setRow(f *excelize.File, sheet string, num int, cells []string, numbers bool) error {
	if len(cells) == 0 {
		return nil
	}
	values := make([]interface{}, len(cells))
	for i, cell := range cells {
		values[i] = cell
		if numbers && len(cell) <= maxNumericLen {
			if n, err := strconv.ParseFloat(cell, 64); err == nil {
				values[i] = n
			}
		}
	}
	return f.SetSheetRow(sheet, fmt.Sprintf("A%d", num), &values)
}

func longestCell(tbl report.Table, col int) int {
	longest := len(tbl.Columns[col])
	for _, cells := range tbl.Rows {
		if col < len(cells) && len(cells[col]) > longest {
			longest = len(cells[col])
		}
	}
	return longest
}

// sheetName returns a valid, unique sheet name derived from `title`.
func sheetName(title string, idx int, used map[string]int) string {
	name := strings.TrimSpace(sheetNameReplacer.Replace(title))
	if name == "" {
		name = fmt.Sprintf("Sheet%d", idx+1)
	}
	if len([]rune(name)) > maxSheetName {
		name = string([]rune(name)[:maxSheetName])
	}
	key := strings.ToLower(name)
	if n, ok := used[key]; ok {
		used[key] = n + 1
		suffix := fmt.Sprintf(" (%d)", n+1)
		runes := []rune(name)
		if len(runes)+len(suffix) > maxSheetName {
			runes = runes[:maxSheetName-len(suffix)]
		}
		name = string(runes) + suffix
	}
	used[strings.ToLower(name)] = 1
	return name
}
