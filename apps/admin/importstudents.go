package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/student"
)

// roster columns
const (
	colName = iota
	colAge
	colLearningAbility
	colWritingSpeed
	colGuardianName
	colGuardianPhone
	colSupportNotes // optional
	rosterCols
)

// importStudents creates a student for each row of the first sheet of `path`, after the header row.
// Rows that fail are reported and skipped.
func (cli *commandLine) importStudents(path, class, teacher string) error {
	ctx := context.Background()
	class = core.CleanString(class)
	if !core.IsValidClass(class) {
		return fmt.Errorf("invalid class %q: must be one of %s", class, strings.Join(core.Classes, ", "))
	}

	var teacherID string
	if teacher != "" {
		usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, teacher)
		if err != nil {
			return errors.Wrapf(err, "finding teacher %q", teacher)
		}
		teacherID = usr.ID
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return errors.Wrap(err, "opening roster")
	}
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return errors.Wrap(err, "reading roster")
	}

	var imported, failed int
	for i, row := range rows {
		if i == 0 || isBlankRow(row) {
			continue
		}
		if err := cli.importRow(ctx, row, class, teacherID); err != nil {
			failed++
			fmt.Fprintf(cli.out, "row %d: %v\n", i+1, err)
			continue
		}
		imported++
	}
	fmt.Fprintf(cli.out, "%d student(s) imported into %s\n", imported, class)
	if failed > 0 {
		return fmt.Errorf("%d row(s) could not be imported", failed)
	}
	return nil
}

func (cli *commandLine) importRow(ctx context.Context, row []string, class, teacherID string) error {
	cells := make([]string, rosterCols)
	copy(cells, row)

	age, err := strconv.Atoi(strings.TrimSpace(cells[colAge]))
	if err != nil {
		return fmt.Errorf("invalid age %q", cells[colAge])
	}
	ns := student.NewStudent{
		Name:            cells[colName],
		Age:             age,
		Class:           class,
		LearningAbility: choiceValue(cells[colLearningAbility]),
		WritingSpeed:    choiceValue(cells[colWritingSpeed]),
		TeacherID:       teacherID,
		GuardianName:    cells[colGuardianName],
		GuardianPhone:   cells[colGuardianPhone],
		SupportNotes:    cells[colSupportNotes],
	}
	if err := ns.Validate(cli.validate); err != nil {
		return cli.invalid(err)
	}
	if _, err = cli.studentSvc.Create(ctx, ns); err != nil {
		return cli.invalid(err)
	}
	return nil
}

// choiceValue maps a spreadsheet label like "Needs support" to its value "needs_support".
func choiceValue(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), "_")
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
