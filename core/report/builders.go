package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/plan"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/student"
)

const dash = "-"

// Names maps user IDs to display names.
type Names map[string]string

func (n Names) get(id string) string {
	if name, ok := n[id]; ok && name != "" {
		return name
	}
	return dash
}

// Period is an optional, inclusive date range.
type Period struct {
	From core.Date
	To   core.Date
}

func (p Period) String() string {
	switch {
	case p.From.IsZero() && p.To.IsZero():
		return "All time"
	case p.From.IsZero():
		return "Until " + p.To.String()
	case p.To.IsZero():
		return "Since " + p.From.String()
	default:
		return p.From.String() + " to " + p.To.String()
	}
}

// StudentRoster lists `students` with their profile and assigned teacher.
func StudentRoster(students []student.Student, teachers Names, meta []Meta, now time.Time) Document {
	tbl := Table{
		Title:   "Students",
		Columns: []string{"Name", "Age", "Class", "Learning ability", "Writing speed", "Teacher", "Guardian", "Guardian phone"},
		Rows:    make([][]string, 0, len(students)),
	}
	perClass := make(map[string]int, len(core.Classes))
	for _, st := range students {
		perClass[st.Class]++
		tbl.Rows = append(tbl.Rows, []string{
			st.Name,
			strconv.Itoa(st.Age),
			st.Class,
			humanize(st.LearningAbility),
			humanize(st.WritingSpeed),
			teachers.get(st.TeacherID.String),
			orDash(st.GuardianName),
			orDash(st.GuardianPhone),
		})
	}
	for _, class := range core.Classes {
		if n := perClass[class]; n > 0 {
			tbl.Summary = append(tbl.Summary, []string{class, strconv.Itoa(n)})
		}
	}
	tbl.Summary = append(tbl.Summary, []string{"Total", strconv.Itoa(len(students))})

	return Document{
		Name:        "student-roster-" + now.Format(core.DateLayout),
		Title:       "Student Roster",
		Subtitle:    fmt.Sprintf("%d students", len(students)),
		Meta:        meta,
		Tables:      []Table{tbl},
		GeneratedAt: now,
	}
}

// StudentProgress is the progress report of one student: profile, dated entries and skill averages.
func StudentProgress(st student.Student, teacher string, entries []progress.Entry, period Period, now time.Time) Document {
	profile := Table{
		Title:   "Profile",
		Columns: []string{"Field", "Value"},
		Rows: [][]string{
			{"Age", strconv.Itoa(st.Age)},
			{"Class", st.Class},
			{"Learning ability", humanize(st.LearningAbility)},
			{"Writing speed", humanize(st.WritingSpeed)},
			{"Teacher", orDash(teacher)},
			{"Guardian", orDash(st.GuardianName)},
		},
	}
	if st.SupportNotes != "" {
		profile.Rows = append(profile.Rows, []string{"Support notes", st.SupportNotes})
	}

	entriesTbl := Table{
		Title:   "Progress entries",
		Columns: entryColumns("Date"),
		Rows:    make([][]string, 0, len(entries)),
	}
	for _, e := range entries {
		entriesTbl.Rows = append(entriesTbl.Rows, entryRow(e.Date.String(), e))
	}

	sum := progress.Summarize(entries)
	averages := Table{
		Title:   "Skill averages",
		Columns: []string{"Skill", "Average"},
		Rows:    make([][]string, 0, len(sum.Skills)),
		Summary: [][]string{{"Overall", formatAvg(sum.Overall, sum.Count)}},
	}
	for _, sk := range sum.Skills {
		averages.Rows = append(averages.Rows, []string{sk.Name, formatAvg(sk.Average, sum.Count)})
	}
	if sum.Count > 1 {
		averages.Summary = append(averages.Summary, []string{"Change since first entry", fmt.Sprintf("%+.2f", sum.Trending)})
	}

	return Document{
		Name:     "progress-" + slug(st.Name) + "-" + now.Format(core.DateLayout),
		Title:    "Progress Report: " + st.Name,
		Subtitle: period.String(),
		Meta: []Meta{
			{Label: "Class", Value: st.Class},
			{Label: "Entries", Value: strconv.Itoa(sum.Count)},
		},
		Tables:      []Table{profile, entriesTbl, averages},
		GeneratedAt: now,
	}
}

// ProgressSheet summarizes the progress of many students, one table per class.
// Students without entries in the period are listed with empty averages.
func ProgressSheet(students []student.Student, entries []progress.Entry, period Period, meta []Meta, now time.Time) Document {
	byStudent := make(map[string][]progress.Entry, len(students))
	for _, e := range entries {
		byStudent[e.StudentID] = append(byStudent[e.StudentID], e)
	}
	byClass := make(map[string][]student.Student, len(core.Classes))
	for _, st := range students {
		byClass[st.Class] = append(byClass[st.Class], st)
	}

	doc := Document{
		Name:        "progress-sheet-" + now.Format(core.DateLayout),
		Title:       "Progress Sheet",
		Subtitle:    period.String(),
		Meta:        meta,
		GeneratedAt: now,
	}
	for _, class := range core.Classes {
		classStudents := byClass[class]
		if len(classStudents) == 0 {
			continue
		}
		tbl := Table{
			Title:   class,
			Columns: summaryColumns(),
			Rows:    make([][]string, 0, len(classStudents)),
		}
		var classEntries []progress.Entry
		for _, st := range classStudents {
			stEntries := byStudent[st.ID]
			classEntries = append(classEntries, stEntries...)
			tbl.Rows = append(tbl.Rows, summaryRow(st.Name, progress.Summarize(stEntries)))
		}
		tbl.Summary = [][]string{summaryRow("Class average", progress.Summarize(classEntries))}
		doc.Tables = append(doc.Tables, tbl)
	}
	if len(doc.Tables) == 0 {
		doc.Tables = []Table{{Title: "No students", Columns: []string{"Student"}}}
	}
	return doc
}

// PlanBook lists teaching plans with their activities and goals.
func PlanBook(plans []plan.Plan, teachers Names, meta []Meta, now time.Time) Document {
	tbl := Table{
		Title:   "Teaching plans",
		Columns: []string{"Title", "Type", "Class", "Start", "End", "Teacher", "Activities", "Goals"},
		Rows:    make([][]string, 0, len(plans)),
	}
	perType := make(map[string]int, len(plan.Types))
	for _, p := range plans {
		perType[p.Type]++
		tbl.Rows = append(tbl.Rows, []string{
			p.Title,
			humanize(p.Type),
			p.Class,
			p.StartDate.String(),
			p.EndDate.String(),
			teachers.get(p.TeacherID),
			orDash(strings.Join(p.Activities, "; ")),
			orDash(strings.Join(p.Goals, "; ")),
		})
	}
	for _, typ := range plan.Types {
		if n := perType[typ]; n > 0 {
			tbl.Summary = append(tbl.Summary, []string{humanize(typ), strconv.Itoa(n)})
		}
	}
	tbl.Summary = append(tbl.Summary, []string{"Total", strconv.Itoa(len(plans))})

	return Document{
		Name:        "teaching-plans-" + now.Format(core.DateLayout),
		Title:       "Teaching Plans",
		Subtitle:    fmt.Sprintf("%d plans", len(plans)),
		Meta:        meta,
		Tables:      []Table{tbl},
		GeneratedAt: now,
	}
}

func entryColumns(first string) []string {
	cols := []string{first}
	for _, sk := range progress.Skills {
		cols = append(cols, sk.Name)
	}
	return append(cols, "Average", "Remarks")
}

func entryRow(first string, e progress.Entry) []string {
	row := []string{first}
	for _, v := range e.Values() {
		row = append(row, strconv.Itoa(v))
	}
	return append(row, fmt.Sprintf("%.2f", e.Average()), orDash(e.Remarks))
}

func summaryColumns() []string {
	cols := []string{"Student", "Entries"}
	for _, sk := range progress.Skills {
		cols = append(cols, sk.Name)
	}
	return append(cols, "Average")
}

// summaryRow renders `sum` in the layout of summaryColumns.
func summaryRow(first string, sum progress.Summary) []string {
	row := []string{first, strconv.Itoa(sum.Count)}
	for _, sk := range sum.Skills {
		row = append(row, formatAvg(sk.Average, sum.Count))
	}
	return append(row, formatAvg(sum.Overall, sum.Count))
}

func formatAvg(avg float64, count int) string {
	if count == 0 {
		return dash
	}
	return fmt.Sprintf("%.2f", avg)
}

// humanize turns an enum value ("needs_support") into a label ("Needs support").
func humanize(s string) string {
	if s == "" {
		return dash
	}
	s = strings.ReplaceAll(s, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

func orDash(s string) string {
	if s == "" {
		return dash
	}
	return s
}

func slug(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if len(fields) == 0 {
		return "student"
	}
	return strings.Join(fields, "-")
}
