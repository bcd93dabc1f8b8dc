package progress

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/preschool/core"
)

// Skill is one of the rated development dimensions.
type Skill struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

var Skills = []Skill{
	{Key: "language", Name: "Communication & Language"},
	{Key: "numeracy", Name: "Early Math & Cognitive"},
	{Key: "motor", Name: "Physical & Motor"},
	{Key: "social", Name: "Social & Emotional"},
	{Key: "creativity", Name: "Creative Expression"},
}

const (
	MinRating = 1
	MaxRating = 5
)

type Ratings struct {
	Language   int `json:"language" db:"language" validate:"min=1,max=5"`
	Numeracy   int `json:"numeracy" db:"numeracy" validate:"min=1,max=5"`
	Motor      int `json:"motor" db:"motor" validate:"min=1,max=5"`
	Social     int `json:"social" db:"social" validate:"min=1,max=5"`
	Creativity int `json:"creativity" db:"creativity" validate:"min=1,max=5"`
}

// Values returns the ratings in Skills order.
func (r Ratings) Values() []int {
	return []int{r.Language, r.Numeracy, r.Motor, r.Social, r.Creativity}
}

func (r Ratings) Average() float64 {
	var total int
	values := r.Values()
	for _, v := range values {
		total += v
	}
	return round(float64(total) / float64(len(values)))
}

type Entry struct {
	ID         string      `json:"id"`
	StudentID  string      `json:"student_id"`
	Date       core.Date   `json:"date"`
	RecordedBy null.String `json:"recorded_by"`
	Ratings
	Remarks   string    `json:"remarks"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewEntry contains information needed to record a progress entry.
type NewEntry struct {
	StudentID string    `json:"student_id" validate:"required,uuid"`
	Date      core.Date `json:"date"`
	Ratings
	Remarks string `json:"remarks" validate:"max=2000"`
}

func (ne *NewEntry) Validate(validate *validator.Validate) error {
	ne.StudentID = core.CleanString(ne.StudentID, true /* lower */)
	ne.Remarks = core.CleanString(ne.Remarks)
	return validate.Struct(ne)
}

// UpdateEntry defines what information may be provided to modify an existing Entry.
// The student of an entry cannot be changed.
type UpdateEntry struct {
	Date       *core.Date `json:"date"`
	Language   *int       `json:"language"`
	Numeracy   *int       `json:"numeracy"`
	Motor      *int       `json:"motor"`
	Social     *int       `json:"social"`
	Creativity *int       `json:"creativity"`
	Remarks    *string    `json:"remarks"`
}

// Merge returns the NewEntry resulting from applying the update on `orig`.
func (ue *UpdateEntry) Merge(orig Entry) NewEntry {
	ne := NewEntry{
		StudentID: orig.StudentID,
		Date:      orig.Date,
		Ratings:   orig.Ratings,
		Remarks:   orig.Remarks,
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	if ue.Date != nil {
		ne.Date = *ue.Date
	}
	setInt(&ne.Language, ue.Language)
	setInt(&ne.Numeracy, ue.Numeracy)
	setInt(&ne.Motor, ue.Motor)
	setInt(&ne.Social, ue.Social)
	setInt(&ne.Creativity, ue.Creativity)
	if ue.Remarks != nil {
		ne.Remarks = *ue.Remarks
	}
	return ne
}

type QueryFilter struct {
	StudentIDs []string  `query:"student_id"`
	Classes    []string  `query:"class"`
	TeacherID  string    `query:"teacher_id"` // entries of the teacher's assigned students
	DateFrom   core.Date `query:"date_from"`
	DateTo     core.Date `query:"date_to"` // inclusive
}

func (qf *QueryFilter) Clean() {
	qf.StudentIDs = core.CleanStrings(qf.StudentIDs, true /* lower */)
	qf.Classes = core.CleanStrings(qf.Classes)
	qf.TeacherID = core.CleanString(qf.TeacherID, true /* lower */)
}

// SkillAverage is the average rating of one Skill over a set of entries.
type SkillAverage struct {
	Skill
	Average float64 `json:"average"`
}

type Summary struct {
	Count    int            `json:"count"`
	From     core.Date      `json:"from"`
	To       core.Date      `json:"to"`
	Skills   []SkillAverage `json:"skills"`
	Overall  float64        `json:"overall"`
	Trending float64        `json:"trending"` // overall of the latest entry minus overall of the earliest
}

// Summarize computes per-skill and overall averages of `entries`, rounded to 2 decimals.
func Summarize(entries []Entry) Summary {
	sum := Summary{Count: len(entries), Skills: make([]SkillAverage, len(Skills))}
	for i, sk := range Skills {
		sum.Skills[i].Skill = sk
	}
	if len(entries) == 0 {
		return sum
	}

	totals := make([]int, len(Skills))
	first, last := entries[0], entries[0]
	for _, e := range entries {
		for i, v := range e.Values() {
			totals[i] += v
		}
		if e.Date.Before(first.Date) {
			first = e
		}
		if e.Date.After(last.Date) {
			last = e
		}
	}
	var overall float64
	for i, total := range totals {
		avg := float64(total) / float64(len(entries))
		sum.Skills[i].Average = round(avg)
		overall += avg
	}
	sum.Overall = round(overall / float64(len(Skills)))
	sum.From, sum.To = first.Date, last.Date
	sum.Trending = round(last.Average() - first.Average())
	return sum
}

func round(f float64) float64 {
	return math.Round(f*100) / 100
}
