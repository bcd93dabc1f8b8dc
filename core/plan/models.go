package plan

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/preschool/core"
)

// Plan types
const (
	TypeDaily   = "daily"
	TypeWeekly  = "weekly"
	TypeMonthly = "monthly"
)

var (
	Types = []string{TypeDaily, TypeWeekly, TypeMonthly}

	// maximum number of days covered by a plan of each type
	maxSpan = map[string]int{
		TypeDaily:   1,
		TypeWeekly:  7,
		TypeMonthly: 31,
	}
)

type Plan struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Class       string    `json:"class"`
	Title       string    `json:"title"`
	StartDate   core.Date `json:"start_date"`
	EndDate     core.Date `json:"end_date"`
	Description string    `json:"description"`
	Activities  []string  `json:"activities"`
	Goals       []string  `json:"goals"`
	TeacherID   string    `json:"teacher_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Days returns the number of days covered by the plan.
func (p *Plan) Days() int {
	return p.StartDate.DaysUntil(p.EndDate) + 1
}

// NewPlan contains information needed to create a new Plan.
type NewPlan struct {
	Type        string    `json:"type" validate:"required,oneof=daily weekly monthly"`
	Class       string    `json:"class" validate:"required,schoolclass"`
	Title       string    `json:"title" validate:"required,max=200"`
	StartDate   core.Date `json:"start_date"`
	EndDate     core.Date `json:"end_date"`
	Description string    `json:"description" validate:"max=5000"`
	Activities  []string  `json:"activities" validate:"omitempty,max=50,dive,max=500"`
	Goals       []string  `json:"goals" validate:"omitempty,max=50,dive,max=500"`
	TeacherID   string    `json:"teacher_id" validate:"omitempty,uuid"`
}

func (np *NewPlan) clean() {
	np.Type = core.CleanString(np.Type, true /* lower */)
	np.Class = core.CleanString(np.Class)
	np.Title = core.CleanString(np.Title)
	np.Description = core.CleanString(np.Description)
	np.Activities = core.CleanStrings(np.Activities)
	np.Goals = core.CleanStrings(np.Goals)
	np.TeacherID = core.CleanString(np.TeacherID, true /* lower */)
	// a daily plan covers its start date only
	if np.Type == TypeDaily && np.EndDate.IsZero() {
		np.EndDate = np.StartDate
	}
}

func (np *NewPlan) Validate(validate *validator.Validate) error {
	np.clean()
	return validate.Struct(np)
}

// UpdatePlan defines what information may be provided to modify an existing Plan.
type UpdatePlan struct {
	Type        *string    `json:"type"`
	Class       *string    `json:"class"`
	Title       *string    `json:"title"`
	StartDate   *core.Date `json:"start_date"`
	EndDate     *core.Date `json:"end_date"`
	Description *string    `json:"description"`
	Activities  []string   `json:"activities"`
	Goals       []string   `json:"goals"`
	TeacherID   *string    `json:"teacher_id"`
}

// Merge returns the NewPlan resulting from applying the update on `orig`.
func (up *UpdatePlan) Merge(orig Plan) NewPlan {
	np := NewPlan{
		Type:        orig.Type,
		Class:       orig.Class,
		Title:       orig.Title,
		StartDate:   orig.StartDate,
		EndDate:     orig.EndDate,
		Description: orig.Description,
		Activities:  orig.Activities,
		Goals:       orig.Goals,
		TeacherID:   orig.TeacherID,
	}
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setStr(&np.Type, up.Type)
	setStr(&np.Class, up.Class)
	setStr(&np.Title, up.Title)
	setStr(&np.Description, up.Description)
	setStr(&np.TeacherID, up.TeacherID)
	if up.StartDate != nil {
		np.StartDate = *up.StartDate
	}
	if up.EndDate != nil {
		np.EndDate = *up.EndDate
	}
	if up.Activities != nil {
		np.Activities = up.Activities
	}
	if up.Goals != nil {
		np.Goals = up.Goals
	}
	np.clean()
	return np
}

func (up *UpdatePlan) Validate(orig Plan, validate *validator.Validate) error {
	np := up.Merge(orig)
	return validate.Struct(np)
}

type QueryFilter struct {
	Search    string    `query:"search"` // title or description
	Types     []string  `query:"type"`
	Classes   []string  `query:"class"`
	TeacherID string    `query:"teacher_id"`
	DateFrom  core.Date `query:"date_from"` // plans ending on or after
	DateTo    core.Date `query:"date_to"`   // plans starting on or before
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Types = core.CleanStrings(qf.Types, true /* lower */)
	qf.Classes = core.CleanStrings(qf.Classes)
	qf.TeacherID = core.CleanString(qf.TeacherID, true /* lower */)
}
