package student

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/preschool/core"
)

// Learning abilities
const (
	AbilityExcellent    = "excellent"
	AbilityGood         = "good"
	AbilityAverage      = "average"
	AbilityNeedsSupport = "needs_support"
)

// Writing speeds
const (
	WritingFast       = "fast"
	WritingModerate   = "moderate"
	WritingSlow       = "slow"
	WritingNotStarted = "not_started"
)

var (
	LearningAbilities = []string{AbilityExcellent, AbilityGood, AbilityAverage, AbilityNeedsSupport}
	WritingSpeeds     = []string{WritingFast, WritingModerate, WritingSlow, WritingNotStarted}

	MinAge = 2
	MaxAge = 7
)

type Student struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Age             int         `json:"age"`
	Class           string      `json:"class"`
	LearningAbility string      `json:"learning_ability"`
	WritingSpeed    string      `json:"writing_speed"`
	TeacherID       null.String `json:"teacher_id"`
	PhotoURL        null.String `json:"photo_url"`
	GuardianName    string      `json:"guardian_name"`
	GuardianPhone   string      `json:"guardian_phone"`
	SupportNotes    string      `json:"support_notes"`
	CreatedAt       time.Time   `json:"created_at"` // UTC
	UpdatedAt       time.Time   `json:"updated_at"` // UTC
}

// IsAssignedTo reports whether the student is assigned to the teacher with the given ID.
func (st *Student) IsAssignedTo(teacherID string) bool {
	return st.TeacherID.Valid && st.TeacherID.String == teacherID
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	Name            string `json:"name" validate:"required,max=100"`
	Age             int    `json:"age" validate:"required,min=2,max=7"`
	Class           string `json:"class" validate:"required,schoolclass"`
	LearningAbility string `json:"learning_ability" validate:"required,oneof=excellent good average needs_support"`
	WritingSpeed    string `json:"writing_speed" validate:"omitempty,oneof=fast moderate slow not_started"`
	TeacherID       string `json:"teacher_id" validate:"omitempty,uuid"`
	GuardianName    string `json:"guardian_name" validate:"max=100"`
	GuardianPhone   string `json:"guardian_phone" validate:"omitempty,phone"`
	SupportNotes    string `json:"support_notes" validate:"max=1000"`
}

func (ns *NewStudent) clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.Class = core.CleanString(ns.Class)
	ns.LearningAbility = core.CleanString(ns.LearningAbility, true /* lower */)
	ns.WritingSpeed = core.CleanString(ns.WritingSpeed, true /* lower */)
	ns.TeacherID = core.CleanString(ns.TeacherID, true /* lower */)
	ns.GuardianName = core.CleanString(ns.GuardianName)
	ns.GuardianPhone = core.CleanString(ns.GuardianPhone)
	ns.SupportNotes = core.CleanString(ns.SupportNotes)
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.clean()
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Nil fields are left unchanged. An empty TeacherID unassigns the student.
type UpdateStudent struct {
	Name            *string `json:"name"`
	Age             *int    `json:"age"`
	Class           *string `json:"class"`
	LearningAbility *string `json:"learning_ability"`
	WritingSpeed    *string `json:"writing_speed"`
	TeacherID       *string `json:"teacher_id"`
	GuardianName    *string `json:"guardian_name"`
	GuardianPhone   *string `json:"guardian_phone"`
	SupportNotes    *string `json:"support_notes"`
}

// Merge returns the NewStudent resulting from applying the update on `orig`.
func (us *UpdateStudent) Merge(orig Student) NewStudent {
	ns := NewStudent{
		Name:            orig.Name,
		Age:             orig.Age,
		Class:           orig.Class,
		LearningAbility: orig.LearningAbility,
		WritingSpeed:    orig.WritingSpeed,
		TeacherID:       orig.TeacherID.String,
		GuardianName:    orig.GuardianName,
		GuardianPhone:   orig.GuardianPhone,
		SupportNotes:    orig.SupportNotes,
	}
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setStr(&ns.Name, us.Name)
	setStr(&ns.Class, us.Class)
	setStr(&ns.LearningAbility, us.LearningAbility)
	setStr(&ns.WritingSpeed, us.WritingSpeed)
	setStr(&ns.TeacherID, us.TeacherID)
	setStr(&ns.GuardianName, us.GuardianName)
	setStr(&ns.GuardianPhone, us.GuardianPhone)
	setStr(&ns.SupportNotes, us.SupportNotes)
	if us.Age != nil {
		ns.Age = *us.Age
	}
	ns.clean()
	return ns
}

// ChangesTeacher reports whether the update modifies the assigned teacher of `orig`.
func (us *UpdateStudent) ChangesTeacher(orig Student) bool {
	return us.TeacherID != nil && core.CleanString(*us.TeacherID, true) != orig.TeacherID.String
}

type QueryFilter struct {
	Search            string   `query:"search"` // name or guardian name
	Classes           []string `query:"class"`
	TeacherID         string   `query:"teacher_id"`
	Unassigned        bool     `query:"unassigned"`
	LearningAbilities []string `query:"learning_ability"`
	WritingSpeeds     []string `query:"writing_speed"`
	IDs               []string `query:"id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Classes = core.CleanStrings(qf.Classes)
	qf.TeacherID = core.CleanString(qf.TeacherID, true)
	qf.LearningAbilities = core.CleanStrings(qf.LearningAbilities, true)
	qf.WritingSpeeds = core.CleanStrings(qf.WritingSpeeds, true)
	qf.IDs = core.CleanStrings(qf.IDs, true)
}

// Validate checks the student resulting from applying the update on `orig`.
func (us *UpdateStudent) Validate(orig Student, validate *validator.Validate) error {
	ns := us.Merge(orig)
	return validate.Struct(ns)
}
