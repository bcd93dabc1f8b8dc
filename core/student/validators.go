package student

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/preschool/core"
)

var (
	supportNotesTag  = "support_notes"
	supportNotesText = "support notes are required for students who need support"

	writingSpeedTag  = "writing_speed"
	writingSpeedText = "writing speed is required for LKG and UKG students"

	nurseryWritingTag  = "nursery_writing"
	nurseryWritingText = "nursery students have not started writing yet"
)

// InitValidators registers the student validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(studentStructValidation, NewStudent{})
	core.RegisterCustomTranslation(validate, translator, supportNotesTag, supportNotesText)
	core.RegisterCustomTranslation(validate, translator, writingSpeedTag, writingSpeedText)
	core.RegisterCustomTranslation(validate, translator, nurseryWritingTag, nurseryWritingText)
}

// studentStructValidation checks the fields depending on other fields' values:
// - support notes are required when the learning ability is "needs_support"
// - writing speed is required for LKG & UKG, and can only be "not_started" for Nursery
func studentStructValidation(sl validator.StructLevel) {
	ns, ok := sl.Current().Interface().(NewStudent)
	if !ok {
		return
	}
	if ns.LearningAbility == AbilityNeedsSupport && ns.SupportNotes == "" {
		sl.ReportError(ns.SupportNotes, "support_notes", "SupportNotes", supportNotesTag, "")
	}
	switch ns.Class {
	case core.ClassNursery:
		if !(ns.WritingSpeed == "" || ns.WritingSpeed == WritingNotStarted) {
			sl.ReportError(ns.WritingSpeed, "writing_speed", "WritingSpeed", nurseryWritingTag, "")
		}
	case core.ClassLKG, core.ClassUKG:
		if ns.WritingSpeed == "" {
			sl.ReportError(ns.WritingSpeed, "writing_speed", "WritingSpeed", writingSpeedTag, "")
		}
	}
}
