package progress

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// InitValidators registers the progress validators.
func InitValidators(validate *validator.Validate, _ ut.Translator) {
	validate.RegisterStructValidation(entryStructValidation, NewEntry{})
}

// entryStructValidation checks that the entry date is provided.
func entryStructValidation(sl validator.StructLevel) {
	ne, ok := sl.Current().Interface().(NewEntry)
	if !ok {
		return
	}
	if ne.Date.IsZero() {
		sl.ReportError(ne.Date, "date", "Date", "required", "")
	}
}
