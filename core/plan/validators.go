package plan

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/preschool/core"
)

var (
	endBeforeStartTag  = "end_before_start"
	endBeforeStartText = "end date cannot be before the start date"

	dailySpanTag  = "daily_span"
	dailySpanText = "a daily plan must start and end on the same day"

	weeklySpanTag  = "weekly_span"
	weeklySpanText = fmt.Sprintf("a weekly plan cannot cover more than %d days", maxSpan[TypeWeekly])

	monthlySpanTag  = "monthly_span"
	monthlySpanText = fmt.Sprintf("a monthly plan cannot cover more than %d days", maxSpan[TypeMonthly])

	spanTags = map[string]string{
		TypeDaily:   dailySpanTag,
		TypeWeekly:  weeklySpanTag,
		TypeMonthly: monthlySpanTag,
	}
)

// InitValidators registers the plan validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(planStructValidation, NewPlan{})
	core.RegisterCustomTranslation(validate, translator, endBeforeStartTag, endBeforeStartText)
	core.RegisterCustomTranslation(validate, translator, dailySpanTag, dailySpanText)
	core.RegisterCustomTranslation(validate, translator, weeklySpanTag, weeklySpanText)
	core.RegisterCustomTranslation(validate, translator, monthlySpanTag, monthlySpanText)
}

// planStructValidation checks the plan dates:
// - start & end dates are required
// - end date >= start date
// - the number of covered days fits the plan type
func planStructValidation(sl validator.StructLevel) {
	np, ok := sl.Current().Interface().(NewPlan)
	if !ok {
		return
	}
	if np.StartDate.IsZero() {
		sl.ReportError(np.StartDate, "start_date", "StartDate", "required", "")
	}
	if np.EndDate.IsZero() {
		sl.ReportError(np.EndDate, "end_date", "EndDate", "required", "")
	}
	if np.StartDate.IsZero() || np.EndDate.IsZero() {
		return
	}
	if np.EndDate.Before(np.StartDate) {
		sl.ReportError(np.EndDate, "end_date", "EndDate", endBeforeStartTag, "")
		return
	}
	if max, ok := maxSpan[np.Type]; ok && np.StartDate.DaysUntil(np.EndDate)+1 > max {
		sl.ReportError(np.EndDate, "end_date", "EndDate", spanTags[np.Type], "")
	}
}
