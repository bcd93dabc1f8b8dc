package plan

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/preschool/core"
)

func TestNewPlanValidation(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	monday := core.NewDate(2024, time.June, 3)
	valid := func() NewPlan {
		return NewPlan{
			Type:       " Weekly ",
			Class:      core.ClassUKG,
			Title:      "Colours week",
			StartDate:  monday,
			EndDate:    monday.AddDays(4),
			Activities: []string{"Colour mixing", " ", "Rainbow song"},
			Goals:      []string{"Name 6 colours"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(np *NewPlan)
		wantErr map[string]string
	}{
		{name: "valid", mutate: func(np *NewPlan) {}},
		{name: "invalid type", mutate: func(np *NewPlan) { np.Type = "yearly" }, wantErr: map[string]string{"type": "oneof"}},
		{name: "invalid class", mutate: func(np *NewPlan) { np.Class = "Grade 1" }, wantErr: map[string]string{"class": "schoolclass"}},
		{name: "title required", mutate: func(np *NewPlan) { np.Title = "" }, wantErr: map[string]string{"title": "required"}},
		{
			name:    "dates required",
			mutate:  func(np *NewPlan) { np.StartDate, np.EndDate = core.Date{}, core.Date{} },
			wantErr: map[string]string{"start_date": "required", "end_date": "required"},
		},
		{
			name:    "end before start",
			mutate:  func(np *NewPlan) { np.EndDate = monday.AddDays(-1) },
			wantErr: map[string]string{"end_date": endBeforeStartTag},
		},
		{name: "full week", mutate: func(np *NewPlan) { np.EndDate = monday.AddDays(6) }},
		{
			name:    "week too long",
			mutate:  func(np *NewPlan) { np.EndDate = monday.AddDays(7) },
			wantErr: map[string]string{"end_date": weeklySpanTag},
		},
		{
			name:   "daily defaults end date",
			mutate: func(np *NewPlan) { np.Type, np.EndDate = TypeDaily, core.Date{} },
		},
		{
			name:    "daily spanning days",
			mutate:  func(np *NewPlan) { np.Type = TypeDaily },
			wantErr: map[string]string{"end_date": dailySpanTag},
		},
		{
			name:   "month of 31 days",
			mutate: func(np *NewPlan) { np.Type, np.StartDate, np.EndDate = TypeMonthly, core.NewDate(2024, time.July, 1), core.NewDate(2024, time.July, 31) },
		},
		{
			name:    "month too long",
			mutate:  func(np *NewPlan) { np.Type, np.EndDate = TypeMonthly, monday.AddDays(31) },
			wantErr: map[string]string{"end_date": monthlySpanTag},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			np := valid()
			tt.mutate(&np)
			err := np.Validate(validate)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			errs := make(map[string]string)
			if vErrs, ok := err.(validator.ValidationErrors); ok {
				for _, e := range vErrs {
					errs[e.Field()] = e.Tag()
				}
			}
			assert.Equal(t, tt.wantErr, errs)
		})
	}
}

func TestNewPlanClean(t *testing.T) {
	np := NewPlan{Type: " Daily", StartDate: core.NewDate(2024, time.June, 3), Activities: []string{" a ", ""}}
	np.clean()
	assert.Equal(t, TypeDaily, np.Type)
	assert.Equal(t, np.StartDate, np.EndDate)
	assert.Equal(t, []string{"a"}, np.Activities)

	p := Plan{StartDate: np.StartDate, EndDate: np.StartDate.AddDays(6)}
	assert.Equal(t, 7, p.Days())
}
