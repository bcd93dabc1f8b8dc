package suggestion

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/student"
)

type fakeSuggester struct {
	text   string
	err    error
	prompt Prompt
}

func (s *fakeSuggester) Suggest(_ context.Context, prompt Prompt) (string, error) {
	s.prompt = prompt
	return s.text, s.err
}

type fakeProgress struct {
	progress.Service
	entries []progress.Entry
}

func (p *fakeProgress) Latest(_ context.Context, _ string, n int) ([]progress.Entry, error) {
	if len(p.entries) > n {
		return p.entries[:n], nil
	}
	return p.entries, nil
}

func TestRequestValidate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	req := Request{Kind: " Activities ", Class: core.ClassLKG, Topic: " monsoon "}
	require.NoError(t, req.Validate(validate))
	assert.Equal(t, KindActivities, req.Kind)
	assert.Equal(t, "monsoon", req.Topic)

	req = Request{Kind: "poems"}
	assert.Error(t, req.Validate(validate))

	req = Request{Kind: KindRemarks}
	err := req.Validate(validate)
	require.True(t, core.IsValidationError(err))
	assert.Equal(t, "student_id", err.(*core.ValidationError).Fields[0].Field)
}

func TestBuildPrompt(t *testing.T) {
	st := &student.Student{Name: "Ravi Kumar", Age: 4, Class: core.ClassLKG, LearningAbility: student.AbilityNeedsSupport, SupportNotes: "Shy in groups."}
	history := []progress.Entry{{
		Date:    core.NewDate(2024, time.March, 8),
		Ratings: progress.Ratings{Language: 2, Numeracy: 3, Motor: 4, Social: 1, Creativity: 5},
		Remarks: "Enjoyed painting",
	}}

	prompt := BuildPrompt(Request{Kind: KindGoals, Class: core.ClassLKG, Topic: "friendship"}, st, history)
	assert.Equal(t, KindGoals, prompt.Kind)
	assert.Equal(t, systemPrompt, prompt.System)
	assert.Contains(t, prompt.User, "learning goals for a LKG class")
	assert.Contains(t, prompt.User, "Topic or theme: friendship.")
	assert.Contains(t, prompt.User, "Student: Ravi, age 4, LKG class.")
	assert.NotContains(t, prompt.User, "Kumar")
	assert.Contains(t, prompt.User, "Learning ability: needs support.")
	assert.Contains(t, prompt.User, "- 2024-03-08: language 2, numeracy 3, motor 4, social 1, creativity 5. Remarks: Enjoyed painting")
	assert.Contains(t, prompt.User, "weakest skills")

	prompt = BuildPrompt(Request{Kind: KindActivities}, nil, nil)
	assert.Contains(t, prompt.User, "activities for a pre-primary class")
	assert.NotContains(t, prompt.User, "Student:")
}

func TestSuggest(t *testing.T) {
	ctx := context.Background()
	st := &student.Student{ID: "s1", Name: "Ravi", Age: 4, Class: core.ClassUKG, LearningAbility: student.AbilityGood}
	entries := make([]progress.Entry, 7)
	for i := range entries {
		entries[i] = progress.Entry{Date: core.NewDate(2024, time.March, 10-i)}
	}

	t.Run("trimmed text with student context", func(t *testing.T) {
		sg := &fakeSuggester{text: "\n  Ravi is doing great.  \n"}
		svc := NewService(sg, &fakeProgress{entries: entries})

		got, err := svc.Suggest(ctx, Request{Kind: KindRemarks, StudentID: "s1"}, st)
		require.NoError(t, err)
		assert.Equal(t, Suggestion{Kind: KindRemarks, Text: "Ravi is doing great."}, got)
		assert.Contains(t, sg.prompt.User, "2024-03-06")
		assert.NotContains(t, sg.prompt.User, "2024-03-05") // only the 5 latest entries
	})

	t.Run("class defaults to student's", func(t *testing.T) {
		sg := &fakeSuggester{text: "ok"}
		svc := NewService(sg, &fakeProgress{})
		_, err := svc.Suggest(ctx, Request{Kind: KindActivities}, st)
		require.NoError(t, err)
		assert.Contains(t, sg.prompt.User, "for a UKG class")
	})

	t.Run("provider unavailable", func(t *testing.T) {
		svc := NewService(&fakeSuggester{err: errors.Wrap(core.ErrUnavailable, "breaker open")}, &fakeProgress{})
		_, err := svc.Suggest(ctx, Request{Kind: KindGoals}, nil)
		assert.Equal(t, core.ErrUnavailable, err)
	})

	t.Run("empty suggestion", func(t *testing.T) {
		svc := NewService(&fakeSuggester{text: "  "}, &fakeProgress{})
		_, err := svc.Suggest(ctx, Request{Kind: KindGoals}, nil)
		assert.Equal(t, errEmptySuggestion, err)
		assert.Equal(t, core.ErrBadGateway, errors.Cause(err))
	})

	t.Run("provider rejects the prompt", func(t *testing.T) {
		svc := NewService(&fakeSuggester{err: errors.New("chat completions: status 400: bad model")}, &fakeProgress{})
		_, err := svc.Suggest(ctx, Request{Kind: KindGoals}, nil)
		assert.Equal(t, core.ErrBadGateway, errors.Cause(err))
		assert.Contains(t, err.Error(), "bad model")
	})

	t.Run("cancelled", func(t *testing.T) {
		svc := NewService(&fakeSuggester{err: errors.Wrap(context.Canceled, "sending request")}, &fakeProgress{})
		_, err := svc.Suggest(ctx, Request{Kind: KindGoals}, nil)
		assert.Equal(t, context.Canceled, errors.Cause(err))
	})
}
