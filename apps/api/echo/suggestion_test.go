package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/suggestion"
	"github.com/trezcool/preschool/testutil"
)

type suggesterStub struct {
	text   string
	err    error
	prompt suggestion.Prompt
}

func (s *suggesterStub) Suggest(_ context.Context, prompt suggestion.Prompt) (string, error) {
	s.prompt = prompt
	return s.text, s.err
}

func TestSuggestionApi(t *testing.T) {
	env := setup(t)
	s := env.seed(t)
	testutil.CreateEntry(t, env.entries, s.asha.ID, core.NewDate(2024, 3, 8), 4, s.lkg1.ID)
	lkg1Token := env.token(t, s.lkg1)

	tests := []struct {
		name       string
		body       suggestion.Request
		token      string
		wantCode   int
		wantFields []string
	}{
		{name: "activities", body: suggestion.Request{Kind: suggestion.KindActivities, Class: core.ClassLKG}, token: lkg1Token, wantCode: http.StatusOK},
		{name: "goals for a topic", body: suggestion.Request{Kind: suggestion.KindGoals, Topic: "Seasons"}, token: lkg1Token, wantCode: http.StatusOK},
		{name: "remarks for own student", body: suggestion.Request{Kind: suggestion.KindRemarks, StudentID: s.asha.ID}, token: lkg1Token, wantCode: http.StatusOK},
		{name: "remarks need a student", body: suggestion.Request{Kind: suggestion.KindRemarks}, token: lkg1Token, wantCode: http.StatusBadRequest, wantFields: []string{"student_id"}},
		{name: "unknown kind", body: suggestion.Request{Kind: "poems"}, token: lkg1Token, wantCode: http.StatusBadRequest, wantFields: []string{"kind"}},
		{name: "invalid class", body: suggestion.Request{Kind: suggestion.KindGoals, Class: "Grade 5"}, token: lkg1Token, wantCode: http.StatusBadRequest, wantFields: []string{"class"}},
		{name: "student of another teacher", body: suggestion.Request{Kind: suggestion.KindRemarks, StudentID: s.bilal.ID}, token: lkg1Token, wantCode: http.StatusForbidden},
		{name: "unauthenticated", body: suggestion.Request{Kind: suggestion.KindGoals}, wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.run(t, httpTest{method: http.MethodPost, path: "/api/ai-suggestions", body: tt.body, token: tt.token, wantCode: tt.wantCode})
			switch tt.wantCode {
			case http.StatusOK:
				var sug suggestion.Suggestion
				decode(t, rec, &sug)
				assert.Equal(t, tt.body.Kind, sug.Kind)
				assert.NotEmpty(t, sug.Text)
			case http.StatusBadRequest:
				errs := fieldErrors(t, rec)
				for _, fld := range tt.wantFields {
					assert.Contains(t, errs, fld)
				}
			}
		})
	}
}

func TestSuggestionApi_provider(t *testing.T) {
	tests := []struct {
		name     string
		stub     *suggesterStub
		wantCode int
	}{
		{name: "provider down", stub: &suggesterStub{err: core.ErrUnavailable}, wantCode: http.StatusServiceUnavailable},
		{name: "empty answer", stub: &suggesterStub{text: "  "}, wantCode: http.StatusBadGateway},
		{name: "provider rejects the prompt", stub: &suggesterStub{err: errors.New("chat completions: status 400: bad model")}, wantCode: http.StatusBadGateway},
		{name: "answer is trimmed", stub: &suggesterStub{text: "\n- Leaf rubbing\n"}, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setup(t, withSuggester(tt.stub))
			s := env.seed(t)

			rec := env.run(t, httpTest{
				method:   http.MethodPost,
				path:     "/api/ai-suggestions",
				body:     suggestion.Request{Kind: suggestion.KindRemarks, StudentID: s.asha.ID, Topic: "Autumn"},
				token:    env.token(t, s.lkg1),
				wantCode: tt.wantCode,
			})
			assert.Equal(t, core.ClassLKG, tt.stub.prompt.Class, "the class defaults to the student's")
			assert.Equal(t, "Autumn", tt.stub.prompt.Topic)
			if tt.wantCode == http.StatusOK {
				var sug suggestion.Suggestion
				decode(t, rec, &sug)
				assert.Equal(t, "- Leaf rubbing", sug.Text)
			}
		})
	}
}
