package echoapi_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/testutil"
)

func entryBody(studentID, date string, rating int) map[string]interface{} {
	return map[string]interface{}{
		"student_id": studentID,
		"date":       date,
		"language":   rating,
		"numeracy":   rating,
		"motor":      rating,
		"social":     rating,
		"creativity": rating,
		"remarks":    "Enjoyed circle time",
	}
}

func TestProgressApi_create(t *testing.T) {
	env := setup(t)
	s := env.seed(t)
	lkg1Token := env.token(t, s.lkg1)

	tests := []struct {
		name       string
		body       map[string]interface{}
		token      string
		wantCode   int
		wantFields []string
	}{
		{name: "own student", body: entryBody(s.asha.ID, "2024-03-08", 4), token: lkg1Token, wantCode: http.StatusCreated},
		{name: "same day twice", body: entryBody(s.asha.ID, "2024-03-08", 3), token: lkg1Token, wantCode: http.StatusBadRequest, wantFields: []string{"date"}},
		{name: "today", body: entryBody(s.asha.ID, "2024-03-11", 5), token: lkg1Token, wantCode: http.StatusCreated},
		{name: "future date", body: entryBody(s.asha.ID, "2024-03-12", 4), token: lkg1Token, wantCode: http.StatusBadRequest, wantFields: []string{"date"}},
		{name: "missing date", body: entryBody(s.asha.ID, "", 4), token: lkg1Token, wantCode: http.StatusBadRequest, wantFields: []string{"date"}},
		{
			name:       "ratings out of range",
			body:       entryBody(s.asha.ID, "2024-03-07", 6),
			token:      lkg1Token,
			wantCode:   http.StatusBadRequest,
			wantFields: []string{"language", "numeracy", "motor", "social", "creativity"},
		},
		{name: "zero ratings", body: entryBody(s.asha.ID, "2024-03-07", 0), token: lkg1Token, wantCode: http.StatusBadRequest, wantFields: []string{"language"}},
		{name: "unknown student", body: entryBody("0b0c0d0e-0000-4000-8000-000000000000", "2024-03-07", 4), token: lkg1Token, wantCode: http.StatusBadRequest, wantFields: []string{"student_id"}},
		{name: "student of another teacher", body: entryBody(s.bilal.ID, "2024-03-07", 4), token: lkg1Token, wantCode: http.StatusForbidden},
		{name: "admin records for anyone", body: entryBody(s.bilal.ID, "2024-03-07", 2), token: env.token(t, s.admin), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.run(t, httpTest{method: http.MethodPost, path: "/api/progress", body: tt.body, token: tt.token, wantCode: tt.wantCode})
			switch tt.wantCode {
			case http.StatusBadRequest:
				errs := fieldErrors(t, rec)
				for _, fld := range tt.wantFields {
					assert.Contains(t, errs, fld)
				}
			case http.StatusCreated:
				var e progress.Entry
				decode(t, rec, &e)
				assert.Equal(t, tt.body["student_id"], e.StudentID)
				assert.Equal(t, tt.body["date"], e.Date.String())
				assert.Equal(t, "Enjoyed circle time", e.Remarks)
				assert.True(t, e.RecordedBy.Valid)
			}
		})
	}
}

func TestProgressApi_query(t *testing.T) {
	env := setup(t)
	s := env.seed(t)
	e1 := testutil.CreateEntry(t, env.entries, s.asha.ID, core.NewDate(2024, 3, 4), 3, s.lkg1.ID)
	e2 := testutil.CreateEntry(t, env.entries, s.asha.ID, core.NewDate(2024, 3, 8), 4, s.lkg1.ID)
	e3 := testutil.CreateEntry(t, env.entries, s.bilal.ID, core.NewDate(2024, 3, 8), 2, s.lkg2.ID)
	e4 := testutil.CreateEntry(t, env.entries, s.dimitri.ID, core.NewDate(2024, 2, 20), 5, s.admin.ID)

	query := func(token string, v url.Values) []string {
		rec := env.run(t, httpTest{method: http.MethodGet, path: "/api/progress?" + v.Encode(), token: token, wantCode: http.StatusOK})
		var entries []progress.Entry
		decode(t, rec, &entries)
		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		return ids
	}
	adminToken := env.token(t, s.admin)
	lkg1Token := env.token(t, s.lkg1)

	tests := []struct {
		name  string
		token string
		query url.Values
		want  []string
	}{
		{name: "admin sees all", token: adminToken, want: []string{e1.ID, e2.ID, e3.ID, e4.ID}},
		{name: "by student", token: adminToken, query: url.Values{"student_id": {s.bilal.ID}}, want: []string{e3.ID}},
		{name: "by class", token: adminToken, query: url.Values{"class": {core.ClassUKG}}, want: []string{e4.ID}},
		{name: "by period", token: adminToken, query: url.Values{"date_from": {"2024-03-05"}, "date_to": {"2024-03-08"}}, want: []string{e2.ID, e3.ID}},
		{name: "teacher sees their students", token: lkg1Token, want: []string{e1.ID, e2.ID}},
		{name: "teacher cannot read other students", token: lkg1Token, query: url.Values{"student_id": {s.bilal.ID}}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, query(tt.token, tt.query))
		})
	}

	rec := env.run(t, httpTest{method: http.MethodGet, path: "/api/progress/skills", token: lkg1Token, wantCode: http.StatusOK})
	var skills []progress.Skill
	decode(t, rec, &skills)
	assert.Len(t, skills, 5)
}

func TestProgressApi_detail(t *testing.T) {
	env := setup(t)
	s := env.seed(t)
	own := testutil.CreateEntry(t, env.entries, s.asha.ID, core.NewDate(2024, 3, 4), 3, s.lkg1.ID)
	testutil.CreateEntry(t, env.entries, s.asha.ID, core.NewDate(2024, 3, 5), 3, s.lkg1.ID)
	other := testutil.CreateEntry(t, env.entries, s.bilal.ID, core.NewDate(2024, 3, 4), 2, s.lkg2.ID)
	lkg1Token := env.token(t, s.lkg1)
	path := func(e progress.Entry) string { return "/api/progress/" + e.ID }

	tests := []httpTest{
		{name: "own entry", method: http.MethodGet, path: path(own), token: lkg1Token, wantCode: http.StatusOK},
		{name: "entry of another teacher", method: http.MethodGet, path: path(other), token: lkg1Token, wantCode: http.StatusNotFound},
		{name: "update of another teacher", method: http.MethodPut, path: path(other), body: map[string]int{"motor": 5}, token: lkg1Token, wantCode: http.StatusNotFound},
		{name: "invalid rating", method: http.MethodPut, path: path(own), body: map[string]int{"motor": 9}, token: lkg1Token, wantCode: http.StatusBadRequest},
		{name: "date collision", method: http.MethodPut, path: path(own), body: map[string]string{"date": "2024-03-05"}, token: lkg1Token, wantCode: http.StatusBadRequest},
		{name: "partial update", method: http.MethodPut, path: path(own), body: map[string]interface{}{"motor": 5, "remarks": "Hops on one foot"}, token: lkg1Token, wantCode: http.StatusOK},
		{name: "admin deletes any", method: http.MethodDelete, path: path(other), token: env.token(t, s.admin), wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.run(t, tt)
		})
	}

	rec := env.run(t, httpTest{method: http.MethodGet, path: path(own), token: lkg1Token, wantCode: http.StatusOK})
	var e progress.Entry
	decode(t, rec, &e)
	assert.Equal(t, 5, e.Motor)
	assert.Equal(t, 3, e.Language, "other ratings are kept")
	assert.Equal(t, "Hops on one foot", e.Remarks)
	assert.Equal(t, "2024-03-04", e.Date.String())

	env.run(t, httpTest{method: http.MethodGet, path: path(other), token: env.token(t, s.admin), wantCode: http.StatusNotFound})
}

func TestProgressApi_cache(t *testing.T) {
	env := setup(t)
	s := env.seed(t)
	lkg1Token := env.token(t, s.lkg1)
	adminToken := env.token(t, s.admin)

	list := func(want string) {
		rec := env.run(t, httpTest{method: http.MethodGet, path: "/api/progress", token: lkg1Token, wantCode: http.StatusOK})
		assert.Equal(t, want, rec.Header().Get("X-Cache"))
	}
	list("MISS")
	list("HIT")

	env.run(t, httpTest{method: http.MethodPost, path: "/api/progress", body: entryBody(s.asha.ID, "2024-03-08", 4), token: lkg1Token, wantCode: http.StatusCreated})
	list("MISS")
	list("HIT")

	// reassigning students changes what teachers see
	env.run(t, httpTest{
		method:   http.MethodPut,
		path:     "/api/students/" + s.chen.ID,
		body:     map[string]string{"teacher_id": s.lkg1.ID},
		token:    adminToken,
		wantCode: http.StatusOK,
	})
	list("MISS")

	rec := env.run(t, httpTest{method: http.MethodGet, path: "/api/progress", token: lkg1Token, wantCode: http.StatusOK})
	var entries []progress.Entry
	decode(t, rec, &entries)
	require.Len(t, entries, 1)
}
