package echoapi_test

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/plan"
	"github.com/trezcool/preschool/testutil"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func TestReportApi(t *testing.T) {
	env := setup(t)
	s := env.seed(t)
	testutil.CreateEntry(t, env.entries, s.asha.ID, core.NewDate(2024, 3, 4), 3, s.lkg1.ID)
	testutil.CreateEntry(t, env.entries, s.asha.ID, core.NewDate(2024, 3, 8), 5, s.lkg1.ID)
	testutil.CreateEntry(t, env.entries, s.bilal.ID, core.NewDate(2024, 3, 8), 2, s.lkg2.ID)
	testutil.CreatePlan(t, env.plans, "Water play", plan.TypeWeekly, core.ClassLKG, core.NewDate(2024, 3, 11), core.NewDate(2024, 3, 15), s.lkg1.ID)
	adminToken := env.token(t, s.admin)
	lkg1Token := env.token(t, s.lkg1)

	tests := []struct {
		name            string
		path            string
		token           string
		wantCode        int
		wantContentType string
		wantFile        string
	}{
		{name: "roster pdf", path: "/api/reports/students?format=pdf", token: adminToken, wantCode: http.StatusOK, wantContentType: "application/pdf", wantFile: ".pdf"},
		{name: "roster defaults to pdf", path: "/api/reports/students?class=LKG", token: lkg1Token, wantCode: http.StatusOK, wantContentType: "application/pdf", wantFile: ".pdf"},
		{name: "roster xlsx", path: "/api/reports/students?format=xlsx", token: adminToken, wantCode: http.StatusOK, wantContentType: xlsxContentType, wantFile: ".xlsx"},
		{name: "unknown format", path: "/api/reports/students?format=csv", token: adminToken, wantCode: http.StatusBadRequest},
		{name: "student progress", path: "/api/reports/students/" + s.asha.ID + "/progress?from=2024-03-01&to=2024-03-31", token: lkg1Token, wantCode: http.StatusOK, wantContentType: "application/pdf", wantFile: ".pdf"},
		{name: "progress of another teacher's student", path: "/api/reports/students/" + s.bilal.ID + "/progress", token: lkg1Token, wantCode: http.StatusNotFound},
		{name: "period ending before it starts", path: "/api/reports/progress?from=2024-03-31&to=2024-03-01", token: adminToken, wantCode: http.StatusBadRequest},
		{name: "invalid date", path: "/api/reports/progress?from=yesterday", token: adminToken, wantCode: http.StatusBadRequest},
		{name: "progress sheet xlsx", path: "/api/reports/progress?format=xlsx&class=LKG", token: adminToken, wantCode: http.StatusOK, wantContentType: xlsxContentType, wantFile: ".xlsx"},
		{name: "plan book", path: "/api/reports/plans?format=pdf&from=2024-03-11&to=2024-03-17", token: lkg1Token, wantCode: http.StatusOK, wantContentType: "application/pdf", wantFile: ".pdf"},
		{name: "unauthenticated", path: "/api/reports/plans", wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.run(t, httpTest{method: http.MethodGet, path: tt.path, token: tt.token, wantCode: tt.wantCode})
			if tt.wantCode != http.StatusOK {
				return
			}
			assert.Equal(t, tt.wantContentType, rec.Header().Get("Content-Type"))
			disposition := rec.Header().Get("Content-Disposition")
			assert.True(t, strings.HasPrefix(disposition, "attachment; filename="), disposition)
			assert.True(t, strings.HasSuffix(disposition, tt.wantFile+`"`), disposition)
			if tt.wantFile == ".pdf" {
				assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")), "body is a PDF")
			}
		})
	}
}

func TestReportApi_progressSheetScope(t *testing.T) {
	env := setup(t)
	s := env.seed(t)
	testutil.CreateEntry(t, env.entries, s.asha.ID, core.NewDate(2024, 3, 8), 5, s.lkg1.ID)
	testutil.CreateEntry(t, env.entries, s.bilal.ID, core.NewDate(2024, 3, 8), 2, s.lkg2.ID)

	rec := env.run(t, httpTest{method: http.MethodGet, path: "/api/reports/progress?format=xlsx", token: env.token(t, s.lkg1), wantCode: http.StatusOK})

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var cells []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		require.NoError(t, err)
		for _, row := range rows {
			cells = append(cells, row...)
		}
	}
	assert.Contains(t, cells, "Asha")
	assert.NotContains(t, cells, "Bilal", "teachers only report on their students")
}
