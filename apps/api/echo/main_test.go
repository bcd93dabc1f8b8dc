package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/preschool/apps/api/echo"
	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/plan"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/report"
	"github.com/trezcool/preschool/core/student"
	"github.com/trezcool/preschool/core/suggestion"
	"github.com/trezcool/preschool/core/user"
	aisvc "github.com/trezcool/preschool/services/ai"
	emailsvc "github.com/trezcool/preschool/services/email"
	imagehostsvc "github.com/trezcool/preschool/services/imagehost"
	reportsvc "github.com/trezcool/preschool/services/report"
	"github.com/trezcool/preschool/storage/cache/memcache"
	inmemdb "github.com/trezcool/preschool/storage/database/inmem"
	"github.com/trezcool/preschool/testutil"
)

type testEnv struct {
	server   *echoapi.Server
	conf     *core.Config
	clock    clockwork.FakeClock
	mail     *emailsvc.ConsoleServiceMock
	users    user.Repository
	students student.Repository
	entries  progress.Repository
	plans    plan.Repository
}

type envOption func(conf *core.Config, deps *echoapi.ServerDeps)

// withSuggester replaces the offline suggester.
func withSuggester(s suggestion.Suggester) envOption {
	return func(_ *core.Config, deps *echoapi.ServerDeps) {
		deps.SuggestionSvc = suggestion.NewService(s, deps.ProgressSvc)
	}
}

func setup(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	conf := testutil.NewConfig()
	conf.ImageHost.MediaDir = t.TempDir()
	clock := clockwork.NewFakeClockAt(testutil.Now)
	validate, translator := testutil.NewValidator()
	logger := testutil.NopLogger{}

	db := inmemdb.Open()
	env := &testEnv{
		conf:     conf,
		clock:    clock,
		mail:     emailsvc.NewConsoleServiceMock(conf, logger),
		users:    inmemdb.NewUserRepository(db),
		students: inmemdb.NewStudentRepository(db),
		entries:  inmemdb.NewProgressRepository(db),
		plans:    inmemdb.NewPlanRepository(db),
	}

	images, err := imagehostsvc.NewLocalHost(conf.ImageHost)
	require.NoError(t, err)

	userSvc := user.NewService(env.users, env.mail, conf, clock)
	studentSvc := student.NewService(env.students, userSvc, images, logger, clock)
	progressSvc := progress.NewService(env.entries, clock)
	planSvc := plan.NewService(env.plans, userSvc, clock)

	deps := echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Clock:          clock,
		Validate:       validate,
		Translator:     translator,
		Cache:          memcache.New(clock),
		UserSvc:        userSvc,
		StudentSvc:     studentSvc,
		ProgressSvc:    progressSvc,
		PlanSvc:        planSvc,
		ReportSvc:      report.NewService(userSvc, studentSvc, progressSvc, planSvc, clock),
		Renderer:       reportsvc.NewRenderer(conf),
		SuggestionSvc:  suggestion.NewService(aisvc.NewOfflineSuggester(), progressSvc),
		DisableReqLogs: true,
	}
	for _, opt := range opts {
		opt(conf, &deps)
	}

	env.server = echoapi.NewServer(deps)
	t.Cleanup(func() { _ = env.server.Shutdown(context.Background()) })
	return env
}

// seed is the school used by most tests:
// two LKG teachers, one UKG teacher, one admin and four students.
type seed struct {
	admin, lkg1, lkg2, ukg     user.User
	asha, bilal, chen, dimitri student.Student // asha: lkg1, bilal: lkg2, chen: unassigned LKG, dimitri: unassigned UKG
}

func (env *testEnv) seed(t *testing.T) seed {
	t.Helper()
	var s seed
	s.admin = testutil.CreateAdmin(t, env.users, "Grace Admin", "grace")
	s.lkg1 = testutil.CreateTeacher(t, env.users, "Lina Teacher", "lina", core.ClassLKG)
	s.lkg2 = testutil.CreateTeacher(t, env.users, "Omar Teacher", "omar", core.ClassLKG)
	s.ukg = testutil.CreateTeacher(t, env.users, "Uma Teacher", "uma", core.ClassUKG)
	s.asha = testutil.CreateStudent(t, env.students, "Asha", 4, core.ClassLKG, s.lkg1.ID)
	s.bilal = testutil.CreateStudent(t, env.students, "Bilal", 4, core.ClassLKG, s.lkg2.ID)
	s.chen = testutil.CreateStudent(t, env.students, "Chen", 5, core.ClassLKG, "")
	s.dimitri = testutil.CreateStudent(t, env.students, "Dimitri", 6, core.ClassUKG, "")
	return s
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
}

func (env *testEnv) token(t *testing.T, usr user.User) string {
	t.Helper()
	auth := env.server.Auth()
	token, err := auth.GenerateToken(auth.UserClaims(usr))
	require.NoError(t, err, "generating token")
	return token
}

func newRequest(t *testing.T, method, path, token string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (env *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()
	rec := env.do(t, newRequest(t, tt.method, tt.path, tt.token, tt.body))
	assert.Equalf(t, tt.wantCode, rec.Code, "%s %s: %s", tt.method, tt.path, rec.Body.String())
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoErrorf(t, json.Unmarshal(rec.Body.Bytes(), v), "decoding %s", rec.Body.String())
}

// fieldErrors decodes a 400 response body.
func fieldErrors(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var errs map[string]string
	decode(t, rec, &errs)
	return errs
}

func studentIDs(students []student.Student) []string {
	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	return ids
}
