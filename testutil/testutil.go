// Package testutil holds fixtures shared by the test suites.
package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/plan"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/student"
	"github.com/trezcool/preschool/core/user"
)

// Now is the reference time of the fake clocks used in tests (a Monday).
var Now = time.Date(2024, time.March, 11, 9, 0, 0, 0, time.UTC)

type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

var _ core.Logger = NopLogger{}

// NewConfig returns the configuration used by tests: in-memory storage, no external providers.
func NewConfig() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		AppName:                   "Preschool",
		SecretKey:                 "test-secret-key-0123456789abcdef",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          "noreply@preschool.test",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			Address:                   ":0",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			RateLimit:                 1000,
			RateBurst:                 1000,
		},
		Database: core.DatabaseConfig{Engine: "inmem"},
		Redis:    core.RedisConfig{CacheTTL: time.Minute},
		ImageHost: core.ImageHostConfig{
			Provider: "local",
			MediaURL: "/media",
			MaxSize:  1 << 20,
		},
		Digest: core.DigestConfig{Schedule: "0 7 * * 1"},
	}
}

// NewValidator returns a validator with every app validation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	progress.InitValidators(validate, translator)
	plan.InitValidators(validate, translator)
	user.LoadCommonPasswords(NopLogger{})
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles, classes []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := Now
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		Classes:   classes,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd == "" {
		pwd = "Kd8#mPq2zL"
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

// CreateTeacher creates an active teacher of `classes`.
func CreateTeacher(t *testing.T, repo user.Repository, name, uname string, classes ...string) user.User {
	t.Helper()
	return CreateUser(t, repo, name, uname, uname+"@preschool.test", "", []string{user.RoleTeacher}, classes, true)
}

// CreateAdmin creates an active admin.
func CreateAdmin(t *testing.T, repo user.Repository, name, uname string, roles ...string) user.User {
	t.Helper()
	if len(roles) == 0 {
		roles = []string{user.RoleAdmin}
	}
	return CreateUser(t, repo, name, uname, uname+"@preschool.test", "", roles, nil, true)
}

// CreateStudent creates a student of `class`, assigned to `teacherID` if not empty.
func CreateStudent(
	t *testing.T,
	repo student.Repository,
	name string,
	age int,
	class, teacherID string,
	opts ...func(st *student.Student),
) student.Student {
	t.Helper()
	st := student.Student{
		Name:            name,
		Age:             age,
		Class:           class,
		LearningAbility: student.AbilityGood,
		TeacherID:       null.NewString(teacherID, teacherID != ""),
		CreatedAt:       Now,
		UpdatedAt:       Now,
	}
	if class != core.ClassNursery {
		st.WritingSpeed = student.WritingModerate
	}
	for _, opt := range opts {
		opt(&st)
	}
	st, err := repo.CreateStudent(context.Background(), st)
	if err != nil {
		t.Fatalf("CreateStudent(): %v", err)
	}
	return st
}

// CreateEntry records a progress entry with every skill rated `rating`.
func CreateEntry(t *testing.T, repo progress.Repository, studentID string, date core.Date, rating int, recordedBy string) progress.Entry {
	t.Helper()
	e := progress.Entry{
		StudentID:  studentID,
		Date:       date,
		RecordedBy: null.NewString(recordedBy, recordedBy != ""),
		Ratings:    progress.Ratings{Language: rating, Numeracy: rating, Motor: rating, Social: rating, Creativity: rating},
		CreatedAt:  Now,
		UpdatedAt:  Now,
	}
	e, err := repo.CreateEntry(context.Background(), e)
	if err != nil {
		t.Fatalf("CreateEntry(): %v", err)
	}
	return e
}

func CreatePlan(t *testing.T, repo plan.Repository, title, typ, class string, start, end core.Date, teacherID string) plan.Plan {
	t.Helper()
	p := plan.Plan{
		Type:       typ,
		Class:      class,
		Title:      title,
		StartDate:  start,
		EndDate:    end,
		Activities: []string{},
		Goals:      []string{},
		TeacherID:  teacherID,
		CreatedAt:  Now,
		UpdatedAt:  Now,
	}
	p, err := repo.CreatePlan(context.Background(), p)
	if err != nil {
		t.Fatalf("CreatePlan(): %v", err)
	}
	return p
}
