package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/student"
	"github.com/trezcool/preschool/core/user"
	emailsvc "github.com/trezcool/preschool/services/email"
	imagehostsvc "github.com/trezcool/preschool/services/imagehost"
	inmemdb "github.com/trezcool/preschool/storage/database/inmem"
	"github.com/trezcool/preschool/testutil"
)

const strongPassword = "Zq7!rTy5vW"

type testEnv struct {
	cli      *commandLine
	out      *bytes.Buffer
	users    user.Repository
	students student.Repository
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	conf := testutil.NewConfig()
	conf.ImageHost.MediaDir = t.TempDir()
	clock := clockwork.NewFakeClockAt(testutil.Now)
	validate, translator := testutil.NewValidator()
	logger := testutil.NopLogger{}

	db := inmemdb.Open()
	users := inmemdb.NewUserRepository(db)
	students := inmemdb.NewStudentRepository(db)
	images, err := imagehostsvc.NewLocalHost(conf.ImageHost)
	require.NoError(t, err)
	usrSvc := user.NewService(users, emailsvc.NewConsoleServiceMock(conf, logger), conf, clock)

	out := new(bytes.Buffer)
	return &testEnv{
		cli: &commandLine{
			usrRepo:    users,
			usrSvc:     usrSvc,
			studentSvc: student.NewService(students, usrSvc, images, logger, clock),
			validate:   validate,
			translator: translator,
			clock:      clock,
			out:        out,
		},
		out:      out,
		users:    users,
		students: students,
	}
}

// withPassword makes the password prompt answer `pwd`.
func withPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	password   string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) run(t *testing.T, cli *commandLine) {
	t.Helper()
	withPassword(t, tt.password)
	err := cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), tt.wantErrStr)
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	env := setup(t)
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, env.cli)
		})
	}
	assert.Contains(t, env.out.String(), "importstudents -file")
}

func Test_commandLine_migrate(t *testing.T) {
	env := setup(t)

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	gooseRunFunc = func(command string, _ *sqlx.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "guardians", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, env.cli)
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no name", args: []string{"adduser", "-username", "lina"}, password: strongPassword, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "lina", "-name", "Lina Teacher"}, wantErr: errHelp},
		{name: "weak password", args: []string{"adduser", "-username", "lina", "-name", "Lina Teacher"}, password: "password", wantErrStr: "password"},
		{name: "invalid class", args: []string{"adduser", "-username", "lina", "-name", "Lina Teacher", "-class", "Grade 5"}, password: strongPassword, wantErrStr: "must be one of"},
		{name: "teacher", args: []string{"adduser", "-username", "Lina", "-email", "lina@preschool.test", "-name", "Lina Teacher", "-class", "LKG", "-class", "UKG"}, password: strongPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, env.cli)
		})
	}

	lina, err := env.users.GetUser(ctx, user.GetFilter{Username: "lina"})
	require.NoError(t, err)
	assert.Equal(t, "Lina Teacher", lina.Name)
	assert.Equal(t, []string{user.RoleTeacher}, lina.Roles)
	assert.Equal(t, []string{core.ClassLKG, core.ClassUKG}, lina.Classes)
	assert.True(t, lina.Active())
	assert.NoError(t, lina.CheckPassword(strongPassword))

	t.Run("promote by email", func(t *testing.T) {
		cliTest{args: []string{"adduser", "-email", "LINA@preschool.test", "-name", "Lina Principal", "-admin"}, password: "Wn4$hXo8pQ"}.run(t, env.cli)

		usr, err := env.users.GetUser(ctx, user.GetFilter{Email: "lina@preschool.test"})
		require.NoError(t, err)
		assert.Equal(t, lina.ID, usr.ID, "existing users are updated")
		assert.Equal(t, "lina", usr.Username)
		assert.Equal(t, "Lina Principal", usr.Name)
		assert.Equal(t, user.AllRoles, usr.Roles)
		assert.Equal(t, lina.Classes, usr.Classes, "classes are kept when none are given")
		assert.NoError(t, usr.CheckPassword("Wn4$hXo8pQ"))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateTeacher(t, env.users, "Omar Teacher", "omar", core.ClassLKG)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "omar"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, password: strongPassword, wantErr: user.ErrNotFound},
		{name: "too short", args: []string{"resetpassword", "-username", "omar"}, password: "Ab1!", wantErrStr: "at least 8 characters"},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, password: strongPassword},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, password: "Wn4$hXo8pQ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, env.cli)
		})
	}

	refreshed, err := env.users.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("Wn4$hXo8pQ"))
}

// writeRoster saves `rows` to the first sheet of a new workbook.
func writeRoster(t *testing.T, rows ...[]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func Test_commandLine_importStudents(t *testing.T) {
	ctx := context.Background()
	header := []interface{}{"Name", "Age", "Learning ability", "Writing speed", "Guardian name", "Guardian phone", "Support notes"}
	roster := writeRoster(t,
		header,
		[]interface{}{"Asha", 4, "Good", "Fast", "Meera", "+91 98765 43210"},
		[]interface{}{"Bad Age", "four", "good", "slow"},
		[]interface{}{" "},
		[]interface{}{"Chen", "5", "Needs support", "Slow", "", "", "Short sessions with picture cards"},
		[]interface{}{"Too Old", 9, "average", "moderate"},
		[]interface{}{"Eve", 5, "needs support", "slow"},
		[]interface{}{"Fay", 4, "good"},
	)

	t.Run("args", func(t *testing.T) {
		env := setup(t)
		tests := []cliTest{
			{name: "no args", args: []string{"importstudents"}, wantErr: errHelp},
			{name: "no class", args: []string{"importstudents", "-file", roster}, wantErr: errHelp},
			{name: "invalid class", args: []string{"importstudents", "-file", roster, "-class", "Grade 5"}, wantErrStr: "invalid class"},
			{name: "unknown teacher", args: []string{"importstudents", "-file", roster, "-class", "LKG", "-teacher", "nobody"}, wantErrStr: "finding teacher"},
			{name: "missing file", args: []string{"importstudents", "-file", filepath.Join(t.TempDir(), "nope.xlsx"), "-class", "LKG"}, wantErrStr: "opening roster"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.run(t, env.cli)
			})
		}
	})

	t.Run("import", func(t *testing.T) {
		env := setup(t)
		lina := testutil.CreateTeacher(t, env.users, "Lina Teacher", "lina", core.ClassLKG)

		cliTest{
			args:       []string{"importstudents", "-file", roster, "-class", "LKG", "-teacher", "lina"},
			wantErrStr: "4 row(s) could not be imported",
		}.run(t, env.cli)

		out := env.out.String()
		assert.Contains(t, out, "row 3: invalid age")
		assert.Contains(t, out, "row 6: invalid input: age")
		assert.Contains(t, out, "row 7: invalid input: support_notes")
		assert.Contains(t, out, "row 8: invalid input: writing_speed")
		assert.NotContains(t, out, "row 4", "blank rows are skipped")
		assert.Contains(t, out, "2 student(s) imported into LKG")

		imported, err := env.students.QueryStudents(ctx, &student.QueryFilter{Classes: []string{core.ClassLKG}}, nil)
		require.NoError(t, err)
		require.Len(t, imported, 2)
		byName := make(map[string]student.Student, len(imported))
		for _, st := range imported {
			byName[st.Name] = st
			assert.True(t, st.IsAssignedTo(lina.ID))
		}
		assert.Equal(t, 4, byName["Asha"].Age)
		assert.Equal(t, "good", byName["Asha"].LearningAbility)
		assert.Equal(t, "fast", byName["Asha"].WritingSpeed)
		assert.Equal(t, "+91 98765 43210", byName["Asha"].GuardianPhone)
		assert.Equal(t, "needs_support", byName["Chen"].LearningAbility)
		assert.Equal(t, "slow", byName["Chen"].WritingSpeed)
		assert.Equal(t, "Short sessions with picture cards", byName["Chen"].SupportNotes)
		assert.Empty(t, byName["Asha"].SupportNotes)
	})

	t.Run("teacher of another class", func(t *testing.T) {
		env := setup(t)
		testutil.CreateTeacher(t, env.users, "Uma Teacher", "uma", core.ClassUKG)

		cliTest{
			args:       []string{"importstudents", "-file", roster, "-class", "LKG", "-teacher", "uma"},
			wantErrStr: "6 row(s) could not be imported",
		}.run(t, env.cli)
		assert.Contains(t, env.out.String(), "row 2: invalid input: teacher_id")
		assert.Contains(t, env.out.String(), "0 student(s) imported")
	})
}
