// Package dbtest runs the same behaviour checks against every repository implementation.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/plan"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/student"
	"github.com/trezcool/preschool/core/user"
	"github.com/trezcool/preschool/testutil"
)

type Repos struct {
	Users    user.Repository
	Students student.Repository
	Progress progress.Repository
	Plans    plan.Repository
}

// NewReposFunc returns empty repositories.
type NewReposFunc func(t *testing.T) Repos

func RunRepositoryTests(t *testing.T, newRepos NewReposFunc) {
	t.Run("users", func(t *testing.T) { testUsers(t, newRepos(t)) })
	t.Run("user delete cascades", func(t *testing.T) { testUserDelete(t, newRepos(t)) })
	t.Run("students", func(t *testing.T) { testStudents(t, newRepos(t)) })
	t.Run("progress", func(t *testing.T) { testProgress(t, newRepos(t)) })
	t.Run("plans", func(t *testing.T) { testPlans(t, newRepos(t)) })
}

func ids[T any](records []T, id func(T) string) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, id(r))
	}
	return out
}

func userID(u user.User) string          { return u.ID }
func studentID(st student.Student) string { return st.ID }
func entryID(e progress.Entry) string     { return e.ID }
func planID(p plan.Plan) string           { return p.ID }

func testUsers(t *testing.T, repos Repos) {
	ctx := context.Background()
	repo := repos.Users

	admin := testutil.CreateAdmin(t, repo, "Priya Nair", "priya_n", user.RoleAdminPrincipal)
	asha := testutil.CreateUser(t, repo, "Asha Rao", "asha_r", "asha@school.test", "", []string{user.RoleTeacher},
		[]string{core.ClassLKG}, true, testutil.Now.Add(time.Hour))
	meera := testutil.CreateUser(t, repo, "Meera Iyer", "meera_i", "", "", []string{user.RoleTeacher},
		[]string{core.ClassNursery, core.ClassUKG}, false, testutil.Now.Add(2*time.Hour))

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrUsernameExists, errors.Cause(repo.CheckUsernameUniqueness(ctx, "asha_r", "")))
		assert.Equal(t, user.ErrEmailExists, errors.Cause(repo.CheckUsernameUniqueness(ctx, "", "asha@school.test")))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "asha_r", "asha@school.test", asha))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "new_one", "new@school.test"))

		_, err := repo.CreateUser(ctx, user.User{Name: "Dup", Username: "asha_r", CreatedAt: testutil.Now, UpdatedAt: testutil.Now})
		assert.Error(t, err)
	})

	t.Run("query", func(t *testing.T) {
		active := true
		tests := []struct {
			name   string
			filter *user.QueryFilter
			want   []string
		}{
			{name: "all, newest first", want: []string{meera.ID, asha.ID, admin.ID}},
			{name: "teachers", filter: &user.QueryFilter{Roles: user.TeacherRoles}, want: []string{meera.ID, asha.ID}},
			{name: "admins", filter: &user.QueryFilter{Roles: []string{user.RoleAdmin}}, want: []string{admin.ID}},
			{name: "search", filter: &user.QueryFilter{Search: "IYER"}, want: []string{meera.ID}},
			{name: "class", filter: &user.QueryFilter{Classes: []string{core.ClassUKG}}, want: []string{meera.ID}},
			{name: "active teachers", filter: &user.QueryFilter{Roles: user.TeacherRoles, IsActive: &active}, want: []string{asha.ID}},
			{name: "created from", filter: &user.QueryFilter{CreatedFrom: core.DateOf(testutil.Now), CreatedTo: core.DateOf(testutil.Now)}, want: []string{meera.ID, asha.ID, admin.ID}},
			{name: "created before", filter: &user.QueryFilter{CreatedTo: core.DateOf(testutil.Now).AddDays(-1)}, want: []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				users, err := repo.QueryUsers(ctx, tt.filter, nil)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(users, userID))
			})
		}

		users, err := repo.QueryUsers(ctx, nil, []core.DBOrdering{{Field: "name", Ascending: true}})
		require.NoError(t, err)
		assert.Equal(t, []string{asha.ID, meera.ID, admin.ID}, ids(users, userID))
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "asha@school.test"})
		require.NoError(t, err)
		assert.Equal(t, asha.ID, got.ID)
		assert.Equal(t, []string{core.ClassLKG}, got.Classes)
		assert.NoError(t, got.CheckPassword("Kd8#mPq2zL"))

		got, err = repo.GetUser(ctx, user.GetFilter{Username: "meera_i"})
		require.NoError(t, err)
		assert.False(t, got.Active())

		_, err = repo.GetUser(ctx, user.GetFilter{ID: "lol"})
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("update", func(t *testing.T) {
		asha.Phone = "+91 98450 12345"
		asha.Classes = []string{core.ClassLKG, core.ClassUKG}
		asha.LastLogin = testutil.Now.Add(3 * time.Hour)
		got, err := repo.UpdateUser(ctx, asha)
		require.NoError(t, err)
		assert.Equal(t, "+91 98450 12345", got.Phone)
		assert.Equal(t, []string{core.ClassLKG, core.ClassUKG}, got.Classes)
		assert.True(t, asha.LastLogin.Equal(got.LastLogin))

		meera.Username = "asha_r"
		_, err = repo.UpdateUser(ctx, meera)
		assert.Error(t, err)
	})

	t.Run("update or create", func(t *testing.T) {
		upd := user.User{Name: "Asha R.", Username: "asha_r", Roles: []string{user.RoleTeacher}, CreatedAt: testutil.Now, UpdatedAt: testutil.Now}
		require.NoError(t, upd.SetPassword("Kd8#mPq2zL"))
		got, err := repo.UpdateOrCreateUser(ctx, upd)
		require.NoError(t, err)
		assert.Equal(t, asha.ID, got.ID)
		assert.Equal(t, "Asha R.", got.Name)

		kavya := user.User{Name: "Kavya", Username: "kavya_s", CreatedAt: testutil.Now, UpdatedAt: testutil.Now}
		require.NoError(t, kavya.SetPassword("Kd8#mPq2zL"))
		created, err := repo.UpdateOrCreateUser(ctx, kavya)
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.NotEqual(t, asha.ID, created.ID)
	})
}

func testUserDelete(t *testing.T, repos Repos) {
	ctx := context.Background()
	asha := testutil.CreateTeacher(t, repos.Users, "Asha Rao", "asha_r", core.ClassLKG)
	ravi := testutil.CreateStudent(t, repos.Students, "Ravi Kumar", 4, core.ClassLKG, asha.ID)
	e := testutil.CreateEntry(t, repos.Progress, ravi.ID, core.DateOf(testutil.Now), 3, asha.ID)
	p := testutil.CreatePlan(t, repos.Plans, "Shapes", plan.TypeDaily, core.ClassLKG, core.DateOf(testutil.Now), core.DateOf(testutil.Now), asha.ID)

	n, err := repos.Users.DeleteUsersByID(ctx, asha.ID, "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, err := repos.Students.GetStudent(ctx, ravi.ID)
	require.NoError(t, err)
	assert.False(t, st.TeacherID.Valid)

	got, err := repos.Progress.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, got.RecordedBy.Valid)

	_, err = repos.Plans.GetPlan(ctx, p.ID)
	assert.Equal(t, plan.ErrNotFound, errors.Cause(err))
}

func testStudents(t *testing.T, repos Repos) {
	ctx := context.Background()
	repo := repos.Students
	asha := testutil.CreateTeacher(t, repos.Users, "Asha Rao", "asha_r", core.ClassLKG)

	ravi := testutil.CreateStudent(t, repo, "Ravi Kumar", 4, core.ClassLKG, asha.ID, func(st *student.Student) {
		st.GuardianName = "Suresh Kumar"
		st.LearningAbility = student.AbilityNeedsSupport
		st.SupportNotes = "Needs help with pencil grip"
	})
	anu := testutil.CreateStudent(t, repo, "Anu Shetty", 5, core.ClassLKG, "")
	zara := testutil.CreateStudent(t, repo, "Zara Khan", 3, core.ClassNursery, "")

	t.Run("unknown teacher", func(t *testing.T) {
		_, err := repo.CreateStudent(ctx, student.Student{
			Name: "Nobody", Age: 4, Class: core.ClassLKG, LearningAbility: student.AbilityGood,
			TeacherID: null.StringFrom("00000000-0000-0000-0000-000000000000"), CreatedAt: testutil.Now, UpdatedAt: testutil.Now,
		})
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("query", func(t *testing.T) {
		tests := []struct {
			name   string
			filter *student.QueryFilter
			want   []string
		}{
			{name: "all by name", want: []string{anu.ID, ravi.ID, zara.ID}},
			{name: "search guardian", filter: &student.QueryFilter{Search: "suresh"}, want: []string{ravi.ID}},
			{name: "search wildcard is literal", filter: &student.QueryFilter{Search: "%"}, want: []string{}},
			{name: "class", filter: &student.QueryFilter{Classes: []string{core.ClassNursery}}, want: []string{zara.ID}},
			{name: "teacher", filter: &student.QueryFilter{TeacherID: asha.ID}, want: []string{ravi.ID}},
			{name: "invalid teacher id", filter: &student.QueryFilter{TeacherID: "lol"}, want: []string{}},
			{name: "unassigned", filter: &student.QueryFilter{Unassigned: true, Classes: []string{core.ClassLKG}}, want: []string{anu.ID}},
			{name: "ability", filter: &student.QueryFilter{LearningAbilities: []string{student.AbilityNeedsSupport}}, want: []string{ravi.ID}},
			{name: "writing speed", filter: &student.QueryFilter{WritingSpeeds: []string{student.WritingModerate}}, want: []string{anu.ID, ravi.ID}},
			{name: "ids", filter: &student.QueryFilter{IDs: []string{zara.ID, "lol"}}, want: []string{zara.ID}},
			{name: "no ids", filter: &student.QueryFilter{IDs: []string{}}, want: []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				students, err := repo.QueryStudents(ctx, tt.filter, nil)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(students, studentID))
			})
		}

		students, err := repo.QueryStudents(ctx, nil, []core.DBOrdering{{Field: "age"}})
		require.NoError(t, err)
		assert.Equal(t, []string{anu.ID, ravi.ID, zara.ID}, ids(students, studentID))
	})

	t.Run("update", func(t *testing.T) {
		anu.PhotoURL = null.StringFrom("/media/anu.png")
		anu.UpdatedAt = testutil.Now.Add(time.Hour)
		got, err := repo.UpdateStudent(ctx, anu)
		require.NoError(t, err)
		assert.Equal(t, "/media/anu.png", got.PhotoURL.String)

		_, err = repo.UpdateStudent(ctx, student.Student{ID: "00000000-0000-0000-0000-000000000000"})
		assert.Equal(t, student.ErrNotFound, errors.Cause(err))
	})

	t.Run("set teacher", func(t *testing.T) {
		n, err := repo.SetTeacher(ctx, null.StringFrom(asha.ID), testutil.Now, anu.ID, "lol")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		students, err := repo.QueryStudents(ctx, &student.QueryFilter{TeacherID: asha.ID}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{anu.ID, ravi.ID}, ids(students, studentID))

		n, err = repo.SetTeacher(ctx, null.String{}, testutil.Now, anu.ID, ravi.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		students, err = repo.QueryStudents(ctx, &student.QueryFilter{Unassigned: true}, nil)
		require.NoError(t, err)
		assert.Len(t, students, 3)
	})

	t.Run("delete cascades", func(t *testing.T) {
		e := testutil.CreateEntry(t, repos.Progress, zara.ID, core.DateOf(testutil.Now), 3, "")
		n, err := repo.DeleteStudentsByID(ctx, zara.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = repo.GetStudent(ctx, zara.ID)
		assert.Equal(t, student.ErrNotFound, errors.Cause(err))
		_, err = repos.Progress.GetEntry(ctx, e.ID)
		assert.Equal(t, progress.ErrNotFound, errors.Cause(err))
	})
}

func testProgress(t *testing.T, repos Repos) {
	ctx := context.Background()
	repo := repos.Progress
	asha := testutil.CreateTeacher(t, repos.Users, "Asha Rao", "asha_r", core.ClassLKG)
	ravi := testutil.CreateStudent(t, repos.Students, "Ravi Kumar", 4, core.ClassLKG, asha.ID)
	zara := testutil.CreateStudent(t, repos.Students, "Zara Khan", 3, core.ClassNursery, "")

	day := func(d int) core.Date { return core.NewDate(2024, time.March, d) }
	e1 := testutil.CreateEntry(t, repo, ravi.ID, day(4), 2, asha.ID)
	e2 := testutil.CreateEntry(t, repo, ravi.ID, day(8), 4, asha.ID)
	e3 := testutil.CreateEntry(t, repo, zara.ID, day(6), 3, "")

	t.Run("one entry per student per day", func(t *testing.T) {
		_, err := repo.CreateEntry(ctx, progress.Entry{StudentID: ravi.ID, Date: day(4), CreatedAt: testutil.Now, UpdatedAt: testutil.Now,
			Ratings: progress.Ratings{Language: 1, Numeracy: 1, Motor: 1, Social: 1, Creativity: 1}})
		assert.Equal(t, progress.ErrEntryExists, errors.Cause(err))

		e2.Date = day(4)
		_, err = repo.UpdateEntry(ctx, e2)
		assert.Equal(t, progress.ErrEntryExists, errors.Cause(err))
		e2.Date = day(8)
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := repo.CreateEntry(ctx, progress.Entry{StudentID: "00000000-0000-0000-0000-000000000000", Date: day(4),
			CreatedAt: testutil.Now, UpdatedAt: testutil.Now, Ratings: progress.Ratings{Language: 1, Numeracy: 1, Motor: 1, Social: 1, Creativity: 1}})
		assert.Equal(t, student.ErrNotFound, errors.Cause(err))
	})

	t.Run("query", func(t *testing.T) {
		tests := []struct {
			name   string
			filter *progress.QueryFilter
			want   []string
		}{
			{name: "all, latest first", want: []string{e2.ID, e3.ID, e1.ID}},
			{name: "student", filter: &progress.QueryFilter{StudentIDs: []string{zara.ID}}, want: []string{e3.ID}},
			{name: "empty student list", filter: &progress.QueryFilter{StudentIDs: []string{}}, want: []string{e2.ID, e3.ID, e1.ID}},
			{name: "class", filter: &progress.QueryFilter{Classes: []string{core.ClassLKG}}, want: []string{e2.ID, e1.ID}},
			{name: "teacher", filter: &progress.QueryFilter{TeacherID: asha.ID}, want: []string{e2.ID, e1.ID}},
			{name: "period", filter: &progress.QueryFilter{DateFrom: day(5), DateTo: day(8)}, want: []string{e2.ID, e3.ID}},
			{name: "date to is inclusive", filter: &progress.QueryFilter{DateTo: day(6)}, want: []string{e3.ID, e1.ID}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				entries, err := repo.QueryEntries(ctx, tt.filter, nil)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(entries, entryID))
			})
		}

		entries, err := repo.QueryEntries(ctx, nil, []core.DBOrdering{{Field: "date", Ascending: true}})
		require.NoError(t, err)
		assert.Equal(t, []string{e1.ID, e3.ID, e2.ID}, ids(entries, entryID))
	})

	t.Run("update and delete", func(t *testing.T) {
		e1.Remarks = "Better at counting"
		e1.Numeracy = 5
		got, err := repo.UpdateEntry(ctx, e1)
		require.NoError(t, err)
		assert.Equal(t, "Better at counting", got.Remarks)
		assert.Equal(t, 5, got.Numeracy)
		assert.True(t, day(4).Equal(got.Date))

		n, err := repo.DeleteEntriesByID(ctx, e1.ID, e3.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		_, err = repo.GetEntry(ctx, e1.ID)
		assert.Equal(t, progress.ErrNotFound, errors.Cause(err))
	})
}

func testPlans(t *testing.T, repos Repos) {
	ctx := context.Background()
	repo := repos.Plans
	asha := testutil.CreateTeacher(t, repos.Users, "Asha Rao", "asha_r", core.ClassLKG)
	meera := testutil.CreateTeacher(t, repos.Users, "Meera Iyer", "meera_i", core.ClassNursery)

	day := func(d int) core.Date { return core.NewDate(2024, time.March, d) }
	daily := testutil.CreatePlan(t, repo, "Shapes day", plan.TypeDaily, core.ClassLKG, day(5), day(5), asha.ID)
	weekly := testutil.CreatePlan(t, repo, "Monsoon week", plan.TypeWeekly, core.ClassLKG, day(11), day(15), asha.ID)
	monthly := testutil.CreatePlan(t, repo, "Colours month", plan.TypeMonthly, core.ClassNursery, day(1), day(31), meera.ID)

	t.Run("unknown teacher", func(t *testing.T) {
		_, err := repo.CreatePlan(ctx, plan.Plan{Type: plan.TypeDaily, Class: core.ClassLKG, Title: "x", StartDate: day(1), EndDate: day(1),
			TeacherID: "00000000-0000-0000-0000-000000000000", CreatedAt: testutil.Now, UpdatedAt: testutil.Now})
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("query", func(t *testing.T) {
		tests := []struct {
			name   string
			filter *plan.QueryFilter
			want   []string
		}{
			{name: "all, latest start first", want: []string{weekly.ID, daily.ID, monthly.ID}},
			{name: "search", filter: &plan.QueryFilter{Search: "monsoon"}, want: []string{weekly.ID}},
			{name: "type", filter: &plan.QueryFilter{Types: []string{plan.TypeDaily, plan.TypeMonthly}}, want: []string{daily.ID, monthly.ID}},
			{name: "class", filter: &plan.QueryFilter{Classes: []string{core.ClassNursery}}, want: []string{monthly.ID}},
			{name: "teacher", filter: &plan.QueryFilter{TeacherID: asha.ID}, want: []string{weekly.ID, daily.ID}},
			{name: "overlapping period", filter: &plan.QueryFilter{DateFrom: day(6), DateTo: day(11)}, want: []string{weekly.ID, monthly.ID}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				plans, err := repo.QueryPlans(ctx, tt.filter, nil)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(plans, planID))
			})
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		weekly.Activities = []string{"Paper boats", "Rain songs"}
		weekly.Goals = []string{"Names 3 weather words"}
		got, err := repo.UpdatePlan(ctx, weekly)
		require.NoError(t, err)
		assert.Equal(t, []string{"Paper boats", "Rain songs"}, got.Activities)
		assert.Equal(t, []string{"Names 3 weather words"}, got.Goals)

		n, err := repo.DeletePlansByID(ctx, daily.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = repo.GetPlan(ctx, daily.ID)
		assert.Equal(t, plan.ErrNotFound, errors.Cause(err))
	})
}
