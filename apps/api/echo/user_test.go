package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/preschool/apps/api/echo"
	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/user"
	"github.com/trezcool/preschool/testutil"
)

func TestHome(t *testing.T) {
	env := setup(t)

	rec := env.run(t, httpTest{method: http.MethodGet, path: "/", wantCode: http.StatusOK})
	assert.Contains(t, rec.Body.String(), "Preschool")

	rec = env.run(t, httpTest{method: http.MethodGet, path: "/health", wantCode: http.StatusOK})
	var health map[string]string
	decode(t, rec, &health)
	assert.Equal(t, map[string]string{"status": "ok", "build": "test", "env": "TEST"}, health)
}

func TestUserApi_login(t *testing.T) {
	env := setup(t)
	teacher := testutil.CreateTeacher(t, env.users, "Lina Teacher", "lina", core.ClassLKG)
	testutil.CreateUser(t, env.users, "Gone", "gone", "gone@preschool.test", "", []string{user.RoleTeacher}, nil, false)

	tests := []struct {
		name     string
		body     echoapi.LoginRequest
		wantCode int
	}{
		{name: "missing fields", body: echoapi.LoginRequest{}, wantCode: http.StatusBadRequest},
		{name: "unknown user", body: echoapi.LoginRequest{Username: "nobody", Password: "Kd8#mPq2zL"}, wantCode: http.StatusBadRequest},
		{name: "wrong password", body: echoapi.LoginRequest{Username: "lina", Password: "wrong"}, wantCode: http.StatusBadRequest},
		{name: "deactivated", body: echoapi.LoginRequest{Username: "gone", Password: "Kd8#mPq2zL"}, wantCode: http.StatusForbidden},
		{name: "by username", body: echoapi.LoginRequest{Username: " LINA ", Password: "Kd8#mPq2zL"}, wantCode: http.StatusOK},
		{name: "by email", body: echoapi.LoginRequest{Username: "lina@preschool.test", Password: "Kd8#mPq2zL"}, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.run(t, httpTest{method: http.MethodPost, path: "/api/users/login", body: tt.body, wantCode: tt.wantCode})
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp echoapi.LoginResponse
			decode(t, rec, &resp)
			require.NotEmpty(t, resp.Token)

			// the token authenticates the teacher
			rec = env.run(t, httpTest{method: http.MethodGet, path: "/api/users/me", token: resp.Token, wantCode: http.StatusOK})
			var me user.User
			decode(t, rec, &me)
			assert.Equal(t, teacher.ID, me.ID)
			assert.False(t, me.LastLogin.IsZero(), "last login is set")
		})
	}
}

func TestUserApi_authentication(t *testing.T) {
	env := setup(t)
	teacher := testutil.CreateTeacher(t, env.users, "Lina Teacher", "lina", core.ClassLKG)
	token := env.token(t, teacher)

	env.run(t, httpTest{method: http.MethodGet, path: "/api/users/me", wantCode: http.StatusUnauthorized})
	env.run(t, httpTest{method: http.MethodGet, path: "/api/users/me", token: "not-a-jwt", wantCode: http.StatusUnauthorized})

	// tokens of deleted users are rejected
	_, err := env.users.DeleteUsersByID(context.Background(), teacher.ID)
	require.NoError(t, err)
	env.run(t, httpTest{method: http.MethodGet, path: "/api/users/me", token: token, wantCode: http.StatusUnauthorized})
}

func TestUserApi_refreshToken(t *testing.T) {
	env := setup(t)
	teacher := testutil.CreateTeacher(t, env.users, "Lina Teacher", "lina", core.ClassLKG)

	rec := env.run(t, httpTest{
		method:   http.MethodPost,
		path:     "/api/users/token-refresh",
		token:    env.token(t, teacher),
		wantCode: http.StatusOK,
	})
	var resp echoapi.LoginResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
}

func TestUserApi_updateMe(t *testing.T) {
	env := setup(t)
	teacher := testutil.CreateTeacher(t, env.users, "Lina Teacher", "lina", core.ClassLKG)
	token := env.token(t, teacher)

	phone := "+91 98765 43210"
	rec := env.run(t, httpTest{
		method:   http.MethodPut,
		path:     "/api/users/me",
		token:    token,
		body:     map[string]interface{}{"name": "Lina K", "phone": phone, "roles": []string{user.RoleAdmin}},
		wantCode: http.StatusOK,
	})
	var me user.User
	decode(t, rec, &me)
	assert.Equal(t, "Lina K", me.Name)
	assert.Equal(t, phone, me.Phone)
	assert.Equal(t, []string{user.RoleTeacher}, me.Roles, "roles cannot be changed through the profile")

	rec = env.run(t, httpTest{
		method:   http.MethodPut,
		path:     "/api/users/me",
		token:    token,
		body:     echoapi.UpdateProfile{Password: "Zq7!rTy5vW", PasswordConfirm: "different"},
		wantCode: http.StatusBadRequest,
	})
	assert.Contains(t, fieldErrors(t, rec), "password_confirm")
}

func TestUserApi_passwordReset(t *testing.T) {
	env := setup(t)
	testutil.CreateTeacher(t, env.users, "Lina Teacher", "lina", core.ClassLKG)

	for _, email := range []string{"lina@preschool.test", "unknown@preschool.test"} {
		env.run(t, httpTest{
			method:   http.MethodPost,
			path:     "/api/users/password-reset",
			body:     echoapi.PasswordResetRequest{Email: email},
			wantCode: http.StatusOK,
		})
	}
	sent := env.mail.SentMessages()
	require.Len(t, sent, 1, "only known addresses receive a reset link")
	assert.Equal(t, "lina@preschool.test", sent[0].To[0].Address)

	env.run(t, httpTest{
		method:   http.MethodPost,
		path:     "/api/users/password-reset-confirm",
		body:     user.ResetUserPassword{Token: "bad", UID: "bad", Password: "Zq7!rTy5vW", PasswordConfirm: "Zq7!rTy5vW"},
		wantCode: http.StatusBadRequest,
	})
}

func TestUserApi_admin(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateAdmin(t, env.users, "Grace Admin", "grace")
	teacher := testutil.CreateTeacher(t, env.users, "Lina Teacher", "lina", core.ClassLKG)
	owner := testutil.CreateAdmin(t, env.users, "Olga Owner", "olga", user.RoleAdminOwner)
	adminToken := env.token(t, admin)
	teacherToken := env.token(t, teacher)

	tests := []httpTest{
		{name: "teacher cannot list users", method: http.MethodGet, path: "/api/users", token: teacherToken, wantCode: http.StatusForbidden},
		{name: "teacher cannot list roles", method: http.MethodGet, path: "/api/users/roles", token: teacherToken, wantCode: http.StatusForbidden},
		{name: "admin lists users", method: http.MethodGet, path: "/api/users", token: adminToken, wantCode: http.StatusOK},
		{name: "admin lists roles", method: http.MethodGet, path: "/api/users/roles", token: adminToken, wantCode: http.StatusOK},
		{name: "admin gets user", method: http.MethodGet, path: "/api/users/" + teacher.ID, token: adminToken, wantCode: http.StatusOK},
		{name: "unknown user", method: http.MethodGet, path: "/api/users/" + uuid.NewString(), token: adminToken, wantCode: http.StatusNotFound},
		{name: "admin cannot delete themselves", method: http.MethodDelete, path: "/api/users/" + admin.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "admin cannot edit a higher admin", method: http.MethodPut, path: "/api/users/" + owner.ID, body: map[string]string{"name": "Olga"}, token: adminToken, wantCode: http.StatusForbidden},
		{name: "admin cannot delete a higher admin", method: http.MethodDelete, path: "/api/users/" + owner.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "admin cannot bulk delete a higher admin", method: http.MethodDelete, path: "/api/users?id=" + teacher.ID + "&id=" + owner.ID, token: adminToken, wantCode: http.StatusForbidden},
		{
			name:     "admin cannot grant roles above their own",
			method:   http.MethodPost,
			path:     "/api/users/register",
			body:     newUserBody("Root", "rooted", user.RoleAdminPrincipal),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "admin registers an admin",
			method:   http.MethodPost,
			path:     "/api/users/register",
			body:     newUserBody("Second Admin", "second", user.RoleAdmin),
			token:    adminToken,
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.run(t, tt)
		})
	}

	_, err := env.users.GetUser(context.Background(), user.GetFilter{ID: owner.ID})
	require.NoError(t, err, "the owner survives")
	env.run(t, httpTest{method: http.MethodGet, path: "/api/users/" + teacher.ID, token: adminToken, wantCode: http.StatusOK})

	env.run(t, httpTest{method: http.MethodDelete, path: "/api/users/" + teacher.ID, token: adminToken, wantCode: http.StatusNoContent})
	env.run(t, httpTest{method: http.MethodGet, path: "/api/users/" + teacher.ID, token: adminToken, wantCode: http.StatusNotFound})
}

func newUserBody(name, uname string, roles ...string) user.NewUser {
	return user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           uname + "@preschool.test",
		Password:        "Zq7!rTy5vW",
		PasswordConfirm: "Zq7!rTy5vW",
		Roles:           roles,
	}
}
