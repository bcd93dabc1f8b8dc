package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/preschool/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	LoadCommonPasswords(nopLogger{})
	return validate
}

func fieldErrors(err error) map[string]string {
	errs := make(map[string]string)
	if vErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range vErrs {
			errs[e.Field()] = e.Tag()
		}
	}
	return errs
}

func TestNewUserValidation(t *testing.T) {
	validate := newValidator()
	valid := func() NewUser {
		return NewUser{
			Name:            "Asha Rao",
			Username:        "asha_r",
			Email:           "asha@school.test",
			Password:        "Kd8#mPq2zL",
			PasswordConfirm: "Kd8#mPq2zL",
			Roles:           []string{RoleTeacher},
			Classes:         []string{core.ClassLKG},
		}
	}

	tests := []struct {
		name    string
		mutate  func(nu *NewUser)
		wantErr map[string]string
	}{
		{name: "valid", mutate: func(nu *NewUser) {}},
		{name: "name required", mutate: func(nu *NewUser) { nu.Name = "" }, wantErr: map[string]string{"name": "required"}},
		{
			name:    "username or email required",
			mutate:  func(nu *NewUser) { nu.Username, nu.Email = "", "" },
			wantErr: map[string]string{"username": usernameOrEmailTag, "email": usernameOrEmailTag},
		},
		{name: "email only", mutate: func(nu *NewUser) { nu.Username = "" }},
		{name: "invalid email", mutate: func(nu *NewUser) { nu.Email = "lol" }, wantErr: map[string]string{"email": "email"}},
		{name: "invalid username", mutate: func(nu *NewUser) { nu.Username = "a-b c" }, wantErr: map[string]string{"username": alphaNumUnder}},
		{name: "invalid roles", mutate: func(nu *NewUser) { nu.Roles = []string{"student:"} }, wantErr: map[string]string{"roles": allRolesTag}},
		{name: "invalid class", mutate: func(nu *NewUser) { nu.Classes = []string{"Grade 1"} }, wantErr: map[string]string{"classes[0]": "schoolclass"}},
		{
			name:    "passwords mismatch",
			mutate:  func(nu *NewUser) { nu.PasswordConfirm = "lol" },
			wantErr: map[string]string{"password_confirm": "eqfield"},
		},
		{name: "password too short", mutate: setPwd("Ab1#"), wantErr: map[string]string{"password": pwdMinLenTag}},
		{name: "password with space", mutate: setPwd("Ab1# long pwd"), wantErr: map[string]string{"password": pwdNoSpaceTag}},
		{name: "password all numeric", mutate: setPwd("1234567890"), wantErr: map[string]string{"password": pwdNotAllNumTag}},
		{name: "password too simple", mutate: setPwd("abcdefgh12"), wantErr: map[string]string{"password": pwdComplexityTag}},
		{name: "password similar to username", mutate: setPwd("Asha_r#1"), wantErr: map[string]string{"password": pwdAttrSimTag}},
		{name: "password too common", mutate: setPwd("Welcome@123"), wantErr: map[string]string{"password": pwdNoCommonTag}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := valid()
			tt.mutate(&nu)
			err := validate.Struct(nu)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantErr, fieldErrors(err))
		})
	}
}

const alphaNumUnder = "alphanum_"

func setPwd(pwd string) func(nu *NewUser) {
	return func(nu *NewUser) {
		nu.Password = pwd
		nu.PasswordConfirm = pwd
	}
}

func TestUpdateUserValidation(t *testing.T) {
	validate := newValidator()

	tests := []struct {
		name    string
		uu      UpdateUser
		wantErr map[string]string
	}{
		{name: "empty", uu: UpdateUser{}},
		{name: "confirm required with password", uu: UpdateUser{Password: "Kd8#mPq2zL"}, wantErr: map[string]string{"password_confirm": "required_with"}},
		{name: "weak password", uu: UpdateUser{Password: "lol", PasswordConfirm: "lol"}, wantErr: map[string]string{"password": pwdMinLenTag}},
		{name: "valid password", uu: UpdateUser{Password: "Kd8#mPq2zL", PasswordConfirm: "Kd8#mPq2zL"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.uu)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantErr, fieldErrors(err))
		})
	}
}

func TestRolePriority(t *testing.T) {
	assert.Equal(t, 30, MaxRolePriority([]string{RoleTeacher, RoleAdminOwner}))
	assert.Equal(t, 11, MaxRolePriority(TeacherRoles))
	assert.Equal(t, 0, MaxRolePriority(nil))
	assert.Equal(t, 0, RolePriority("lol"))

	usr := User{Roles: []string{RoleAdminPrincipal}}
	assert.True(t, usr.IsAdmin())
	assert.False(t, usr.IsTeacher())
	assert.True(t, usr.Active())

	teacher := User{Roles: []string{RoleTeacher}, Classes: []string{core.ClassUKG}}
	teacher.SetActive(false)
	assert.True(t, teacher.IsTeacher())
	assert.False(t, teacher.Active())
	assert.True(t, teacher.TeachesClass(core.ClassUKG))
	assert.False(t, teacher.TeachesClass(core.ClassNursery))
}
