package main

import (
	"context"
	"fmt"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/user"
)

type newUserArgs struct {
	name, username, email, password string
	isAdmin                         bool
	classes                         []string
}

// addUser updates or creates a user.User. Users without -admin are teachers.
func (cli *commandLine) addUser(args newUserArgs) error {
	ctx := context.Background()
	nu := user.NewUser{
		Name:            core.CleanString(args.name),
		Username:        core.CleanString(args.username, true /* lower */),
		Email:           core.CleanString(args.email, true /* lower */),
		Password:        args.password,
		PasswordConfirm: args.password,
		Roles:           []string{user.RoleTeacher},
		Classes:         core.CleanStrings(args.classes),
	}
	if args.isAdmin {
		nu.Roles = user.AllRoles
	}
	if err := cli.validate.Struct(nu); err != nil {
		return cli.invalid(err)
	}

	usr, err := cli.findUser(ctx, nu.Username, nu.Email)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{CreatedAt: cli.clock.Now().UTC()}
	}
	usr.Name = nu.Name
	if nu.Username != "" {
		usr.Username = nu.Username
	}
	if nu.Email != "" {
		usr.Email = nu.Email
	}
	usr.Roles = nu.Roles
	if len(nu.Classes) > 0 {
		usr.Classes = nu.Classes
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return err
	}
	usr.UpdatedAt = cli.clock.Now().UTC()
	if usr, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %s saved (%s)\n", usr.Login(), usr.ID)
	return nil
}

// findUser looks a user up by username first, then by email.
func (cli *commandLine) findUser(ctx context.Context, uname, email string) (user.User, error) {
	for _, login := range []string{uname, email} {
		if login == "" {
			continue
		}
		usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, login)
		if err != user.ErrNotFound {
			return usr, err
		}
	}
	return user.User{}, user.ErrNotFound
}
