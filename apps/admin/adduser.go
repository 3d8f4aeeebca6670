package main

import (
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	lookup := uname
	if lookup == "" {
		lookup = email
	}
	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(lookup)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Username: uname,
			Email:    email,
		}
	}
	if isAdmin {
		usr.Roles = user.AllRoles
	}
	usr.IsActive = true
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateOrCreateUser(usr)
	return err
}
