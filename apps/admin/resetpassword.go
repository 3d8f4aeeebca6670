package main

import (
	"github.com/darasahq/darasa/core"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(core.CleanString(uname, true /* lower */))
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateUser(usr, nil)
	return err
}
