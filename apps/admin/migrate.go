package main

import (
	"github.com/darasahq/darasa/storage/database"
)

var gooseRunFunc = database.RunGoose // mockable

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(cli.db, args[0], arguments...)
}
