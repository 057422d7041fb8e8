package main

import (
	"github.com/pressly/goose/v3"

	"github.com/quransn/academy/storage/database/postgres"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	db, err := cli.openSQL()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(postgres.MigrationsFS)
	if err = goose.SetDialect("postgres"); err != nil {
		return err
	}
	return gooseRunFunc(args[0], db, postgres.MigrationsDir, args[1:]...)
}
