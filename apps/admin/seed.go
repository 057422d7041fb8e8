package main

import (
	"context"

	"github.com/quransn/academy/apps/api/di"
)

func (cli *commandLine) seed() error {
	return di.Seed(context.Background(), cli.db, cli.usrSvc, logger)
}
