package main

import (
	"database/sql"
	"os"

	"github.com/quransn/academy/apps/api/di"
	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/notification"
	"github.com/quransn/academy/core/user"
	emailsvc "github.com/quransn/academy/services/email"
	"github.com/quransn/academy/storage/database"
	"github.com/quransn/academy/storage/database/postgres"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	conf.Jobs.Enabled = false
	logger = di.NewLogger("ADMIN : ", conf)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:     db,
		usrSvc: user.NewService(db, validate, notification.NopNotifier{}, emailsvc.NewService(conf, logger), conf),
		openSQL: func() (*sql.DB, error) {
			if conf.Storage.Engine != database.EnginePostgres {
				return nil, errNotPostgres
			}
			return postgres.OpenSQL(conf)
		},
	}
	if err := cli.run(os.Args); err != nil {
		_ = db.Close()
		if err != errHelp {
			logger.Error("admin command failed: "+err.Error(), err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
