package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quransn/academy/core/forum"
	"github.com/quransn/academy/core/notification"
	"github.com/quransn/academy/core/user"
	testutil "github.com/quransn/academy/tests"
)

var usrSvc *user.Service

func setup(t *testing.T, postgres bool) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv(t)
	logger = env.Logger
	usrSvc = user.NewService(env.DB, env.Validate, notification.NopNotifier{}, env.Mail, env.Conf)

	// start CLI
	return &commandLine{
		db:     env.DB,
		usrSvc: usrSvc,
		openSQL: func() (*sql.DB, error) {
			if !postgres {
				return nil, errNotPostgres
			}
			// lib/pq connects lazily
			return sql.Open("postgres", "postgres://academy@localhost/academy?sslmode=disable")
		},
	}, env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest, check func(t *testing.T, tt cliTest)) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if pwd, ok := tt.extra.(string); ok {
				return []byte(pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				require.NoError(t, err)
				if check != nil {
					check(t, tt)
				}
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t, true)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}, nil)

	t.Run("other engines", func(t *testing.T) {
		cli, _ := setup(t, false)
		assert.Equal(t, errNotPostgres, cli.run([]string{"admin", "migrate", "up"}))
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli, _ := setup(t, false)
	student := testutil.CreateUser(t, cli.db, "Moussa", "Tajwid-Lesson-9")

	check := func(t *testing.T, tt cliTest) {
		admins, err := usrSvc.Query(context.Background(), user.QueryFilter{Role: user.RoleAdmin})
		require.NoError(t, err)
		require.NotEmpty(t, admins)
	}
	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "help", args: []string{"adduser", "--help"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "--email", "oustaz@test.sn", "--first-name", "Oustaz"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "--lol"}, wantErrStr: "unknown flag: --lol"},
		{name: "new admin", args: []string{"adduser", "--email", "oustaz@test.sn", "--first-name", "Oustaz"}, extra: "Bismillah-2024"},
		{name: "promote a student", args: []string{"adduser", "--email", student.Email, "--first-name", "Moussa"}, extra: "Bismillah-2024"},
	}, check)

	promoted, err := usrSvc.GetByEmail(context.Background(), student.Email)
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, promoted.Role)
	assert.NoError(t, promoted.CheckPassword("Bismillah-2024"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t, false)
	usr := testutil.CreateUser(t, cli.db, "Awa", "Tajwid-Lesson-9")

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "--email", "lol@test.sn"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "--email", "lol@test.sn"}, extra: "lol", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "--email", usr.Email}, extra: "lmao"},
	}, nil)

	refreshed, err := usrSvc.GetByEmail(context.Background(), usr.Email)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("lmao"))
}

func Test_commandLine_seed(t *testing.T) {
	cli, env := setup(t, false)
	require.NoError(t, cli.run([]string{"admin", "seed"}))

	admin, err := usrSvc.GetByEmail(context.Background(), user.DefaultAdminEmail)
	require.NoError(t, err)
	posts, err := forum.NewService(env.DB, env.Validate, env.Conf).List(context.Background(), forum.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, admin.ID, posts[0].UserID)
}
