package main

import (
	"database/sql"
	"errors"
	"fmt"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNotPostgres = errors.New("migrations only apply to the postgres storage engine")
)

type commandLine struct {
	db      core.DB
	usrSvc  *user.Service
	openSQL func() (*sql.DB, error)
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -email EMAIL -first-name NAME [-last-name NAME] - create or promote an admin")
	fmt.Println("  resetpassword -email EMAIL - reset a user's password")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command on the postgres database")
	fmt.Println("  seed - create the default admin, library and forum when missing")
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := pflag.NewFlagSet("adduser", pflag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The admin's email. The password will be prompted next.")
	addUserFirstName := addUserCmd.String("first-name", "", "The admin's first name.")
	addUserLastName := addUserCmd.String("last-name", "", "The admin's last name.")

	resetPasswordCmd := pflag.NewFlagSet("resetpassword", pflag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	switch args[1] {
	case "adduser":
		if err := parse(addUserCmd, args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserFirstName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(user.NewAdmin{
			FirstName: *addUserFirstName,
			LastName:  *addUserLastName,
			Email:     *addUserEmail,
			Password:  pwd,
		})

	case "resetpassword":
		if err := parse(resetPasswordCmd, args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "seed":
		return cli.seed()

	default:
		cli.printUsage()
		return errHelp
	}
}
