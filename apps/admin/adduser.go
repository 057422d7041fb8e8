package main

import (
	"context"
	"fmt"

	"github.com/quransn/academy/core/user"
)

// addUser creates an admin, or promotes the account already using that email.
func (cli *commandLine) addUser(na user.NewAdmin) error {
	usr, err := cli.usrSvc.CreateAdmin(context.Background(), na)
	if err != nil {
		return err
	}
	fmt.Printf("admin %s (%s) saved\n", usr.FullName(), usr.Email)
	return nil
}
