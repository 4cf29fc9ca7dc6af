package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/user"
)

var cliRoles = map[string][]string{
	"admin":   user.AdminRoles,
	"editor":  user.EditorRoles,
	"leader":  user.LeaderRoles,
	"learner": user.LearnerRoles,
}

// addUser updates or creates an active, confirmed user.User
func (cli *commandLine) addUser(name, email, role, pwd string) error {
	roles, ok := cliRoles[core.CleanString(role, true /* lower */)]
	if !ok {
		return fmt.Errorf("unknown role %q", role)
	}

	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	now := time.Now().UTC()

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	found := err == nil
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{Email: email, Type: user.TypeEmployee, CreatedAt: now}
	}
	usr.Name = core.CleanString(name)
	usr.Roles = roles
	usr.IsActive = true
	usr.EmailConfirmed = true
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	if found {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	return err
}
