package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/loginflow"
	"github.com/pkg/errors"
)

func (a *app) logout(ctx context.Context) error {
	m, err := a.newLoginMachine()
	if err != nil {
		return err
	}
	if _, err := a.store.LoadAccess(ctx); errors.Is(err, credentials.ErrNoToken) {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}
	m.Logout(ctx)
	fmt.Fprintln(a.out, successColor.Sprint("Signed out"))
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	m, err := a.newLoginMachine()
	if err != nil {
		return err
	}
	state := m.Restore(ctx)
	if state.LastError != nil {
		return state.LastError
	}
	if state.Step != loginflow.StepComplete {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}

	user := utils.Value(state.Session).User
	fmt.Fprintf(a.out, "%s (%s)\n", successColor.Sprint(user.Username), user.Email)
	fmt.Fprintf(a.out, "  %-12s %s\n", mutedColor.Sprint("Name"), user.FullName())
	fmt.Fprintf(a.out, "  %-12s %t\n", mutedColor.Sprint("2FA"), user.TwoFactorEnabled)
	if access, err := a.store.LoadAccess(ctx); err == nil {
		if exp, ok := credentials.ExpiresAt(access); ok {
			fmt.Fprintf(a.out, "  %-12s %s\n", mutedColor.Sprint("Token expiry"), exp.Local().Format(time.RFC1123))
		}
	}
	return nil
}
