package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-client/loginflow"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/pkg/errors"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog/log"
)

func (a *app) newLoginMachine() (*loginflow.Machine, error) {
	options := []loginflow.Option{loginflow.WithCodeLength(a.cfg.GetCodeLength())}
	if a.deviceID != "" {
		options = append(options, loginflow.WithDeviceID(a.deviceID))
	}
	return loginflow.New(a.api, a.store, options...)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	identifier := fs.String("identifier", "", "username or email; prompted when empty")
	remember := fs.Bool("remember", false, "skip the second factor on this device next time")
	totpSecret := fs.String("totp-secret", "", "base32 authenticator secret used to generate TOTP codes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := a.newLoginMachine()
	if err != nil {
		return err
	}
	v := newView(a.out)
	unsubscribe := m.Subscribe(v.login)
	defer unsubscribe()

	state := m.Restore(ctx)
	if state.Step == loginflow.StepComplete {
		fmt.Fprintf(a.out, "Already signed in as %s\n", successColor.Sprint(state.Session.User.Username))
		return nil
	}

	totpUsed := false
	for state.Step != loginflow.StepComplete {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch state.Step {
		case loginflow.StepCredentials:
			id := *identifier
			if id == "" || state.LastError != nil {
				if id, err = a.prompt.ask("Username or email"); err != nil {
					return err
				}
			}
			password, err := a.prompt.ask("Password")
			if err != nil {
				return err
			}
			state = m.SubmitCredentials(ctx, id, password, *remember)

		case loginflow.StepChoose2FA:
			for i, method := range state.AvailableMethods {
				fmt.Fprintf(a.out, "  %d) %s\n", i+1, methodLabel(method))
			}
			answer, err := a.prompt.ask("Verification method (b to go back)")
			if err != nil {
				return err
			}
			if answer == "b" {
				state = m.GoBack()
				continue
			}
			state = m.ChooseMethod(ctx, pickMethod(answer, state.AvailableMethods))

		case loginflow.StepEmail2FA, loginflow.StepTOTP2FA:
			if state.Step == loginflow.StepTOTP2FA && *totpSecret != "" && !totpUsed {
				totpUsed = true
				code, err := totp.GenerateCode(*totpSecret, time.Now())
				if err != nil {
					return errors.Wrap(err, "failed to generate authenticator code")
				}
				fmt.Fprintln(a.out, mutedColor.Sprint("Using generated authenticator code"))
				state = m.SubmitTwoFactorCode(ctx, code)
				continue
			}
			answer, err := a.prompt.ask(fmt.Sprintf("%s code (r to resend, b to go back)", methodLabel(state.ChosenMethod)))
			if err != nil {
				return err
			}
			switch answer {
			case "r":
				state = m.ResendCode(ctx)
			case "b":
				state = m.GoBack()
			default:
				state = m.SubmitTwoFactorCode(ctx, answer)
			}
		}
	}

	log.Debug().Int64("userID", state.Session.User.ID).Msg("signed in")
	fmt.Fprintf(a.out, "Welcome, %s\n", successColor.Sprint(state.Session.User.FullName()))
	return nil
}

// pickMethod accepts a menu number or a method name.
func pickMethod(answer string, methods []session.TwoFactorMethod) session.TwoFactorMethod {
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(methods) {
		return methods[n-1]
	}
	return session.TwoFactorMethod(strings.ToLower(answer))
}

func methodLabel(m session.TwoFactorMethod) string {
	switch m {
	case session.MethodEmail:
		return "Email"
	case session.MethodTOTP:
		return "Authenticator app"
	}
	return string(m)
}
