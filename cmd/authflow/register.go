package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-client/registration"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/pkg/errors"
)

var errRegistrationCancelled = errors.New("registration cancelled")

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(a.out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var created *session.Session
	m, err := registration.New(a.api, a.store,
		registration.WithFlowConfig(a.cfg),
		registration.WithOnComplete(func(s session.Session) {
			created = &s
		}),
	)
	if err != nil {
		return err
	}
	v := newView(a.out)
	unsubscribe := m.Subscribe(v.registration)
	defer unsubscribe()

	usernames := m.UsernameDebouncer(ctx)
	defer usernames.Stop()

	state := m.State()
	v.registration(state)
	for state.Step != registration.StepComplete {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch state.Step {
		case registration.StepEmail:
			email, err := a.prompt.ask("Email")
			if err != nil {
				return err
			}
			state = m.SubmitEmail(ctx, email)

		case registration.StepVerification:
			answer, err := a.prompt.ask("Code from your email (r to resend, b to go back)")
			if err != nil {
				return err
			}
			switch answer {
			case "r":
				state = m.ResendVerificationCode(ctx)
			case "b":
				state = m.GoBack()
			default:
				state = m.SubmitVerificationCode(ctx, answer)
			}

		case registration.StepPersonalInfo:
			state, err = a.personalInfo(m)
			if err != nil {
				return err
			}

		case registration.StepUsername:
			answer, err := a.prompt.ask("Username (b to go back)")
			if err != nil {
				return err
			}
			if answer == "b" {
				state = m.GoBack()
				continue
			}
			usernames.Update(answer)
			usernames.Flush()
			state = m.ContinueFromUsername()

		case registration.StepPassword:
			password1, err := a.prompt.ask("Password")
			if err != nil {
				return err
			}
			password2, err := a.prompt.ask("Repeat password")
			if err != nil {
				return err
			}
			state = m.SubmitPassword(password1, password2)

		case registration.StepSummary:
			a.printSummary(state.Fields)
			ok, err := a.prompt.confirm("Create this account")
			if err != nil {
				return err
			}
			if !ok {
				return errRegistrationCancelled
			}
			state = m.ConfirmSummary(ctx)
		}
	}

	user := state.Session.User
	if created != nil {
		user = created.User
	}
	fmt.Fprintf(a.out, "Account created for %s\n", successColor.Sprint(user.Username))
	return nil
}

func (a *app) personalInfo(m *registration.Machine) (registration.State, error) {
	first, err := a.prompt.ask("First name (b to go back)")
	if err != nil {
		return registration.State{}, err
	}
	if first == "b" {
		return m.GoBack(), nil
	}
	last, err := a.prompt.ask("Last name")
	if err != nil {
		return registration.State{}, err
	}
	dobText, err := a.prompt.ask("Date of birth (YYYY-MM-DD)")
	if err != nil {
		return registration.State{}, err
	}
	dob, err := time.Parse(time.DateOnly, dobText)
	if err != nil {
		fmt.Fprintln(a.out, errorColor.Sprint("x Dates look like 1990-06-01."))
		return m.State(), nil
	}
	return m.SubmitPersonalInfo(first, last, dob), nil
}

func (a *app) printSummary(f registration.Fields) {
	rows := [][2]string{
		{"Email", f.Email},
		{"Name", f.FirstName + " " + f.LastName},
		{"Date of birth", f.DateOfBirth.Format(time.DateOnly)},
		{"Username", f.Username},
	}
	for _, row := range rows {
		fmt.Fprintf(a.out, "  %-14s %s\n", mutedColor.Sprint(row[0]), row[1])
	}
}
