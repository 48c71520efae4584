package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jrsteele09/go-auth-client/autherror"
	"github.com/jrsteele09/go-auth-client/loginflow"
	"github.com/jrsteele09/go-auth-client/registration"
)

// view prints what changed between snapshots: step headings, new errors and
// new server messages. Pending snapshots are skipped.
type view struct {
	lock     sync.Mutex
	out      io.Writer
	step     string
	lastErr  *autherror.AuthError
	lastInfo string
}

func newView(out io.Writer) *view {
	return &view{out: out}
}

func (v *view) render(step string, pending bool, lastErr *autherror.AuthError, message string) {
	if pending {
		return
	}
	v.lock.Lock()
	defer v.lock.Unlock()

	if step != v.step {
		v.step = step
		fmt.Fprintln(v.out, headingColor.Sprint("== "+strings.ReplaceAll(step, "_", " ")+" =="))
	}
	if lastErr != nil && lastErr != v.lastErr {
		fmt.Fprintln(v.out, errorColor.Sprint("x "+lastErr.Message))
	}
	v.lastErr = lastErr
	if message != "" && message != v.lastInfo {
		fmt.Fprintln(v.out, infoColor.Sprint(message))
	}
	v.lastInfo = message
}

func (v *view) login(s loginflow.State) {
	v.render(s.Step.String(), s.IsPending, s.LastError, s.Message)
}

func (v *view) registration(s registration.State) {
	message := s.Message
	if s.Step == registration.StepUsername && s.UsernameCheck.Message != "" {
		message = s.UsernameCheck.Message
	}
	v.render(s.Step.String(), s.IsPending || s.UsernameCheck.Checking, s.LastError, message)
}
