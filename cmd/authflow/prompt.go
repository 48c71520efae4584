package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

var (
	promptColor  = color.New(color.FgCyan, color.Bold)
	headingColor = color.New(color.FgMagenta, color.Bold)
	errorColor   = color.New(color.FgRed)
	infoColor    = color.New(color.FgBlue)
	successColor = color.New(color.FgGreen, color.Bold)
	mutedColor   = color.New(color.FgHiBlack)
)

// errInputClosed ends a command when stdin runs out mid-flow.
var errInputClosed = errors.New("input closed")

type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{scanner: bufio.NewScanner(in), out: out}
}

// ask prints label and returns the next trimmed input line.
func (p *prompter) ask(label string) (string, error) {
	fmt.Fprint(p.out, promptColor.Sprint(label+": "))
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", errInputClosed
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

func (p *prompter) confirm(label string) (bool, error) {
	answer, err := p.ask(label + " [y/N]")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}
