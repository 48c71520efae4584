package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/logging"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const usageText = `Usage: authflow [--config file] [--no-banner] <command> [flags]

Commands:
  login     sign in, with a second factor when the account has one
  register  create an account
  logout    end the stored session
  whoami    show the account behind the stored session
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) int {
	fs := flag.NewFlagSet("authflow", flag.ContinueOnError)
	fs.SetOutput(stdout)
	fs.Usage = func() { fmt.Fprint(stdout, usageText) }
	configPath := fs.String("config", os.Getenv("AUTHFLOW_CONFIG"), "path to a YAML config file")
	noBanner := fs.Bool("no-banner", false, "skip the start-up banner")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stdout, errorColor.Sprint(err.Error()))
		return 1
	}
	logging.Setup(cfg, os.Stderr)

	a, err := newApp(ctx, cfg, stdin, stdout)
	if err != nil {
		fmt.Fprintln(stdout, errorColor.Sprint(err.Error()))
		return 1
	}
	defer a.close()

	if !*noBanner {
		displayAppname(stdout, cfg.GetAppName())
	}

	command, rest := fs.Arg(0), fs.Args()[1:]
	switch command {
	case "login":
		err = a.login(ctx, rest)
	case "register":
		err = a.register(ctx, rest)
	case "logout":
		err = a.logout(ctx)
	case "whoami":
		err = a.whoami(ctx)
	default:
		fmt.Fprintf(stdout, "unknown command %q\n\n", command)
		fs.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintln(stdout, errorColor.Sprint(err.Error()))
		return 1
	}
	return 0
}

// app holds the collaborators every command shares.
type app struct {
	cfg      config.Config
	api      apiclient.Sender
	store    credentials.Store
	deviceID string
	prompt   *prompter
	out      io.Writer
}

func newApp(ctx context.Context, cfg config.Config, stdin io.Reader, stdout io.Writer) (*app, error) {
	store, err := credentials.NewFromConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open credential store")
	}

	deviceID, err := credentials.DeviceID(filepath.Join(filepath.Dir(cfg.GetStorePath()), "device-id"))
	if err != nil {
		log.Warn().Err(err).Msg("device id unavailable, remember-device will not persist")
	}

	api, err := apiclient.NewClient(cfg, apiclient.WithTokenSource(credentials.NewTokenSource(ctx, store)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create api client")
	}

	return &app{
		cfg:      cfg,
		api:      api,
		store:    store,
		deviceID: deviceID,
		prompt:   newPrompter(stdin, stdout),
		out:      stdout,
	}, nil
}

func (a *app) close() {
	if c, ok := a.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close credential store")
		}
	}
}

func displayAppname(out io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(out, myFigure.String())
}
