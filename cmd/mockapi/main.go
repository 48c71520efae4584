package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/logging"
	"github.com/jrsteele09/go-auth-client/internal/mockapi"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/rs/zerolog/log"
)

const demoPassword = "Passw0rd!"

var demoUsers = []mockapi.UserSeed{
	{Username: "demo", Email: "demo@example.com", FirstName: "Demo", LastName: "User", DateOfBirth: "1990-01-01"},
	{Username: "demo-email", Email: "demo-email@example.com", FirstName: "Email", LastName: "User", DateOfBirth: "1990-01-01",
		TwoFactorMethods: []session.TwoFactorMethod{session.MethodEmail}},
	{Username: "demo-totp", Email: "demo-totp@example.com", FirstName: "Totp", LastName: "User", DateOfBirth: "1990-01-01",
		TwoFactorMethods: []session.TwoFactorMethod{session.MethodEmail, session.MethodTOTP}},
}

func main() {
	configPath := flag.String("config", os.Getenv("AUTHFLOW_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Error running mock api")
	}
	log.Info().Msg("Mock api stopped")
}

func run(configPath string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Setup(c, os.Stderr)
	displayAppname(c.GetAppName() + " API")

	api, err := mockapi.New(c)
	if err != nil {
		return err
	}
	if err := seedDemoUsers(api); err != nil {
		return err
	}

	server := &http.Server{Addr: c.GetMockListenAddr(), Handler: api, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(server)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

func seedDemoUsers(api *mockapi.Server) error {
	for _, seed := range demoUsers {
		seed.Password = demoPassword
		rec, err := api.AddUser(seed)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("  %-11s password %s", rec.Profile.Username, demoPassword)
		if rec.TOTPSecret != "" {
			line += "  totp secret " + color.New(color.FgYellow).Sprint(rec.TOTPSecret)
		}
		fmt.Println(line)
	}
	fmt.Println()
	return nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Mock api listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
