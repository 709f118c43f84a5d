package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gobarber/gobarber/internal/config"
	"github.com/gobarber/gobarber/internal/domain/github"
	"github.com/gobarber/gobarber/internal/domain/session"
	"github.com/gobarber/gobarber/internal/platform/apiclient"
	"github.com/gobarber/gobarber/internal/platform/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "gobarber",
		Short:        "GoBarber appointment client",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().Bool("ephemeral", false, "Keep session and saved repositories in memory only")

	rootCmd.AddCommand(signinCmd())
	rootCmd.AddCommand(signupCmd())
	rootCmd.AddCommand(signoutCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(reposCmd())
	return rootCmd
}

// app is what every command needs, built once per invocation.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	loc     *time.Location
	store   storage.Storage
	api     *apiclient.Client
	session *session.Manager

	in  io.Reader
	out io.Writer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Logs go to stderr; stdout is for screens.
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	logger = logger.Level(cfg.Level())

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	var store storage.Storage = storage.NewFileStorage(cfg.StoragePath)
	if ephemeral, _ := cmd.Flags().GetBool("ephemeral"); ephemeral {
		store = storage.NewMemoryStorage()
	}

	api, err := apiclient.New(cfg.APIURL,
		apiclient.WithLogger(logger),
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.APITimeout}),
	)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		loc:     loc,
		store:   store,
		api:     api,
		session: session.NewManager(store, api, session.WithLogger(logger)),
		in:      cmd.InOrStdin(),
		out:     cmd.OutOrStdout(),
	}, nil
}

// requireSession restores the saved session or explains how to get one.
func (a *app) requireSession() (session.Session, error) {
	s, err := a.session.Restore()
	switch {
	case errors.Is(err, session.ErrNotSignedIn):
		return session.Session{}, fmt.Errorf("%w: run gobarber signin first", err)
	case errors.Is(err, session.ErrSessionExpired):
		return session.Session{}, fmt.Errorf("%w: sign in again", err)
	case err != nil:
		return session.Session{}, err
	}
	return s, nil
}

func (a *app) explorer() (*github.Explorer, error) {
	client, err := github.NewClient(a.cfg.GitHubAPIURL,
		github.WithToken(a.cfg.GitHubToken),
		github.WithRateLimit(a.cfg.GitHubRateLimitRPS),
		github.WithCacheTTL(a.cfg.GitHubCacheTTL),
		github.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	return github.NewExplorer(client, a.store, github.WithExplorerLogger(a.logger))
}
