package main

import (
	"fmt"
	"log"

	"github.com/pysugar/photo-slideshow/internal/auth/google"
	"github.com/pysugar/photo-slideshow/internal/auth/token"
	"github.com/pysugar/photo-slideshow/internal/config"
	"github.com/pysugar/photo-slideshow/internal/db"
	"github.com/pysugar/photo-slideshow/internal/metrics"
	"github.com/pysugar/photo-slideshow/internal/version"
	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "slideshow",
		Short: "Google Photos slideshow server",
		Long: `slideshow signs in one or more Google accounts, keeps their tokens fresh
and serves their photos and videos to a browser slideshow.

Run without a subcommand to start the server.`,
		Version:      version.String(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.SetVersionTemplate(`{{printf "slideshow %s\n" .Version}}`)
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to slideshow.yaml")

	root.AddCommand(newServeCmd())
	root.AddCommand(newAccountsCmd())
	root.AddCommand(newSecretCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "slideshow %s\n", version.String())
		},
	}
}

// openBackend picks the credential store named by cfg.Store.
func openBackend(cfg *config.Config) (token.Backend, error) {
	if cfg.Store == config.StoreSQLite {
		database, err := db.InitDB(cfg.DatabasePath())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		log.Printf("🗄️ Credential store: sqlite (%s)", cfg.DatabasePath())
		return token.NewSQLBackend(database), nil
	}

	backend, err := token.NewFileBackend(cfg.TokensDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open token directory: %w", err)
	}
	log.Printf("🗄️ Credential store: files (%s)", backend.Dir())
	return backend, nil
}

func newAuthClient(cfg *config.Config) *google.Client {
	return google.NewClient(google.Options{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		RefreshURL:   cfg.EffectiveRefreshURL(),
		AuthBaseURL:  cfg.AuthBaseURL,
	})
}

func newTokenManager(cfg *config.Config, auth token.Refresher, m *metrics.Metrics) (*token.Manager, error) {
	backend, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	return token.NewManager(backend, auth, token.WithMetrics(m)), nil
}
