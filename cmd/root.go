// Package cmd defines and implements the CLI commands for the lpsn executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/lpsn-scraper/internal/app"
	"github.com/JakeFAU/lpsn-scraper/internal/config"
	"github.com/JakeFAU/lpsn-scraper/internal/lpsn"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
type App interface {
	Close()
	Config() config.Config
	GetLogger() *zap.Logger
	GetScraper() *lpsn.Scraper
}

// newApp is the application factory. Tests replace it to inject fakes.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "lpsn",
		Short: "Scrape bacterial species records from LPSN.",
		Long: `lpsn queries the List of Prokaryotic names with Standing in Nomenclature
(https://lpsn.dsmz.de), scrapes its search and species pages and returns
normalized species records as JSON, either over HTTP or on the command line.`,
		SilenceUsage: true,

		// Build the services once the flags are parsed, before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			zap.ReplaceGlobals(appInstance.GetLogger())

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); LPSN_* environment variables override it")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		// Cobra has already printed the error.
		os.Exit(1)
	}
}
