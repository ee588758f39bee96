package main

import (
	"context"
	"os"

	"github.com/pterm/pterm"

	"github.com/kindredhq/kindred/internal/config"
	"github.com/kindredhq/kindred/internal/crypto"
	"github.com/kindredhq/kindred/internal/logger"
	"github.com/kindredhq/kindred/internal/oauth"
	"github.com/kindredhq/kindred/internal/oauth/providers"
	"github.com/kindredhq/kindred/internal/server"
	"github.com/kindredhq/kindred/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	Execute()
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kindred-server",
	Short: "Kindred mail credential service",
	Long: `Kindred Server links CRM users to their email accounts over OAuth2.
It keeps the granted tokens encrypted at rest and serves fresh access tokens to the rest of the platform.`,
	Run: runServer,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// Place version check in PreRun to ensure flags are parsed first
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			pterm.Info.Println(config.GetVersionInfo())
			os.Exit(0)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	config.InitFlags()
	rootCmd.PersistentFlags().AddFlagSet(pflag.CommandLine)
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
}

// runServer boots the dependency graph and blocks until shutdown
func runServer(cmd *cobra.Command, args []string) {
	app := fx.New(
		fx.Provide(config.Load),
		fx.Invoke(func(cfg *config.Config) error {
			return logger.InitLogger(&cfg.Logging)
		}),
		crypto.Module,
		store.Module,
		providers.Module,
		oauth.Module,
		server.Module,
		fx.Invoke(startServer),
	)

	app.Run()

	if err := logger.Sync(); err != nil {
		// Sync on stderr is expected to fail on some platforms
		_ = err
	}
}

// startServer ties the HTTP listener into the fx lifecycle. The server owns
// its own context so OnStop can trigger the graceful shutdown path.
func startServer(lc fx.Lifecycle, srv *server.Server, shutdowner fx.Shutdowner) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := srv.Start(ctx); err != nil {
					logger.Error("Server stopped with error", zap.Error(err))
					if shutdownErr := shutdowner.Shutdown(); shutdownErr != nil {
						logger.Error("Failed to trigger shutdown", zap.Error(shutdownErr))
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
