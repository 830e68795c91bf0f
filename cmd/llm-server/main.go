package main

import (
	"os"
	"runtime/debug"

	"github.com/brizzai/llm-server/internal/api"
	"github.com/brizzai/llm-server/internal/auth"
	"github.com/brizzai/llm-server/internal/config"
	"github.com/brizzai/llm-server/internal/logger"
	"github.com/brizzai/llm-server/internal/requester"
	"github.com/brizzai/llm-server/internal/server"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	Execute()
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "llm-server",
	Short: "HTTP backend with social login sessions and bearer token auth",
	Long: `llm-server serves authenticated endpoints behind two alternative auth paths:
browser sessions established through Google, GitHub or Twitter login, and
bearer JWTs issued by a hosted identity provider.`,
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		pterm.Info.Println(config.GetVersionInfo())
	},
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
	config.InitFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
	rootCmd.SilenceUsage = true
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	defer func() {
		if r := recover(); r != nil {
			pterm.Error.Printf("\nCaught panic: %v\n", r)
			pterm.Error.Printf("%s\n", debug.Stack())
			os.Exit(2)
		}
	}()

	// Missing configuration fails here, before anything listens
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	if err := logger.InitLogger(&cfg.Logging); err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Starting llm-server",
		zap.String("version", config.GetVersionInfo()),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("oauth", cfg.OAuth.Enabled),
		zap.Bool("identity", cfg.Identity.Enabled))

	app := fx.New(
		fx.WithLogger(logger.FxEventLogger),
		fx.Supply(cfg),
		config.Module,
		requester.Module,
		auth.Module,
		api.Module,
		server.Module,
	)
	if err := app.Err(); err != nil {
		logger.Error("Failed to build application", zap.Error(err))
		return err
	}

	app.Run()
	return nil
}
