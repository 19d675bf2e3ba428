package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pocketbook/internal/backend"
	"pocketbook/internal/calendar"
	"pocketbook/internal/cli"
	"pocketbook/internal/config"
	"pocketbook/internal/core"
	"pocketbook/internal/ledger"
	"pocketbook/internal/log"
)

var (
	flagAccount  string
	flagLogLevel string
	flagWatch    bool
)

var rootCmd = &cobra.Command{
	Use:   "pocketbook",
	Short: "Personal finance ledger",
	Long:  "Record income, expenses, transfers and investments, schedule payments and track a monthly budget.",
	RunE:  runBalance,

	SilenceUsage: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagAccount, "account", "a", "", "Account to act for (defaults to ACCOUNT_ID)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (defaults to LOG_LEVEL, then warn)")
}

// watchFlag registers --watch on commands that can follow live changes.
func watchFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "Keep running and print every change")
}

// app is the per-invocation wiring shared by all commands.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	backend *backend.Backend
	session core.Session
}

// loadConfig reads .env and the environment and sets up logging.
func loadConfig() (*config.Config, *log.Logger, error) {
	cli.LoadEnvFile()

	level := flagLogLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		level = "warn"
	}
	logger := cli.SetupLogger(level)

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	session, err := cli.ResolveSession(cfg, flagAccount)
	if err != nil {
		return nil, err
	}
	b, err := cli.OpenBackend(ctx, logger, cfg, nil)
	if err != nil {
		return nil, err
	}
	if cfg.DataBackend == string(backend.MemoryBackend) {
		logger.Warn("Memory backend selected, nothing is persisted after this command exits")
	}
	return &app{cfg: cfg, logger: logger, backend: b, session: session}, nil
}

func (a *app) Close() {
	if err := a.backend.Close(); err != nil {
		a.logger.Error("Failed to close backend", log.FieldError, err)
	}
}

func (a *app) ledger() *ledger.Ledger {
	return ledger.New(a.backend.Store,
		ledger.WithLogger(a.logger.WithComponent(log.ComponentLedger)),
		ledger.WithMaxAttempts(a.cfg.LedgerMaxAttempts))
}

func (a *app) calendar() *calendar.Calendar {
	return calendar.New(a.backend.Store, calendar.WithLogger(a.logger.WithComponent(log.ComponentCalendar)))
}

// withApp adapts a command body that needs an opened app.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a, args)
	}
}
