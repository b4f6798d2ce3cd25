package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/studybot/studybot/internal/config"
	"github.com/studybot/studybot/internal/database"
	"github.com/studybot/studybot/internal/health"
	"github.com/studybot/studybot/internal/llm"
	"github.com/studybot/studybot/internal/logger"
	"github.com/studybot/studybot/internal/metrics"
	"github.com/studybot/studybot/internal/telegram"
)

var version = "1.0.0"

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	serve := newServeCmd(&logLevel)

	rootCmd := &cobra.Command{
		Use:           "studybot",
		Short:         "Telegram study assistant",
		Long:          `studybot answers students' text and image questions on Telegram for members of a required channel.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(
		serve,
		newMigrateCmd(&logLevel),
		newStatsCmd(&logLevel),
		newVersionCmd(),
	)
	return rootCmd
}

func newServeCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the health server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(config.Load, *logLevel)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func newMigrateCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the users table if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(config.LoadStoreOnly, *logLevel)
			if err != nil {
				return err
			}

			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s schema is up to date\n", db.Driver())
			return nil
		},
	}
}

func newStatsCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print user counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(config.LoadStoreOnly, *logLevel)
			if err != nil {
				return err
			}

			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			return printStats(cmd.Context(), cmd.OutOrStdout(), db)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show studybot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "studybot v%s\n", version)
		},
	}
}

// setup loads the configuration with load and starts the logger.
func setup(load func() (*config.Config, error), logLevel string) (*config.Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if err := logger.InitLogger(cfg.LogLevel, cfg.LogDir); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*database.DB, error) {
	driver, dsn := cfg.DatabaseDriver()
	db, err := database.NewDB(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s user store: %w", driver, err)
	}
	return db, nil
}

func printStats(ctx context.Context, w io.Writer, store database.Store) error {
	total, err := store.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	active, err := store.ListActiveUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active users: %w", err)
	}

	fmt.Fprintln(w, "📊 Users")
	fmt.Fprintln(w, "────────")
	fmt.Fprintf(w, "Total:  %d\n", total)
	fmt.Fprintf(w, "Active: %d\n", len(active))
	fmt.Fprintf(w, "Banned: %d\n", total-int64(len(active)))
	return nil
}

// serve runs until ctx is canceled, then drains in-flight updates and closes
// the store.
func serve(ctx context.Context, cfg *config.Config) error {
	driver, _ := cfg.DatabaseDriver()
	logger.Info("studybot is starting", map[string]interface{}{
		"log_level": cfg.LogLevel,
		"db_driver": driver,
		"has_llm":   cfg.HasLLMConfig(),
		"has_admin": cfg.HasAdmin(),
		"channel":   cfg.ChannelID,
	})

	db, err := openStore(cfg)
	if err != nil {
		logger.Error("Failed to open user store", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close user store", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	assistant := llm.NewAssistant(cfg)
	if !assistant.Enabled() {
		logger.WarnMsg("LLM is not configured, questions will get the unavailable reply")
	}

	collector := metrics.NewCollector()

	bot, err := telegram.NewBot(cfg, db, assistant, collector)
	if err != nil {
		logger.Error("Failed to create Telegram bot", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}

	healthServer := health.NewServer(cfg.HealthPort, collector.Handler())
	healthServer.Start()

	logger.InfoMsg("📚 Ready to help students!")

	botErr := bot.Start(ctx)
	if botErr != nil {
		logger.Error("Bot error", map[string]interface{}{
			"error": botErr.Error(),
		})
	}

	logger.InfoMsg("Shutting down")
	if err := bot.Stop(); err != nil {
		logger.Error("Bot did not stop cleanly", map[string]interface{}{
			"error": err.Error(),
		})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Health server shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return botErr
}
