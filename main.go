package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"wipe-commander/internal/config"
	"wipe-commander/internal/deepseek"
	"wipe-commander/internal/history"
	"wipe-commander/internal/journal"
	"wipe-commander/internal/router"
	"wipe-commander/internal/snapshot"
	"wipe-commander/internal/telegram"
	"wipe-commander/internal/wipe"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		healthCheck bool
		envFile     string
	)

	cmd := &cobra.Command{
		Use:           "wipe-commander",
		Short:         "Telegram bot that wipes group history on request and proxies private chats to DeepSeek",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFiles(envFile)...); err != nil {
				logrus.WithError(err).Warn("Failed to load .env file")
			}

			v, err := config.New(cmd.Flags())
			if err != nil {
				return err
			}

			// Handle health check
			if healthCheck {
				os.Exit(runHealthCheck(v))
			}

			cfg, err := config.Load(v)
			if err != nil {
				logrus.WithError(err).Error("Invalid configuration")
				return err
			}

			logger, closeLog, err := newLogger(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, logger); err != nil {
				logger.WithError(err).Error("Bot stopped with error")
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&healthCheck, "health-check", false, "Run health check and exit")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to a .env file (default .env)")
	cmd.Flags().String("health-addr", ":8080", "Health server listen address")
	cmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	return cmd
}

func envFiles(envFile string) []string {
	if envFile == "" {
		return nil
	}
	return []string{envFile}
}

// newLogger builds the JSON logger. With a log file set, output goes to both
// stdout and the file.
func newLogger(level, file string) (*logrus.Logger, func(), error) {
	logger := logrus.New()

	switch level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	logger.SetFormatter(&logrus.JSONFormatter{})

	if file == "" {
		return logger, func() {}, nil
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open log file %s", file)
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, f))
	return logger, func() { f.Close() }, nil
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	messages, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return errors.Wrap(err, "failed to open message journal")
	}
	defer messages.Close()

	api, err := telegram.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return err
	}
	transport := telegram.NewTransport(api, messages, cfg.APIRate, logger)

	snapshots, err := newSnapshotStore(ctx, cfg)
	if err != nil {
		return err
	}

	deleter := wipe.NewDeleter(transport, logger,
		wipe.WithBatchSize(cfg.DeleteBatchSize),
		wipe.WithPacing(cfg.DeletePacing),
	)
	totalVotes := wipe.NewLedger(cfg.TotalWipeConfirms, wipe.CountDistinct)
	personalVotes := wipe.NewLedger(cfg.PersonalWipeConfirms, wipe.CountRepeats)

	var completer router.Completer
	if cfg.AIEnabled() {
		client := deepseek.NewClient(cfg.AIBaseURL, cfg.AIToken, cfg.AIModel, logger)
		defer client.Close()
		completer = client
	} else {
		logger.Warn("AI_TOKEN is not set, private conversations are disabled")
	}

	roles := router.NewRoleStore()
	r := router.New(router.Deps{
		Transport:     transport,
		Gate:          wipe.NewPermissionGate(transport, logger),
		TotalVotes:    totalVotes,
		PersonalVotes: personalVotes,
		Wiper:         wipe.NewWiper(deleter, snapshots, logger),
		Transcripts:   history.NewReconstructor(transport),
		Completer:     completer,
		Snapshots:     snapshots,
		Roles:         roles,
		Logger:        logger,
	}, router.Options{
		Temperature: cfg.AITemperature,
		ImagesDir:   cfg.ImagesDir,
	})
	boxes := router.NewMailboxes(r.Handle)
	bot := telegram.NewBot(api, transport, boxes, logger)

	janitor := cron.New()
	if _, err := janitor.AddFunc("@every 1h", func() {
		now := time.Now()
		removed := totalVotes.Sweep(now) + personalVotes.Sweep(now)
		if removed > 0 {
			logger.WithField("removed", removed).Info("Expired vote windows dropped")
		}
	}); err != nil {
		return errors.Wrap(err, "failed to schedule ledger janitor")
	}
	janitor.Start()
	defer janitor.Stop()

	healthServer := &http.Server{
		Addr:    cfg.HealthAddr,
		Handler: createHealthCheckHandler(bot, &runtimeStatus{
			total:     totalVotes,
			personal:  personalVotes,
			mailboxes: boxes,
			roles:     roles,
			aiEnabled: cfg.AIEnabled(),
			operator:  cfg.Phone,
		}),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.HealthAddr).Info("Starting health check server")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "health check server failed")
		}
		return nil
	})
	g.Go(func() error {
		return bot.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Failed to shutdown health server")
		}
		return nil
	})

	logger.Info("Wipe Commander bot started successfully")

	err = g.Wait()
	boxes.Wait()
	logger.Info("Shutdown complete")
	return err
}

func newSnapshotStore(ctx context.Context, cfg *config.Config) (snapshot.Store, error) {
	if cfg.SnapshotBucket != "" {
		store, err := snapshot.NewS3Store(ctx, cfg.SnapshotBucket, cfg.SnapshotPrefix)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize S3 snapshot store")
		}
		return store, nil
	}
	store, err := snapshot.NewFileStore(cfg.SnapshotDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize snapshot folder")
	}
	return store, nil
}
