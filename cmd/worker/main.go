package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-stock-recommender/internal/worker/config"
	"golang-stock-recommender/internal/worker/repository"
	"golang-stock-recommender/internal/worker/service"
	"golang-stock-recommender/pkg/logger"
	"golang-stock-recommender/pkg/postgres"
	"golang-stock-recommender/pkg/redis"
	"golang-stock-recommender/pkg/telegram"
	"golang-stock-recommender/pkg/utils"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"google.golang.org/genai"
)

var (
	configPath   string
	asOfDateFlag string
	dryRunFlag   bool
	seedSizeFlag int
)

// worker bundles the initialized dependencies for one service process.
type worker struct {
	cfg    *config.Config
	logger *logger.Logger
	runSvc service.RunService
	ingest service.IngestService
	close  func()
}

// newWorker loads configuration and wires every dependency. Failures here are
// setup failures and terminate the process; everything after is recorded as
// run data.
func newWorker(ctx context.Context) *worker {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger.Info("Starting worker", logger.StringField("name", cfg.App.Name))

	db, err := postgres.NewDB(postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}

	var aiRepo repository.AIRepository
	switch cfg.AI.Provider {
	case "gemini":
		genAiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: cfg.Gemini.APIKey,
		})
		if err != nil {
			appLogger.Fatal("Failed to initialize Gemini AI client", logger.ErrorField(err))
		}
		aiRepo, err = repository.NewGeminiAIRepository(cfg, appLogger, genAiClient)
		if err != nil {
			appLogger.Fatal("Failed to initialize Gemini AI repository", logger.ErrorField(err))
		}
	default:
		appLogger.Fatal("Invalid AI provider specified in config", logger.StringField("provider", cfg.AI.Provider))
	}

	notifier, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
	}

	featuresRepo := repository.NewStockFeaturesRepository(db.DB)
	snapshotRepo := repository.NewSnapshotRepository(db.DB)
	ingestRunRepo := repository.NewFeatureIngestRunRepository(db.DB)

	universeSvc := service.NewUniverseService(cfg, appLogger, featuresRepo)
	runSvc := service.NewRunService(cfg, appLogger, redisClient.Client, universeSvc, aiRepo, snapshotRepo, notifier)

	var ingestSvc service.IngestService
	if cfg.DataProvider.BaseURL != "" {
		providerRepo, err := repository.NewHTTPDataProviderRepository(cfg, appLogger, redisClient.Client)
		if err != nil {
			appLogger.Fatal("Failed to initialize data provider", logger.ErrorField(err))
		}
		ingestSvc = service.NewIngestService(appLogger, providerRepo, featuresRepo, ingestRunRepo)
	} else {
		ingestSvc = service.NewIngestService(appLogger, nil, featuresRepo, ingestRunRepo)
	}

	return &worker{
		cfg:    cfg,
		logger: appLogger,
		runSvc: runSvc,
		ingest: ingestSvc,
		close: func() {
			if sqlDB, err := db.DB.DB(); err == nil {
				_ = sqlDB.Close()
			}
			_ = redisClient.Close()
			_ = appLogger.Sync()
		},
	}
}

func resolveDate(w *worker) time.Time {
	asOfDate, err := utils.ResolveMarketDate(asOfDateFlag, time.Now().UTC())
	if err != nil {
		w.logger.Fatal("Failed to resolve as-of date", logger.ErrorField(err))
	}
	return asOfDate
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one EOD recommendation run",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := newWorker(ctx)
		defer w.close()

		asOfDate := resolveDate(w)
		if dryRunFlag {
			w.logger.Info("Dry run, resolved date only",
				logger.StringField("as_of_date", asOfDate.Format("2006-01-02")))
			return
		}

		outcome, err := w.runSvc.Run(ctx, asOfDate)
		if err != nil {
			w.logger.Fatal("Run aborted by infrastructure failure", logger.ErrorField(err))
		}

		// Benign no-ops and recorded business failures both exit 0; the
		// outcome row is the source of truth.
		w.logger.Info("Run finished",
			logger.StringField("as_of_date", outcome.AsOfDate.Format("2006-01-02")),
			logger.StringField("status", string(outcome.Status)))
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run EOD generation on the configured cron schedule",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := newWorker(ctx)
		defer w.close()

		spec := w.cfg.Run.CronSchedule
		if spec == "" {
			spec = "30 16 * * 1-5" // KST weekday close, via TZ below
		}

		c := cron.New(cron.WithLocation(utils.KST))
		_, err := c.AddFunc(spec, func() {
			asOfDate, err := utils.ResolveMarketDate("", time.Now().UTC())
			if err != nil {
				w.logger.Error("Failed to resolve as-of date", logger.ErrorField(err))
				return
			}
			outcome, err := w.runSvc.Run(ctx, asOfDate)
			if err != nil {
				w.logger.Error("Scheduled run failed", logger.ErrorField(err))
				return
			}
			w.logger.Info("Scheduled run finished",
				logger.StringField("as_of_date", outcome.AsOfDate.Format("2006-01-02")),
				logger.StringField("status", string(outcome.Status)))
		})
		if err != nil {
			w.logger.Fatal("Invalid cron schedule", logger.ErrorField(err))
		}

		c.Start()
		w.logger.Info("Scheduler started", logger.StringField("cron", spec))

		<-ctx.Done()
		w.logger.Info("Shutting down scheduler...")
		<-c.Stop().Done()
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch daily features from the external provider and upsert them",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := newWorker(ctx)
		defer w.close()

		asOfDate := resolveDate(w)
		affected, err := w.ingest.IngestDaily(ctx, asOfDate)
		if err != nil {
			w.logger.Fatal("Ingest failed", logger.ErrorField(err))
		}
		w.logger.Info("Ingest finished",
			logger.StringField("as_of_date", asOfDate.Format("2006-01-02")),
			logger.Field("affected", affected))
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed deterministic stub feature rows for the resolved date",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := newWorker(ctx)
		defer w.close()

		asOfDate := resolveDate(w)
		affected, err := w.ingest.SeedStub(ctx, asOfDate, seedSizeFlag)
		if err != nil {
			w.logger.Fatal("Seed failed", logger.ErrorField(err))
		}
		w.logger.Info("Seed finished",
			logger.StringField("as_of_date", asOfDate.Format("2006-01-02")),
			logger.Field("affected", affected))
	},
}

func main() {
	rootCmd := &cobra.Command{Use: "worker"}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config-worker.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&asOfDateFlag, "as-of-date", "", "Market as-of date (YYYY-MM-DD); defaults to the resolved trading date")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Resolve the date and exit without touching the store")
	seedCmd.Flags().IntVar(&seedSizeFlag, "size", 500, "Number of stub rows to seed")

	rootCmd.AddCommand(runCmd, scheduleCmd, ingestCmd, seedCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing worker CLI: %s\n", err)
		os.Exit(1)
	}
}
