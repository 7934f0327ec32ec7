package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/kasko-bot/config"
	"github.com/raine/kasko-bot/internal/bot"
	"github.com/raine/kasko-bot/internal/llm"
	"github.com/raine/kasko-bot/internal/maintenance"
	"github.com/raine/kasko-bot/internal/pricing"
	"github.com/raine/kasko-bot/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const logFileName = "kasko-bot.log"

func fatal(format string, args ...any) {
	log.Fatal().Msgf(format, args...)
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Try to load existing .env file
	config.LoadEnvFile()

	// JOURNAL_STREAM is set by systemd when running as a service.
	// Skip file logging under systemd, journald handles it.
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fatal("failed to open log file: %v", err)
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))

		log.Info().Str("logFile", logFileName).Msg("logging to file")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fatal("%v", err)
	}

	tg, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		fatal("failed to initialize telegram bot: %v", err)
	}
	tg.Debug = false
	log.Info().Str("username", tg.Self.UserName).Msg("authorized on account")

	// Register bot commands for Telegram's command menu
	bot.RegisterCommands(tg)

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		fatal("failed to initialize store: %v", err)
	}
	defer store.Close()
	log.Info().Str("dbPath", cfg.DBPath).Msg("store initialized")

	catalog := pricing.NewCatalog(nil)
	importer := pricing.NewImporter(catalog, store)
	if err := importer.Load(); err != nil {
		fatal("failed to load reference prices: %v", err)
	}
	stats := catalog.Table().Stats()
	log.Info().Int("entries", stats.Entries).Int("brands", stats.Brands).Msg("reference prices loaded")

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gemini, err := llm.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		fatal("failed to initialize gemini extractor: %v", err)
	}
	log.Info().Msg("gemini extractor initialized")

	extractor := llm.NewCachedExtractor(gemini, store)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runBot(ctx, tg, catalog, importer, store, extractor, cfg.AdminID)
	})

	maintenanceService := maintenance.NewService(store, catalog, tg, cfg.AdminID)
	g.Go(func() error {
		maintenanceService.Run(ctx)
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

func runBot(
	ctx context.Context,
	tg *tgbotapi.BotAPI,
	catalog *pricing.Catalog,
	importer *pricing.Importer,
	history bot.ImportHistory,
	extractor llm.Extractor,
	adminID int64,
) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := tg.GetUpdatesChan(updateConfig)

	b := bot.NewBot(tg, catalog, importer, history, adminID)
	b.SetExtractor(extractor)
	defer b.Shutdown()

	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping bot update loop")
			tg.StopReceivingUpdates()
			log.Info().Msg("waiting for active handlers to finish")
			wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				log.Warn().Msg("updates channel closed")
				wg.Wait()
				return nil
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}
