package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/news-digest/internal/bot"
	"github.com/kovalyov-valentin/news-digest/internal/bot/middleware"
	"github.com/kovalyov-valentin/news-digest/internal/botkit"
	"github.com/kovalyov-valentin/news-digest/internal/config"
	"github.com/kovalyov-valentin/news-digest/internal/delivery"
	"github.com/kovalyov-valentin/news-digest/internal/fetcher"
	"github.com/kovalyov-valentin/news-digest/internal/model"
	"github.com/kovalyov-valentin/news-digest/internal/notifier"
	"github.com/kovalyov-valentin/news-digest/internal/pipeline"
	"github.com/kovalyov-valentin/news-digest/internal/source"
	"github.com/kovalyov-valentin/news-digest/internal/storage"
	"github.com/kovalyov-valentin/news-digest/internal/subscription"
)

func main() {
	//Graceful Shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		log.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.Get()

	// Инициализируем подключение к БД
	db, err := storage.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	transport, err := newTransport(ctx, cfg)
	if err != nil {
		return err
	}

	// Инициализируем наши зависимости
	var (
		articleStorage  = storage.NewArticleStorage(db)
		sourceStorage   = storage.NewSourceStorage(db)
		userStorage     = storage.NewUserStorage(db)
		deliveryStorage = storage.NewDeliveryStorage(db)
		sourceOptions   = source.Options{
			MaxItems:         cfg.MaxItemsPerSource,
			GuardianAPIKey:   cfg.GuardianAPIKey,
			GuardianSection:  cfg.GuardianSection,
			GuardianPageSize: cfg.GuardianPageSize,
			HTTPClient:       &http.Client{Timeout: cfg.FetchTimeout},
		}
		newsFetcher = fetcher.NewFetcher(
			sourceStorage,
			func(src model.Source) (source.Adapter, error) { return source.New(src, sourceOptions) },
			cfg.FetchTimeout,
			cfg.FetchWorkers,
			cfg.FilterKeywords,
		)
		tracker = delivery.NewTracker(delivery.LedgerFunc(
			func(ctx context.Context, userID int64) (delivery.Session, error) {
				session, err := deliveryStorage.Begin(ctx, userID)
				if err != nil {
					return nil, err
				}
				return session, nil
			},
		))
		deps = pipeline.Deps{
			Fetcher:   newsFetcher,
			Articles:  articleStorage,
			Users:     userStorage,
			Resolver:  subscription.NewResolver(userStorage),
			Tracker:   tracker,
			Transport: transport,
		}
	)

	// Бот администратора и отчеты в канал необязательны
	var botAPI *tgbotapi.BotAPI
	if cfg.TelegramBotToken != "" {
		if botAPI, err = tgbotapi.NewBotAPI(cfg.TelegramBotToken); err != nil {
			return fmt.Errorf("failed to create bot: %w", err)
		}
		if cfg.TelegramChannelID != 0 {
			deps.Reporter = notifier.NewChannelReporter(botAPI, cfg.TelegramChannelID)
		}
	}

	digestPipeline := pipeline.New(deps, pipeline.Options{
		Interval:        cfg.FetchInterval,
		DeliveryTimeout: cfg.DeliveryTimeout,
		DeliveryWorkers: cfg.DeliveryWorkers,
	})

	// Один прогон: код выхода показывает, удался ли он
	if cfg.FetchInterval <= 0 {
		_, err := digestPipeline.RunOnce(ctx)
		return err
	}

	if botAPI != nil {
		// Обернуть middleware все view где нужно дать доступ только админу
		newsBot := botkit.New(botAPI)
		newsBot.RegisterCmdView("start", bot.ViewCmdStart())
		newsBot.RegisterCmdView("listsources", bot.ViewCmdListSources(sourceStorage))
		newsBot.RegisterCmdView(
			"addsource",
			middleware.AdminOnly(cfg.TelegramChannelID, bot.ViewCmdAddSource(sourceStorage)),
		)
		newsBot.RegisterCmdView(
			"togglesource",
			middleware.AdminOnly(cfg.TelegramChannelID, bot.ViewCmdToggleSource(sourceStorage)),
		)

		// Воркер бота
		go func(ctx context.Context) {
			if err := newsBot.Run(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Printf("[ERROR] failed to run bot: %v", err)
					return
				}

				log.Println("bot stopped")
			}
		}(ctx)
	}

	if err := digestPipeline.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pipeline stopped: %w", err)
	}

	log.Println("pipeline stopped")

	return nil
}

func newTransport(ctx context.Context, cfg config.Config) (pipeline.Transport, error) {
	switch cfg.Transport {
	case "gmail":
		t, err := notifier.NewGmailTransport(ctx, cfg.GmailCredentialsFile, cfg.GmailTokenFile, cfg.EmailSender)
		if err != nil {
			return nil, fmt.Errorf("failed to create gmail transport: %w", err)
		}
		return t, nil
	case "log", "":
		return notifier.LogTransport{}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
