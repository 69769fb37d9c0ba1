package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/okhunjon/sportpay-bot/internal/billing"
	"github.com/okhunjon/sportpay-bot/internal/config"
	"github.com/okhunjon/sportpay-bot/internal/handlers"
	"github.com/okhunjon/sportpay-bot/internal/middleware"
	"github.com/okhunjon/sportpay-bot/internal/notify"
	"github.com/okhunjon/sportpay-bot/internal/providers"
	"github.com/okhunjon/sportpay-bot/internal/scheduler"
	"github.com/okhunjon/sportpay-bot/internal/signature"
	"github.com/okhunjon/sportpay-bot/internal/web"
	"github.com/okhunjon/sportpay-bot/store"
	"github.com/okhunjon/sportpay-bot/types"
)

func main() {
	_ = config.LoadEnvFile("config.env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rdb, err := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "sportpay")
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	stateStore := store.NewRedisStateStore(rdb, cfg.StateTTLHours)

	pgStore, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()

	b, err := bot.New(cfg.BotToken)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	clickClient := providers.NewClickClient(cfg.Click)
	paymeClient := providers.NewPaymeClient(cfg.Payme)
	uzcardClient := providers.NewUzcardClient(cfg.Uzcard)

	chargeClients := map[types.Provider]types.ChargeClient{
		types.ProviderClick:  clickClient,
		types.ProviderPayme:  paymeClient,
		types.ProviderUzcard: uzcardClient,
	}

	notifier := notify.NewBotNotifier(b)

	engine := billing.NewEngine(pgStore, pgStore, pgStore, pgStore, pgStore, chargeClients, notifier)
	vault := billing.NewVault(pgStore, chargeClients, engine)
	callbacks := billing.NewCallbacks(signature.NewVerifier(cfg.Click.Secret), pgStore, pgStore, pgStore, engine)

	sweeps := scheduler.NewSweeps(pgStore, pgStore, engine, notifier)
	sched := scheduler.NewScheduler(sweeps)
	sched.Start()
	defer sched.Stop()

	h := handlers.NewHandlers(cfg, pgStore, pgStore, stateStore, engine, vault, pgStore, clickClient, paymeClient, uzcardClient)

	middlewares := middleware.NewUserResolver(pgStore)
	handlerChain := middlewares.ResolveUser(h.MainHandler)

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil
	}, handlerChain)

	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, handlerChain)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           web.NewServer(callbacks).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown: %v", err)
		}
	}()

	log.Println("Bot started. Press Ctrl+C to stop.")
	b.Start(ctx)
}
