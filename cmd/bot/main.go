package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"sproutbot/internal/bot"
	"sproutbot/internal/config"
	"sproutbot/internal/db"
	"sproutbot/internal/handlers"
	"sproutbot/internal/oauth"
	"sproutbot/internal/services"
	"sproutbot/internal/site"
	"sproutbot/internal/store"
	"sproutbot/internal/websocket"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if cfg.AppEnv == "development" {
		log.SetFormatter(&logrus.TextFormatter{})
		log.SetLevel(logrus.DebugLevel)
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	users := store.NewUserStore(database)
	links := store.NewLinkStore(database)
	tokens := store.NewBindTokenStore(database)
	journal := store.NewJournalStore(database)
	incidents := store.NewIncidentStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	oauthClient := oauth.New(oauth.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		BaseURL:      cfg.OAuthBaseURL,
		RedirectURI:  cfg.OAuthRedirectURI,
		Timeout:      cfg.RemoteTimeout,
	})
	gateway := site.New(site.Config{
		AppID:   cfg.OAuthClientID,
		Secret:  cfg.OAuthClientSecret,
		BaseURL: cfg.OAuthBaseURL,
		Timeout: cfg.RemoteTimeout,
	})

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.WithError(err).Fatal("failed to init telegram api")
	}
	notifier := bot.NewNotifier(api)

	linker := services.NewLinkService(txRunner, cfg, users, links, tokens, journal, oauthClient, notifier, hub, log)
	exchanger := services.NewExchangeService(txRunner, cfg, users, links, journal, incidents, gateway, hub, log)
	profiler := services.NewProfileService(cfg, users, links, gateway, log)

	commands := bot.NewCommands(cfg, linker, exchanger, profiler, log)
	dispatcher := bot.NewDispatcher(api, cfg, commands, log)

	handler := handlers.New(cfg, linker, incidents, journal, hub, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		log.WithField("addr", server.Addr).Info("callback server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	go dispatcher.Run(ctx)

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := tokens.PurgeExpired(ctx); err != nil {
					log.WithError(err).Warn("bind token purge failed")
				} else if n > 0 {
					log.WithField("purged", n).Debug("expired bind tokens removed")
				}
			}
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("shutdown error")
	}
}
