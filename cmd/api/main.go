package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sngm3741/contact-form-services/api/internal/config"
	"github.com/sngm3741/contact-form-services/api/internal/infrastructure/mail"
	"github.com/sngm3741/contact-form-services/api/internal/infrastructure/store"
	"github.com/sngm3741/contact-form-services/api/internal/logger"
	"github.com/sngm3741/contact-form-services/api/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			for _, problem := range cfgErr.Problems {
				fmt.Fprintln(os.Stderr, "config:", problem)
			}
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	repo, closeStore, err := store.Open(ctx, cfg, *log)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}

	sender, refresher, err := mail.NewSender(cfg, &http.Client{Timeout: cfg.NotifyTimeout}, *log)
	if err != nil {
		_ = closeStore(context.Background())
		log.Fatal().Err(err).Str("transport", cfg.MailTransport).Msg("failed to build mail sender")
	}

	log.Info().
		Str("store", cfg.StoreDriver).
		Str("transport", sender.Name()).
		Str("policy", string(cfg.NotifyPolicy)).
		Msg("contact form API starting")

	app := server.New(cfg, server.Deps{
		Logger:     *log,
		Repository: repo,
		Sender:     sender,
		Refresher:  refresher,
		CloseStore: closeStore,
	})
	if err := app.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}
