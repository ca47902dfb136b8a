package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shift-planner/internal/draft"
	"shift-planner/internal/events"
	"shift-planner/internal/handler"
	"shift-planner/internal/httpapi"
	"shift-planner/pkg/telegram"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API、机器人和草稿任务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	log := c.logger
	cfg := c.cfg

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// RabbitMQ
	if cfg.RabbitMQ.DSN != "" {
		publisher, err := events.Dial(cfg.RabbitMQ.DSN, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.PublishTimeout, log.WithField("component", "events"))
		if err != nil {
			log.WithError(err).Warn("RabbitMQ unavailable, events disabled")
		} else {
			defer publisher.Close()
			a.schedules.AddNotifier(publisher)
		}
	}

	// Telegram
	var bot *telegram.Client
	if cfg.Telegram.Token != "" {
		bot, err = telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.Debug)
		if err != nil {
			return err
		}
		log.Infof("Authorized on account %s", bot.Bot.Self.UserName)

		botHandler := handler.NewHandler(bot.Bot, a.schedules, a.progress, cfg.Telegram.ChatID)
		botHandler.SetLogger(log)
		if cfg.Telegram.ChatID != 0 {
			a.schedules.AddNotifier(handler.NewNotifier(bot.Bot, cfg.Telegram.ChatID))
		}
		go botHandler.HandleUpdates(bot.Updates())
	}

	// черновики
	var drafts *draft.Scheduler
	if cfg.Draft.Enabled {
		drafts = draft.NewScheduler(a.schedules, cfg.Draft.Spec, cfg.Draft.Teams)
		drafts.SetLogger(log)
		if err := drafts.Start(); err != nil {
			return err
		}
	}

	api, err := httpapi.NewHandler(a.schedules, a.orgs, a.progress, log)
	if err != nil {
		return err
	}
	api.RegisterRoutes()

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.Mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("HTTP server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown failed")
	}
	if bot != nil {
		bot.Stop()
	}
	if drafts != nil {
		drafts.Stop()
	}
	// до закрытия publisher
	a.schedules.Wait()

	log.Info("Planner stopped gracefully")
	return nil
}
