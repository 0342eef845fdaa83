package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"faqbot/internal/httpapi"
	"faqbot/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

func serve(ctx context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := a.ctrl.Run(ctx); err != nil {
			a.log.WithError(err).Warn("session janitor stopped")
		}
	}()

	if a.cfg.Rules.Watch && a.cfg.Rules.File != "" {
		w, err := watcher.NewRulesWatcher(a.cfg.Rules.File, a.ctrl.SetRules, a.log)
		if err != nil {
			return err
		}
		go w.Run(ctx)
	}

	h := httpapi.NewHandler(a.svc, a.ctrl, a.requestTimeout(), a.log.WithField("component", "http"))
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.WithField("addr", srv.Addr).Info("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		a.log.Info("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.log.WithError(err).Warn("http shutdown")
	}
	return a.svc.Save(sctx)
}
