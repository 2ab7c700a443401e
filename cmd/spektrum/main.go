// Command spektrum runs the realtime trivia game server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kottz/spektrum-sub000/internal/catalog"
	"github.com/kottz/spektrum-sub000/internal/config"
	"github.com/kottz/spektrum-sub000/internal/httpapi"
	"github.com/kottz/spektrum-sub000/internal/ident"
	"github.com/kottz/spektrum-sub000/internal/metrics"
	"github.com/kottz/spektrum-sub000/internal/playback"
	"github.com/kottz/spektrum-sub000/internal/registry"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A .env file is optional; the environment always wins.
	_ = godotenv.Load()

	cfg := config.Load()
	log := newLogger(cfg)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("Invalid configuration")
		return 1
	}

	cat, err := catalog.Load(cfg.Catalog.Path, log)
	if err != nil {
		log.WithError(err).Error("Failed to load question catalog")
		return 1
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(promReg)

	reg := registry.New(cat, ident.SystemClock{}, log, m,
		registry.WithCreateGrace(cfg.Lobby.CreateGrace))

	var pb playback.Notifier = playback.LogNotifier{Log: log}
	if cfg.Lobby.PlaybackURL != "" {
		pb = playback.NewHTTPNotifier(cfg.Lobby.PlaybackURL, log)
	}

	api := httpapi.New(cfg, log, cat, reg, m, promReg, pb)
	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     api.Router(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithFields(logrus.Fields{"addr": cfg.Addr(), "tls": cfg.TLSEnabled()}).Info("Server listening")
		var err error
		if cfg.TLSEnabled() {
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		reg.RunSweeper(ctx, cfg.Lobby.SweepInterval)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Server exited with error")
		return 1
	}
	log.Info("Shutdown complete")
	return 0
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.Log.JSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
