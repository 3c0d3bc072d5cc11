package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/youruser/cardapp/internal/api"
	"github.com/youruser/cardapp/internal/config"
	"github.com/youruser/cardapp/internal/storage"
	"github.com/youruser/cardapp/internal/textlayout"
	"github.com/youruser/cardapp/internal/util"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", "", "The address to listen on (defaults to :$PORT).")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	// Template and font are read per request; check them once so a broken
	// deployment shows up in the startup log.
	if _, err := os.Stat(cfg.Template.BackgroundPath); err != nil {
		logrus.WithError(err).WithField("template", cfg.Template.BackgroundPath).Warn("Template not readable")
	}
	if textlayout.NewFontLoader(cfg.Template.FontPath).Degraded() {
		logrus.WithField("font", cfg.Template.FontPath).Warn("Titles will use the built-in font")
	}

	ctx := context.Background()
	uploader, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up storage")
	}

	handler := &api.Handler{
		Template:      cfg.Template,
		OutputFormat:  cfg.OutputFormat,
		Fetcher:       util.NewFetcher(cfg.FetchTimeout, cfg.MaxImageBytes),
		Uploader:      uploader,
		MaxImageBytes: cfg.MaxImageBytes,
	}
	r := api.NewRouter(handler)
	r.MaxMultipartMemory = cfg.MaxImageBytes

	addr := *listenAddress
	if addr == "" {
		addr = ":" + cfg.Port
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logrus.WithFields(logrus.Fields{
		"addr":   addr,
		"policy": cfg.Template.Policy.String(),
		"format": cfg.OutputFormat,
	}).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(srv)
}

func waitForShutdown(srv *http.Server) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signals
	logrus.WithField("signal", s.String()).Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed")
	}
}
