package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"davbackup/internal/api"
	"davbackup/internal/backup"
	"davbackup/internal/config"
	"davbackup/internal/encryptor"
	fileutil "davbackup/internal/file"
	"davbackup/internal/run"
	"davbackup/internal/webdav"
)

func main() {
	configPath := flag.String("config", "davbackup.yml", "path to the YAML configuration")
	serve := flag.Bool("serve", false, "serve the HTTP API instead of running a single backup")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("failed to load config")
	}
	if err := fileutil.EnsureDir(cfg.DataDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("ensure data dir")
	}

	manager := buildRunManager(cfg, log.Logger)
	if err := manager.LoadFromDisk(); err != nil {
		log.Warn().Err(err).Msg("could not load previous runs")
	}

	if *serve {
		serveAPI(cfg, manager)
		return
	}
	os.Exit(runOnce(manager))
}

func buildRunManager(cfg config.Config, logger zerolog.Logger) *run.Manager {
	store := webdav.NewClient(webdav.Options{
		BaseURL:  cfg.WebDAVURL,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.RequestTimeout,
	})
	archiver := &encryptor.Runner{
		Command: cfg.EncryptCommand,
		KeyPath: cfg.KeyPath,
		Timeout: cfg.ProcessTimeout,
	}
	orchestrator := backup.NewOrchestrator(archiver, backup.NewSequencer(store), backup.Options{
		Exclude:     cfg.Exclude,
		MaxParallel: cfg.MaxParallel,
		Logger:      logger,
	})
	return run.NewManager(orchestrator, run.Options{DataDir: cfg.DataDir, Root: cfg.SourceRoot}, logger)
}

// runOnce performs a single backup and prints the summary. Task failures do
// not change the exit status; only a run that could not start does.
func runOnce(manager *run.Manager) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := manager.RunNow(ctx)
	if err != nil {
		log.Error().Err(err).Msg("backup not started")
		return 1
	}
	if result.Report == nil {
		log.Error().Str("error", result.Error).Msg("backup run failed")
		return 1
	}
	fmt.Print("\n" + result.Report.Summary())
	return 0
}

func serveAPI(cfg config.Config, manager *run.Manager) {
	const (
		readHeaderTimeout = 5 * time.Second
		shutdownTimeout   = 10 * time.Second
	)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.ZerologLogger(log.Logger))
	handler := api.NewAPI(manager, log.Logger)
	handler.RegisterRoutes(router)
	handler.RegisterUIRoutes(router)

	baseCtx, baseCancel := context.WithCancel(context.Background())
	manager.SetBaseContext(baseCtx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdownSignal()
	gracefulShutdown(srv, baseCancel, manager, shutdownTimeout)
}

func waitForShutdownSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
}

func gracefulShutdown(srv *http.Server, cancelBase context.CancelFunc, manager *run.Manager, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}

	cancelBase()
	if !manager.WaitAll(ctx) {
		log.Warn().Msg("backup run did not finish before timeout")
	}
	log.Info().Msg("server exited cleanly")
}
