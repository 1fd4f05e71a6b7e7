package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/backup"
	"inkwell/internal/config"
	"inkwell/internal/db"
	httpx "inkwell/internal/http"
	"inkwell/internal/mail"

	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, _ := config.Load()

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connect failed")
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	jwtSvc := auth.NewJWT(cfg.JWTSecret)

	jobs, err := backup.NewManager(cfg.BackupDir, cfg.JobRetention, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("backup manager init failed")
	}
	source := backup.NewSource(gdb)
	exporter := &backup.Exporter{
		Jobs:         jobs,
		Source:       source,
		Mailer:       mail.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom),
		Log:          logger,
		FetchTimeout: cfg.ExportTimeout,
		MaxNotes:     cfg.ExportMaxNotes,
		MaxBlocks:    cfg.ExportMaxBlocks,
	}

	r := httpx.NewRouter(cfg, httpx.Deps{
		DB:       gdb,
		JWT:      jwtSvc,
		Jobs:     jobs,
		Exporter: exporter,
		Source:   source,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go jobs.RunCleanup(ctx, cfg.CleanupInterval)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
