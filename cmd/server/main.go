package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"thermoline/config"
	"thermoline/internal/logger"
	"thermoline/internal/metrics"
	"thermoline/internal/recipient"
	"thermoline/internal/server"
	"thermoline/internal/statistics"
	"thermoline/internal/storage"
	"thermoline/internal/telegram"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: server <config.toml>")
		os.Exit(2)
	}
	cfg, err := config.LoadServer(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Init("server", logger.ParseLevel(cfg.Log.Level))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	store, err := storage.Open(cfg.Storage.Type, cfg.Storage.Path, cfg.Storage.Addr, cfg.Storage.Password)
	if err != nil {
		log.Fatalf("[server] storage init failed: %v", err)
	}
	log.Printf("[server] %s storage ready", cfg.Storage.Type)

	reg := prometheus.NewRegistry()
	m := metrics.NewServer(reg)
	if cfg.Metrics.Addr != "" {
		go metrics.Serve(ctx, cfg.Metrics.Addr, reg)
	}

	var recipients recipient.List
	if cfg.DB != nil {
		if cfg.DB.Postgres != nil {
			db, err := recipient.OpenPostgresDB(cfg.DB.Postgres.DSN())
			if err != nil {
				log.Printf("[server] WARNING: postgres recipient init failed: %v (continuing without)", err)
			} else {
				defer db.Close()
				recipients = append(recipients, db)
			}
		}
		if cfg.DB.Sqlite != nil {
			db, err := recipient.OpenSqliteDB(cfg.DB.Sqlite.Path)
			if err != nil {
				log.Printf("[server] WARNING: sqlite recipient init failed: %v (continuing without)", err)
			} else {
				defer db.Close()
				recipients = append(recipients, db)
			}
		}
	}

	if cfg.Telegram != nil && cfg.Telegram.Token != "" {
		bot := telegram.NewClient(cfg.Telegram.Token)
		alert := telegram.New(ctx, bot, store, m)
		recipients = append(recipients, alert)
		go alert.RunPoll(ctx)
		go alert.RunMonitor(ctx)
		log.Println("[server] telegram bot started")
	}

	stats := statistics.New()
	hub := server.NewHub()
	handler := server.NewHandler(stats, recipients, hub, m)
	mux := server.NewMux(cfg.HTTP.Prefix, handler, "./static")

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: mux,
	}
	go func() {
		<-sigCh
		log.Println("[server] shutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[server] listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[server] http server failed: %v", err)
	}
}
