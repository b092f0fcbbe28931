package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"thermoline/config"
	"thermoline/internal/client"
	"thermoline/internal/logger"
	"thermoline/internal/metrics"
	"thermoline/internal/model"
	"thermoline/internal/provider"
	"thermoline/internal/stash"
	"thermoline/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: client <config.toml>")
		os.Exit(2)
	}
	cfg, err := config.LoadClient(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Init("client", logger.ParseLevel(cfg.Log.Level))

	var providers provider.Composite
	for _, kind := range cfg.Providers {
		switch kind {
		case "w1_therm":
			providers = append(providers, provider.NewW1Therm())
			log.Println("[client] w1_therm provider created")
		case "dummy":
			providers = append(providers, provider.NewDummy())
			log.Println("[client] dummy provider created")
		default:
			log.Fatalf("[client] unknown provider kind %q", kind)
		}
	}

	nameMap := make(map[string]model.ChannelID, len(cfg.NameMap))
	for local, mapped := range cfg.NameMap {
		ch, err := model.ParseChannelID(mapped)
		if err != nil {
			log.Fatalf("[client] invalid name_map entry: %v", err)
		}
		nameMap[local] = ch
	}

	var st stash.Stash = stash.NewMem()
	if cfg.Storage != nil {
		backing, err := storage.Open(cfg.Storage.Type, cfg.Storage.Path, cfg.Storage.Addr, cfg.Storage.Password)
		if err != nil {
			log.Fatalf("[client] storage init failed: %v", err)
		}
		st = stash.NewStored(backing)
		log.Printf("[client] persistent stash via %s storage", cfg.Storage.Type)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[client] shutting down...")
		cancel()
	}()

	reg := prometheus.NewRegistry()
	m := metrics.NewClient(reg)
	if cfg.Metrics.Addr != "" {
		go metrics.Serve(ctx, cfg.Metrics.Addr, reg)
	}

	f := &client.Forwarder{
		Provider: providers,
		Stash:    st,
		Server:   cfg.Server,
		Prefix:   cfg.Prefix,
		NameMap:  nameMap,
		Period:   cfg.PeriodDuration(),
		Metrics:  m,
	}
	log.Printf("[client] forwarding to %s every %s", cfg.Server, cfg.PeriodDuration())
	f.Run(ctx)
}
