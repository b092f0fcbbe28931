// Package metrics holds the Prometheus instrumentation for both
// binaries and the HTTP server exposing it.
package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the server-side pipeline metrics.
type Server struct {
	ProvideRequests    prometheus.Counter
	PointsIngested     prometheus.Counter
	RecipientErrors    prometheus.Counter
	NotificationsSent  prometheus.Counter
	NotificationErrors prometheus.Counter
	OnlineChannels     prometheus.Gauge
}

// NewServer registers the server metrics on reg.
func NewServer(reg prometheus.Registerer) *Server {
	m := &Server{
		ProvideRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermoline_provide_requests_total",
			Help: "Total accepted /provide requests",
		}),
		PointsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermoline_points_ingested_total",
			Help: "Total measurement points ingested",
		}),
		RecipientErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermoline_recipient_errors_total",
			Help: "Total errors reported by recipients",
		}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermoline_notifications_sent_total",
			Help: "Total chat notifications delivered",
		}),
		NotificationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermoline_notification_errors_total",
			Help: "Total chat notification delivery failures",
		}),
		OnlineChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thermoline_online_channels",
			Help: "Channels currently considered online",
		}),
	}
	reg.MustRegister(
		m.ProvideRequests, m.PointsIngested, m.RecipientErrors,
		m.NotificationsSent, m.NotificationErrors, m.OnlineChannels,
	)
	return m
}

// Client holds the client-side forwarding metrics.
type Client struct {
	BatchesProduced prometheus.Counter
	ProviderErrors  prometheus.Counter
	SendAttempts    prometheus.Counter
	SendFailures    prometheus.Counter
	StashChannels   prometheus.Gauge
}

// NewClient registers the client metrics on reg.
func NewClient(reg prometheus.Registerer) *Client {
	m := &Client{
		BatchesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermoline_batches_produced_total",
			Help: "Total measurement sweeps produced",
		}),
		ProviderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermoline_provider_errors_total",
			Help: "Total per-sensor provider errors",
		}),
		SendAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermoline_send_attempts_total",
			Help: "Total batch transmissions attempted",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermoline_send_failures_total",
			Help: "Total batch transmissions that failed",
		}),
		StashChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thermoline_stash_channels",
			Help: "Channels currently held in the unacknowledged stash",
		}),
	}
	reg.MustRegister(
		m.BatchesProduced, m.ProviderErrors, m.SendAttempts,
		m.SendFailures, m.StashChannels,
	)
	return m
}

// Serve exposes the gatherer on addr under /metrics until ctx is
// cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[metrics] serving on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("[metrics] server error: %v", err)
	}
}
