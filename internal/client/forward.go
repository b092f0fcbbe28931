// Package client implements the store-and-forward loop: a producer that
// sweeps the providers on a fixed cadence and a consumer that coalesces
// batches, buffers them in the stash and transmits to the server with an
// at-least-once contract.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"thermoline/internal/metrics"
	"thermoline/internal/model"
	"thermoline/internal/provider"
	"thermoline/internal/stash"
)

// queueDepth bounds the producer to consumer queue. The consumer drains
// greedily every round, so with a multi-second cadence the queue never
// approaches the bound; a blocked send is backpressure, not loss.
const queueDepth = 4096

// Forwarder owns both halves of the client loop.
type Forwarder struct {
	Provider provider.Provider
	Stash    stash.Stash
	Server   string
	Prefix   string
	NameMap  map[string]model.ChannelID
	Period   time.Duration
	Metrics  *metrics.Client

	// HTTP overrides the transport; nil means http.DefaultClient.
	HTTP *http.Client

	queue chan provider.Batch
}

// Run starts the producer and consumer and blocks until ctx is cancelled.
// Death of either task while the other still runs is process-fatal.
func (f *Forwarder) Run(ctx context.Context) {
	f.queue = make(chan provider.Batch, queueDepth)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.runConsumer(ctx)
	}()
	f.runProducer(ctx)
	<-done
}

// runProducer sweeps the providers every Period and enqueues the result.
// Even empty sweeps are enqueued to keep the cadence observable. Closes
// the queue on cancellation.
func (f *Forwarder) runProducer(ctx context.Context) {
	defer close(f.queue)
	ticker := time.NewTicker(f.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		batch, errs := f.Provider.Measure(ctx)
		for _, err := range errs {
			log.Printf("[client] provider error: %v", err)
		}
		if f.Metrics != nil {
			f.Metrics.BatchesProduced.Inc()
			f.Metrics.ProviderErrors.Add(float64(len(errs)))
		}

		select {
		case f.queue <- batch:
		case <-ctx.Done():
			return
		}
	}
}

// runConsumer drains the queue, coalesces, renames, stashes and
// transmits, clearing the stash only on a 2xx acknowledgement.
func (f *Forwarder) runConsumer(ctx context.Context) {
	for {
		batches, ok := f.drain(ctx)
		if !ok {
			if ctx.Err() == nil {
				log.Fatalf("[client] producer died, aborting")
			}
			return
		}

		batch := f.rename(model.MergeGroups(batches...))

		stored := true
		if err := f.Stash.Store(batch); err != nil {
			// The batch survives in memory for this round only.
			stored = false
			log.Printf("[client] stash store error: %v", err)
		}

		var stashed model.Measurements
		guard, err := f.Stash.Load()
		if err != nil {
			log.Printf("[client] stash load error: %v", err)
		} else {
			stashed = guard.Measurements()
			if stored {
				// The just-stored batch is represented by the load.
				batch = nil
			}
		}

		body := model.MergeGroups(stashed.Clone(), batch)
		if f.Metrics != nil {
			f.Metrics.StashChannels.Set(float64(len(stashed)))
			f.Metrics.SendAttempts.Inc()
		}
		if err := f.transmit(ctx, body); err != nil {
			// Keep the stash; the next round re-sends.
			log.Printf("[client] error sending measurements: %v", err)
			if f.Metrics != nil {
				f.Metrics.SendFailures.Inc()
			}
			continue
		}

		if guard != nil {
			if _, err := guard.Remove(); err != nil {
				log.Printf("[client] stash clear error: %v", err)
			}
		}
	}
}

// drain blocks for at least one batch, then greedily takes everything
// currently queued. ok is false once the queue is closed and empty.
func (f *Forwarder) drain(ctx context.Context) ([]provider.Batch, bool) {
	first, ok := <-f.queue
	if !ok {
		return nil, false
	}
	batches := []provider.Batch{first}
	for {
		select {
		case batch, ok := <-f.queue:
			if !ok {
				return batches, true
			}
			batches = append(batches, batch)
		default:
			return batches, true
		}
	}
}

// rename maps local sensor names to final channel ids: the name_map entry
// when present, else the local name with dashes stripped, validated and
// prefixed. Invalid names and post-rename collisions are dropped with a
// logged error; they never abort the batch.
func (f *Forwarder) rename(batch provider.Batch) model.Measurements {
	out := make(model.Measurements, len(batch))
	for local, points := range batch {
		mapped, ok := f.NameMap[local]
		if !ok {
			var err error
			mapped, err = model.ParseChannelID(strings.ReplaceAll(local, "-", ""))
			if err != nil {
				log.Printf("[client] dropping channel: %v", err)
				continue
			}
		}
		final := model.ChannelID(f.Prefix + string(mapped))
		if _, exists := out[final]; exists {
			log.Printf("[client] dropping channel %q: renamed id %q collides", local, final)
			continue
		}
		out[final] = points
	}
	return out
}

func (f *Forwarder) transmit(ctx context.Context, meas model.Measurements) error {
	body, err := json.Marshal(model.ProvideRequest{Measurements: meas})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Server+"/provide", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := f.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}
