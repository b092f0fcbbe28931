// Package provider implements the sensor sources polled by the client.
// A provider returns one measurement batch per sweep, keyed by the
// provider's local sensor names. Per-sensor failures are surfaced in the
// returned error list while healthy sensors still appear in the batch.
package provider

import (
	"context"
	"sync"

	"thermoline/internal/model"
)

// Batch is a measurement sweep keyed by local sensor names. Names are raw
// at this point; renaming and validation happen in the client consumer.
type Batch map[string][]model.Point

// Provider produces one measurement batch per call. Measure never fails
// globally and must be safe to call repeatedly at the polling cadence.
type Provider interface {
	Measure(ctx context.Context) (Batch, []error)
}

// Composite polls all child providers concurrently, merges their batches
// (point lists concatenated on local name collisions) and concatenates
// their error lists.
type Composite []Provider

func (c Composite) Measure(ctx context.Context) (Batch, []error) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		batches = make([]Batch, len(c))
		errs    []error
	)
	for i, p := range c {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			batch, perrs := p.Measure(ctx)
			mu.Lock()
			batches[i] = batch
			errs = append(errs, perrs...)
			mu.Unlock()
		}(i, p)
	}
	wg.Wait()
	return model.MergeGroups(batches...), errs
}
