// Package recipient defines the server-side sinks every ingested batch is
// fanned out to. Recipient errors are reported, never propagated: the
// ingress acknowledges a batch as soon as it parsed.
package recipient

import (
	"context"

	"thermoline/internal/model"
)

// Recipient consumes every ingested batch. The returned errors are
// per-item failures; a non-empty list does not mean the batch was lost.
type Recipient interface {
	Update(ctx context.Context, meas model.Measurements) []error
}

// List invokes each child in order with its own clone of the batch and
// concatenates the returned errors. One misbehaving recipient cannot
// prevent the others from running.
type List []Recipient

func (l List) Update(ctx context.Context, meas model.Measurements) []error {
	var errs []error
	for _, r := range l {
		errs = append(errs, r.Update(ctx, meas.Clone())...)
	}
	return errs
}
