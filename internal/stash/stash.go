// Package stash buffers measurement batches that the server has not yet
// acknowledged. Store merges the incoming batch into the accumulated map;
// the guard returned by Load exposes Remove, which atomically takes the
// whole accumulation and empties the stash. Any implementation must keep
// this merge-on-store, take-on-remove law.
package stash

import "thermoline/internal/model"

// Stash is the client's local buffer of unacknowledged batches.
type Stash interface {
	Store(meas model.Measurements) error
	Load() (Guard, error)
}

// Guard is a read view over the stash contents at Load time.
type Guard interface {
	// Measurements returns the snapshot taken at Load. Callers must not
	// mutate it.
	Measurements() model.Measurements

	// Remove takes the snapshot out of the stash and returns it. Batches
	// stored after the guard was taken stay in the stash.
	Remove() (model.Measurements, error)
}

// subtract drops the snapshot from the accumulation. Stores only ever
// append, so each snapshot point list is a prefix of the current one.
func subtract(acc, snapshot model.Measurements) model.Measurements {
	out := make(model.Measurements)
	for ch, points := range acc {
		if n := len(snapshot[ch]); n < len(points) {
			out[ch] = append([]model.Point(nil), points[n:]...)
		}
	}
	return out
}
