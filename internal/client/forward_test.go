package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thermoline/internal/model"
	"thermoline/internal/provider"
	"thermoline/internal/stash"
)

func TestRename(t *testing.T) {
	f := &Forwarder{
		Prefix: "lab.",
		NameMap: map[string]model.ChannelID{
			"probe-1": "kitchen",
		},
	}
	points := []model.Point{{Value: 1, Time: time.Unix(10, 0)}}
	out := f.rename(provider.Batch{
		"probe-1":  points, // mapped explicitly
		"x-1":      points, // dashes stripped
		"bad name": points, // invalid even after stripping, dropped
	})

	require.Len(t, out, 2)
	assert.Contains(t, out, model.ChannelID("lab.kitchen"))
	assert.Contains(t, out, model.ChannelID("lab.x1"))
}

func TestRename_CollisionDropped(t *testing.T) {
	f := &Forwarder{}
	points := []model.Point{{Value: 1, Time: time.Unix(10, 0)}}
	out := f.rename(provider.Batch{
		"x-1": points,
		"x1":  points,
	})
	// Both strip to "x1"; exactly one survives.
	require.Len(t, out, 1)
	assert.Contains(t, out, model.ChannelID("x1"))
}

func TestDrain_Coalesces(t *testing.T) {
	f := &Forwarder{queue: make(chan provider.Batch, 8)}
	f.queue <- provider.Batch{"a": nil}
	f.queue <- provider.Batch{"b": nil}
	f.queue <- provider.Batch{"c": nil}

	batches, ok := f.drain(context.Background())
	require.True(t, ok)
	assert.Len(t, batches, 3)
}

func TestDrain_ClosedQueue(t *testing.T) {
	f := &Forwarder{queue: make(chan provider.Batch)}
	close(f.queue)
	_, ok := f.drain(context.Background())
	assert.False(t, ok)
}

func TestTransmit_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := &Forwarder{Server: srv.URL}
	err := f.transmit(context.Background(), model.Measurements{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

type seqProvider struct {
	mu sync.Mutex
	n  int
}

func (p *seqProvider) Measure(ctx context.Context) (provider.Batch, []error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	return provider.Batch{
		"probe": {{Value: float64(p.n), Time: time.Unix(1000+int64(p.n), 0)}},
	}, nil
}

// Points produced while the server rejects batches must show up in the
// first accepted request.
func TestForwarder_RetainsAcrossFailedSends(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []model.Measurements
		failures = 2
	)
	accepted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.ProvideRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		mu.Lock()
		defer mu.Unlock()
		requests = append(requests, req.Measurements)
		if len(requests) <= failures {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("Accepted"))
		if len(requests) == failures+1 {
			close(accepted)
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f := &Forwarder{
		Provider: &seqProvider{},
		Stash:    stash.NewMem(),
		Server:   srv.URL,
		Period:   5 * time.Millisecond,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Run(ctx)
	}()

	select {
	case <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("no accepted request")
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(requests), failures+1)

	// Every point offered in a rejected request reappears in the first
	// accepted one.
	got := requests[failures]["probe"]
	seen := make(map[int64]bool, len(got))
	for _, p := range got {
		seen[p.Time.Unix()] = true
	}
	for i := 0; i < failures; i++ {
		for _, p := range requests[i]["probe"] {
			assert.True(t, seen[p.Time.Unix()], "point %v lost", p.Time.Unix())
		}
	}
}

// After an acknowledged send the stash is empty and subsequent requests
// do not repeat old points.
func TestForwarder_ClearsStashOnAck(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []model.Measurements
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.ProvideRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		requests = append(requests, req.Measurements)
		mu.Unlock()
		w.Write([]byte("Accepted"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	st := stash.NewMem()
	f := &Forwarder{
		Provider: &seqProvider{},
		Stash:    st,
		Server:   srv.URL,
		Period:   5 * time.Millisecond,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(requests) >= 3
	}, 5*time.Second, time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	seen := make(map[int64]int)
	for _, meas := range requests {
		for _, p := range meas["probe"] {
			seen[p.Time.Unix()]++
		}
	}
	for ts, count := range seen {
		assert.Equal(t, 1, count, "point %d delivered more than once", ts)
	}
}
