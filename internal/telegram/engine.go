// Package telegram implements the alert recipient: a chat bot that tracks
// per-channel online state and value-range subscriptions, persisted in a
// storage backend, and notifies subscribed chats on transitions.
package telegram

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"thermoline/internal/metrics"
	"thermoline/internal/model"
	"thermoline/internal/statistics"
	"thermoline/internal/storage"
)

const digestPeriod = 24 * time.Hour

// ChannelState is the runtime (non-persisted) view of one channel.
type ChannelState struct {
	Values     statistics.ChannelHistory
	LastUpdate time.Time
	HasUpdate  bool
	Online     bool
}

// Recipient is the alert engine. It consumes every ingested batch,
// updates runtime channel state, and emits online/offline and
// in-range/out-of-range transitions to subscribed chats.
//
// Lock order is state before settings whenever both are held.
type Recipient struct {
	api      API
	settings *storage.Stored[Settings]
	metrics  *metrics.Server
	now      func() time.Time

	mu    sync.RWMutex
	state map[model.ChannelID]*ChannelState
}

// New loads Settings from store (default on miss or decode error) and
// builds the engine. Run RunPoll and RunMonitor to make it live.
func New(ctx context.Context, api API, store storage.Storage, m *metrics.Server) *Recipient {
	return &Recipient{
		api:      api,
		settings: storage.LoadStored(ctx, store, SettingsKey, DefaultSettings()),
		metrics:  m,
		now:      time.Now,
		state:    make(map[model.ChannelID]*ChannelState),
	}
}

type note struct {
	chat ChatID
	text string
}

// Update is the recipient entry point for ingested batches. Notifications
// are sent after the state lock is released; send failures are returned,
// never retried inline. Settings are rewritten at most once per batch,
// and only when a subscription latch flipped.
func (r *Recipient) Update(ctx context.Context, meas model.Measurements) []error {
	var notes []note

	r.mu.Lock()
	err := r.settings.UpdateIf(ctx, func(s *Settings) bool {
		changed := false
		for ch, points := range meas {
			if len(points) == 0 {
				continue
			}
			st, ok := r.state[ch]
			if !ok {
				st = &ChannelState{}
				r.state[ch] = st
			}
			if st.Values.Update(points) == 0 {
				// Nothing but stale points: no history change, no
				// transitions.
				continue
			}
			valueRange := batchRange(points)
			becomesOnline := !st.Online
			st.Online = true
			st.LastUpdate = r.now()
			st.HasUpdate = true

			for id, chat := range s.Chats {
				sub, subscribed := chat.Subscriptions[ch]
				if !subscribed {
					continue
				}
				if becomesOnline {
					notes = append(notes, note{id, fmt.Sprintf("`%s` is online.", ch)})
				}
				switch {
				case !sub.IsBad && !sub.NormalRange.Contains(valueRange):
					sub.IsBad = true
					chat.Subscriptions[ch] = sub
					changed = true
					notes = append(notes, note{id, fmt.Sprintf(
						"Alert! `%s` is out of normal range [%.1f, %.1f].",
						ch, sub.NormalRange.Low, sub.NormalRange.High)})
				case sub.IsBad && sub.NormalRange.Shrink(s.Common.Hysteresis).Contains(valueRange):
					sub.IsBad = false
					chat.Subscriptions[ch] = sub
					changed = true
					notes = append(notes, note{id, fmt.Sprintf("`%s` returned to normal.", ch)})
				}
			}
		}
		return changed
	})
	r.mu.Unlock()

	errs := r.send(ctx, notes)
	if err != nil {
		errs = append(errs, err)
	}
	return errs
}

func batchRange(points []model.Point) Range {
	r := Range{Low: points[0].Value, High: points[0].Value}
	for _, p := range points[1:] {
		if p.Value < r.Low {
			r.Low = p.Value
		}
		if p.Value > r.High {
			r.High = p.Value
		}
	}
	return r
}

func (r *Recipient) send(ctx context.Context, notes []note) []error {
	var errs []error
	for _, n := range notes {
		if err := r.api.SendMessage(ctx, n.chat, n.text); err != nil {
			errs = append(errs, fmt.Errorf("send to chat %d: %w", n.chat, err))
			if r.metrics != nil {
				r.metrics.NotificationErrors.Inc()
			}
			continue
		}
		if r.metrics != nil {
			r.metrics.NotificationsSent.Inc()
		}
	}
	return errs
}

// RunMonitor wakes every offline_timeout/2, flips stale channels offline
// (the sole source of offline transitions) and pushes the daily digest.
// Blocks until ctx is cancelled.
func (r *Recipient) RunMonitor(ctx context.Context) {
	lastDigest := r.now()
	for {
		var timeout time.Duration
		r.settings.View(func(s *Settings) { timeout = s.Common.OfflineTimeout() })

		select {
		case <-ctx.Done():
			return
		case <-time.After(timeout / 2):
		}

		notes := r.monitorTick()
		if now := r.now(); now.Sub(lastDigest) >= digestPeriod {
			lastDigest = now
			notes = append(notes, r.digestNotes()...)
		}
		for _, err := range r.send(ctx, notes) {
			log.Printf("[telegram] error sending notification: %v", err)
		}
	}
}

// monitorTick performs one offline sweep and returns the notifications
// to deliver.
func (r *Recipient) monitorTick() []note {
	now := r.now()
	var notes []note

	r.mu.Lock()
	r.settings.View(func(s *Settings) {
		timeout := s.Common.OfflineTimeout()
		online := 0
		for ch, st := range r.state {
			if st.HasUpdate && st.Online && st.LastUpdate.Add(timeout).Before(now) {
				st.Online = false
				for _, id := range s.subscribers(ch) {
					notes = append(notes, note{id, fmt.Sprintf("Alert! `%s` is offline.", ch)})
				}
			}
			if st.Online {
				online++
			}
		}
		if r.metrics != nil {
			r.metrics.OnlineChannels.Set(float64(online))
		}
	})
	r.mu.Unlock()
	return notes
}

// digestNotes builds the periodic all-channels digest for every chat
// holding at least one subscription.
func (r *Recipient) digestNotes() []note {
	digest := r.fullDigest()
	var notes []note
	r.settings.View(func(s *Settings) {
		for id, chat := range s.Chats {
			if chat != nil && len(chat.Subscriptions) > 0 {
				notes = append(notes, note{id, digest})
			}
		}
	})
	return notes
}
