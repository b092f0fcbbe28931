// Package statistics maintains the server's in-memory per-channel sliding
// window and the summary snapshot derived from it. The window is for
// monitoring only; the database recipient is the archive.
package statistics

import (
	"math"
	"sort"
	"time"

	"thermoline/internal/model"
)

const (
	// MaxLen bounds the window point count.
	MaxLen = 20000
	// MaxDuration bounds the window age relative to its newest point.
	MaxDuration = 24 * time.Hour
)

// ChannelHistory is a bounded window of points in strictly increasing
// time order.
type ChannelHistory struct {
	window []model.Point
}

// Update appends new points and trims the window. Points not newer than
// the current last point are dropped. Returns the number of points
// actually appended.
func (h *ChannelHistory) Update(points []model.Point) int {
	fresh := make([]model.Point, 0, len(points))
	if n := len(h.window); n > 0 {
		last := h.window[n-1].Time
		for _, p := range points {
			if p.Time.After(last) {
				fresh = append(fresh, p)
			}
		}
	} else {
		fresh = append(fresh, points...)
	}
	if len(fresh) == 0 {
		return 0
	}
	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].Time.Before(fresh[j].Time) })

	// The incoming batch may itself carry duplicate timestamps; the
	// window stays strictly increasing.
	appended := 0
	for _, p := range fresh {
		if n := len(h.window); n > 0 && !p.Time.After(h.window[n-1].Time) {
			continue
		}
		h.window = append(h.window, p)
		appended++
	}
	h.trim()
	return appended
}

func (h *ChannelHistory) trim() {
	n := len(h.window)
	if n == 0 {
		return
	}
	cutoff := h.window[n-1].Time.Add(-MaxDuration)
	drop := sort.Search(n, func(i int) bool { return !h.window[i].Time.Before(cutoff) })
	if over := n - MaxLen; over > drop {
		drop = over
	}
	if drop > 0 {
		h.window = append(h.window[:0:0], h.window[drop:]...)
	}
}

// Len returns the current window length.
func (h *ChannelHistory) Len() int { return len(h.window) }

// Last returns the newest point, or false on an empty window.
func (h *ChannelHistory) Last() (model.Point, bool) {
	if len(h.window) == 0 {
		return model.Point{}, false
	}
	return h.window[len(h.window)-1], true
}

// Span returns the time covered by the window.
func (h *ChannelHistory) Span() time.Duration {
	if len(h.window) < 2 {
		return 0
	}
	return h.window[len(h.window)-1].Time.Sub(h.window[0].Time)
}

// Statistics computes the derived snapshot over the current window.
func (h *ChannelHistory) Statistics() ChannelStatistics {
	sum, min, max := 0.0, math.Inf(1), math.Inf(-1)
	for _, p := range h.window {
		sum += p.Value
		min = math.Min(min, p.Value)
		max = math.Max(max, p.Value)
	}
	stats := ChannelStatistics{
		Mean: sum / float64(len(h.window)),
		Min:  min,
		Max:  max,
	}
	if last, ok := h.Last(); ok {
		stats.Last = &last
	}
	return stats
}

// Statistics maps every channel seen since process start to its history.
// Entries are never evicted.
type Statistics struct {
	Channels map[model.ChannelID]*ChannelHistory
}

func New() *Statistics {
	return &Statistics{Channels: make(map[model.ChannelID]*ChannelHistory)}
}

// Update folds a batch into the per-channel windows.
func (s *Statistics) Update(meas model.Measurements) {
	for ch, points := range meas {
		history, ok := s.Channels[ch]
		if !ok {
			history = &ChannelHistory{}
			s.Channels[ch] = history
		}
		history.Update(points)
	}
}

// Snapshot derives the summary map served over HTTP.
func (s *Statistics) Snapshot() map[model.ChannelID]ChannelStatistics {
	out := make(map[model.ChannelID]ChannelStatistics, len(s.Channels))
	for ch, history := range s.Channels {
		out[ch] = history.Statistics()
	}
	return out
}
