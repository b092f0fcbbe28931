package statistics

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"thermoline/internal/model"
)

// ChannelStatistics is the derived snapshot of one channel window.
// Last is nil and Mean is NaN on an empty window; Min/Max carry the
// fold identities +Inf/-Inf.
type ChannelStatistics struct {
	Last *model.Point
	Mean float64
	Min  float64
	Max  float64
}

type wireStats struct {
	Last *model.Point `json:"last"`
	Mean *float64     `json:"mean"`
	Min  *float64     `json:"min"`
	Max  *float64     `json:"max"`
}

// MarshalJSON emits null for the non-finite values an empty window
// produces, since JSON has no encoding for NaN or infinities.
func (s ChannelStatistics) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireStats{
		Last: s.Last,
		Mean: finite(s.Mean),
		Min:  finite(s.Min),
		Max:  finite(s.Max),
	})
}

func (s *ChannelStatistics) UnmarshalJSON(data []byte) error {
	var w wireStats
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Last = w.Last
	s.Mean = math.NaN()
	s.Min = math.Inf(1)
	s.Max = math.Inf(-1)
	if w.Mean != nil {
		s.Mean = *w.Mean
	}
	if w.Min != nil {
		s.Min = *w.Min
	}
	if w.Max != nil {
		s.Max = *w.Max
	}
	return nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// String renders the human-readable digest block for one channel.
func (s ChannelStatistics) String() string {
	var b strings.Builder
	b.WriteString("last seen: ")
	if s.Last == nil {
		b.WriteString("never\n")
		return b.String()
	}
	fmt.Fprintf(&b, "%s\n", s.Last.Time.Local().Format("02.01.2006 15:04:05"))
	fmt.Fprintf(&b, "last: %.1f °C\n", s.Last.Value)
	fmt.Fprintf(&b, "min: %.1f °C\n", s.Min)
	fmt.Fprintf(&b, "max: %.1f °C\n", s.Max)
	fmt.Fprintf(&b, "average: %.1f °C\n", s.Mean)
	return b.String()
}
