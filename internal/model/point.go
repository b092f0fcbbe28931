package model

import (
	"encoding/json"
	"time"
)

// Point is a single measured value with its wall-clock timestamp.
// On the wire the timestamp is unsigned seconds since the Unix epoch;
// pre-epoch instants serialize as 0.
type Point struct {
	Value float64
	Time  time.Time
}

type wirePoint struct {
	Value float64 `json:"value"`
	Time  uint64  `json:"time"`
}

func (p Point) MarshalJSON() ([]byte, error) {
	secs := p.Time.Unix()
	if secs < 0 {
		secs = 0
	}
	return json.Marshal(wirePoint{Value: p.Value, Time: uint64(secs)})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var w wirePoint
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Value = w.Value
	p.Time = time.Unix(int64(w.Time), 0).UTC()
	return nil
}
