package provider

import (
	"context"
	"math"
	"time"

	"thermoline/internal/model"
)

// Dummy emits a sinusoid on a single fixed channel. It never fails, which
// makes it the provider of choice for exercising the pipeline end to end.
type Dummy struct {
	Name   string
	Offset float64
	Mag    float64
	Period time.Duration
	Start  time.Time
}

func NewDummy() *Dummy {
	return &Dummy{
		Name:   "dummy",
		Offset: 40.0,
		Mag:    20.0,
		Period: 600 * time.Second,
		Start:  time.Now(),
	}
}

func (d *Dummy) Measure(ctx context.Context) (Batch, []error) {
	now := time.Now()
	elapsed := now.Sub(d.Start).Seconds()
	value := d.Mag*math.Sin(math.Pi*elapsed/d.Period.Seconds()) + d.Offset
	return Batch{d.Name: {point(value, now)}}, nil
}

func point(value float64, t time.Time) model.Point {
	return model.Point{Value: value, Time: t}
}
