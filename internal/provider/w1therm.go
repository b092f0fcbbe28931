package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultW1Dir is where the kernel one-wire subsystem exposes its slaves.
const DefaultW1Dir = "/sys/bus/w1/devices"

// W1Therm reads DS18B20-style temperature sensors from the one-wire sysfs
// tree. Each slave directory carries a "temperature" file holding the
// reading in millidegrees.
type W1Therm struct {
	Dir string
}

func NewW1Therm() *W1Therm {
	return &W1Therm{Dir: DefaultW1Dir}
}

func (w *W1Therm) Measure(ctx context.Context) (Batch, []error) {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return Batch{}, []error{err}
	}

	batch := make(Batch)
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		name := entry.Name()
		if strings.HasPrefix(name, "w1_bus_master") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(w.Dir, name, "temperature"))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		value, err := parseTemperature(string(raw))
		if err != nil {
			errs = append(errs, fmt.Errorf("sensor %s: %w", name, err))
			continue
		}
		batch[name] = append(batch[name], point(value, time.Now()))
	}
	return batch, errs
}

// parseTemperature parses the millidegree reading. Some driver revisions
// repeat the conversion on retry, one integer per line; the median of the
// last three lines filters out single-shot glitches.
func parseTemperature(s string) (float64, error) {
	var samples []int64
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse temperature %q: %w", line, err)
		}
		samples = append(samples, n)
	}
	switch {
	case len(samples) == 0:
		return 0, fmt.Errorf("empty temperature file")
	case len(samples) < 3:
		return float64(samples[len(samples)-1]) * 1e-3, nil
	}
	last := append([]int64(nil), samples[len(samples)-3:]...)
	sort.Slice(last, func(i, j int) bool { return last[i] < last[j] })
	return float64(last[1]) * 1e-3, nil
}
