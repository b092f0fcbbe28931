package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thermoline/internal/model"
)

type fakeProvider struct {
	batch Batch
	errs  []error
}

func (f fakeProvider) Measure(ctx context.Context) (Batch, []error) {
	return f.batch, f.errs
}

func TestComposite_MergesBatchesAndErrors(t *testing.T) {
	p := func(v float64) model.Point { return model.Point{Value: v, Time: time.Unix(int64(v), 0)} }
	boom := errors.New("boom")

	c := Composite{
		fakeProvider{batch: Batch{"a": {p(1)}, "shared": {p(2)}}},
		fakeProvider{batch: Batch{"b": {p(3)}, "shared": {p(4)}}, errs: []error{boom}},
	}
	batch, errs := c.Measure(context.Background())

	require.Len(t, batch, 3)
	assert.Len(t, batch["a"], 1)
	assert.Len(t, batch["b"], 1)
	// Colliding local names concatenate, nothing is lost.
	assert.Len(t, batch["shared"], 2)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
}

func TestComposite_Empty(t *testing.T) {
	batch, errs := Composite{}.Measure(context.Background())
	assert.Empty(t, batch)
	assert.Empty(t, errs)
}

func TestDummy_ValueWithinEnvelope(t *testing.T) {
	d := NewDummy()
	batch, errs := d.Measure(context.Background())
	require.Empty(t, errs)
	require.Len(t, batch["dummy"], 1)

	v := batch["dummy"][0].Value
	assert.GreaterOrEqual(t, v, d.Offset-d.Mag)
	assert.LessOrEqual(t, v, d.Offset+d.Mag)
}

func TestParseTemperature(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want float64
	}{
		{"single", "21500\n", 21.5},
		{"two lines takes last", "21000\n21500\n", 21.5},
		{"median filters glitch", "21000\n85000\n21500\n", 21.5},
		{"median of last three", "10000\n21000\n21500\n22000\n", 21.5},
		{"negative", "-5500\n", -5.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseTemperature(tc.in)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}

	_, err := parseTemperature("")
	assert.Error(t, err)
	_, err = parseTemperature("21.5\n")
	assert.Error(t, err)
}

func TestW1Therm_ReadsSlavesSkipsMaster(t *testing.T) {
	dir := t.TempDir()
	write := func(slave, content string) {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, slave), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, slave, "temperature"), []byte(content), 0o644))
	}
	write("28-0000075b09ff", "21500\n")
	write("28-0000075b0a00", "not a number\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "w1_bus_master1"), 0o755))

	w := &W1Therm{Dir: dir}
	batch, errs := w.Measure(context.Background())

	require.Len(t, batch, 1)
	require.Len(t, batch["28-0000075b09ff"], 1)
	assert.InDelta(t, 21.5, batch["28-0000075b09ff"][0].Value, 1e-9)
	assert.Len(t, errs, 1)
}

func TestW1Therm_MissingDir(t *testing.T) {
	w := &W1Therm{Dir: filepath.Join(t.TempDir(), "nope")}
	batch, errs := w.Measure(context.Background())
	assert.Empty(t, batch)
	require.Len(t, errs, 1)
}
