package ncgrid

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeesVanImmerzeel/racmo/internal/nctest"
)

func writeFixture(t *testing.T, f nctest.Fixture) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.nc")
	require.NoError(t, nctest.Write(path, f))
	return path
}

func TestGrid(t *testing.T) {
	// 2 time steps on a 2x3 grid, latitudes stored north to south.
	path := writeFixture(t, nctest.Fixture{
		Var: "precip",
		Data: []float32{
			// t=0: northern row first.
			10, 11, 12,
			20, 21, 22,
			// t=1
			30, 31, 32,
			40, 41, 42,
		},
		Lon:       []float64{5.0, 5.5, 6.0},
		Lat:       []float64{52.5, 52.0},
		Time:      []float64{0, 1},
		TimeUnits: "days since 2050-01-01",
		Calendar:  "standard",
	})

	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	data, err := d.Grid("precip")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 3}, data.Shape)

	// Rows must come back south to north.
	assert.Equal(t, 20.0, data.Get(0, 0, 0))
	assert.Equal(t, 10.0, data.Get(0, 1, 0))
	assert.Equal(t, 42.0, data.Get(1, 0, 2))
	assert.Equal(t, 32.0, data.Get(1, 1, 2))

	b := d.Extent()
	assert.Equal(t, 5.0, b.Min.X)
	assert.Equal(t, 6.0, b.Max.X)
	assert.Equal(t, 52.0, b.Min.Y)
	assert.Equal(t, 52.5, b.Max.Y)
}

func TestGridUnpacking(t *testing.T) {
	path := writeFixture(t, nctest.Fixture{
		Var:         "t2m",
		Data:        []float32{100, 200, -99, 400},
		Lon:         []float64{5.0, 5.5},
		Lat:         []float64{52.0, 52.5},
		Time:        []float64{0},
		TimeUnits:   "days since 2050-01-01",
		ScaleFactor: 0.1,
		AddOffset:   273.15,
		FillValue:   -99,
		HasFill:     true,
	})

	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	data, err := d.Grid("t2m")
	require.NoError(t, err)
	assert.InDelta(t, 283.15, data.Get(0, 0, 0), 1e-9)
	assert.InDelta(t, 293.15, data.Get(0, 0, 1), 1e-9)
	assert.True(t, math.IsNaN(data.Get(0, 1, 0)))
	assert.InDelta(t, 313.15, data.Get(0, 1, 1), 1e-9)
}

func TestTimeAxis(t *testing.T) {
	path := writeFixture(t, nctest.Fixture{
		Var:       "precip",
		Data:      make([]float32, 3*2*2),
		Lon:       []float64{5.0, 5.5},
		Lat:       []float64{52.0, 52.5},
		Time:      []float64{0, 1, 2},
		TimeUnits: "days since 2050-01-01",
		Calendar:  "360_day",
	})

	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	values, units, calendar, err := d.TimeAxis()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, values)
	assert.Equal(t, "days since 2050-01-01", units)
	assert.Equal(t, "360_day", calendar)
}

func TestTimeAxisDefaultCalendar(t *testing.T) {
	path := writeFixture(t, nctest.Fixture{
		Var:       "precip",
		Data:      make([]float32, 4),
		Lon:       []float64{5.0, 5.5},
		Lat:       []float64{52.0, 52.5},
		Time:      []float64{0},
		TimeUnits: "days since 2050-01-01",
	})

	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	_, _, calendar, err := d.TimeAxis()
	require.NoError(t, err)
	assert.Equal(t, "standard", calendar)
}

func TestGridMissingVariable(t *testing.T) {
	path := writeFixture(t, nctest.Fixture{
		Var:       "precip",
		Data:      make([]float32, 4),
		Lon:       []float64{5.0, 5.5},
		Lat:       []float64{52.0, 52.5},
		Time:      []float64{0},
		TimeUnits: "days since 2050-01-01",
	})

	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Grid("nope")
	assert.Error(t, err)
}
