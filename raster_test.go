package racmo

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStack(t *testing.T, layers, ny, nx int) *Stack {
	t.Helper()
	data := sparse.ZerosDense(layers, ny, nx)
	for i := range data.Elements {
		data.Elements[i] = float64(i)
	}
	bounds := &geom.Bounds{
		Min: geom.Point{X: 5.0, Y: 52.0},
		Max: geom.Point{X: 5.0 + 0.5*float64(nx-1), Y: 52.0 + 0.5*float64(ny-1)},
	}
	sr, err := proj.Parse(SourceProj4)
	require.NoError(t, err)
	names := make([]string, layers)
	for i := range names {
		names[i] = "v_2050-01-0" + string(rune('1'+i))
	}
	s, err := NewStack(data, bounds, sr, names)
	require.NoError(t, err)
	return s
}

func TestNewStackValidation(t *testing.T) {
	sr, err := proj.Parse(SourceProj4)
	require.NoError(t, err)
	bounds := &geom.Bounds{Min: geom.Point{X: 0, Y: 0}, Max: geom.Point{X: 1, Y: 1}}

	_, err = NewStack(sparse.ZerosDense(2, 2), bounds, sr, []string{"a", "b"})
	assert.Error(t, err, "2-D data")

	_, err = NewStack(sparse.ZerosDense(2, 2, 2), bounds, sr, []string{"a"})
	assert.Error(t, err, "name count mismatch")

	_, err = NewStack(sparse.ZerosDense(2, 1, 2), bounds, sr, []string{"a", "b"})
	assert.Error(t, err, "degenerate grid")
}

func TestProjectIdentity(t *testing.T) {
	s := testStack(t, 2, 3, 4)
	dst, err := proj.Parse(SourceProj4)
	require.NoError(t, err)

	p, err := s.Project(dst)
	require.NoError(t, err)

	assert.Equal(t, s.Layers(), p.Layers())
	assert.Equal(t, s.Rows(), p.Rows())
	assert.Equal(t, s.Cols(), p.Cols())
	assert.Equal(t, s.Names(), p.Names())
	assert.Same(t, dst, p.SR())

	b := p.Bounds()
	assert.InDelta(t, 5.0, b.Min.X, 1e-6)
	assert.InDelta(t, 6.5, b.Max.X, 1e-6)
	assert.InDelta(t, 52.0, b.Min.Y, 1e-6)
	assert.InDelta(t, 53.0, b.Max.Y, 1e-6)

	// A lon/lat to lon/lat projection resamples every cell onto itself.
	for l := 0; l < s.Layers(); l++ {
		for iy := 0; iy < s.Rows(); iy++ {
			for ix := 0; ix < s.Cols(); ix++ {
				assert.InDelta(t, s.At(l, iy, ix), p.At(l, iy, ix), 1e-9)
			}
		}
	}
}

// Projecting a stack onto its own spatial reference must behave as the
// identity: NewTransform signals equal references with a nil
// Transformer rather than an identity function.
func TestProjectSameReference(t *testing.T) {
	s := testStack(t, 2, 3, 4)

	p, err := s.Project(s.SR())
	require.NoError(t, err)

	assert.Same(t, s.SR(), p.SR())
	assert.Equal(t, s.Names(), p.Names())
	for l := 0; l < s.Layers(); l++ {
		for iy := 0; iy < s.Rows(); iy++ {
			for ix := 0; ix < s.Cols(); ix++ {
				assert.Equal(t, s.At(l, iy, ix), p.At(l, iy, ix))
			}
		}
	}
}

func TestProjectToTarget(t *testing.T) {
	s := testStack(t, 3, 4, 4)
	dst, err := proj.Parse(TargetProj4)
	require.NoError(t, err)

	p, err := s.Project(dst)
	require.NoError(t, err)

	assert.Equal(t, 3, p.Layers())
	assert.Equal(t, s.Names(), p.Names())
	assert.Same(t, dst, p.SR())

	// The domain straddles the UTM zone 31 central meridian near 52N,
	// so projected coordinates must be metric and of that magnitude.
	b := p.Bounds()
	assert.Greater(t, b.Min.X, 1e5)
	assert.Less(t, b.Max.X, 1e6)
	assert.Greater(t, b.Min.Y, 5e6)
	assert.Less(t, b.Max.Y, 7e6)

	// The grid center must land inside the source grid.
	center := p.At(0, p.Rows()/2, p.Cols()/2)
	assert.False(t, math.IsNaN(center))

	// Projection never invents values: every finite cell must occur in
	// the source layer.
	src := map[float64]bool{}
	for iy := 0; iy < s.Rows(); iy++ {
		for ix := 0; ix < s.Cols(); ix++ {
			src[s.At(0, iy, ix)] = true
		}
	}
	for iy := 0; iy < p.Rows(); iy++ {
		for ix := 0; ix < p.Cols(); ix++ {
			if v := p.At(0, iy, ix); !math.IsNaN(v) {
				assert.True(t, src[v], "unexpected value %v", v)
			}
		}
	}
}
