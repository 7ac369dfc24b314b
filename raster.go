package racmo

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
)

// Spatial references used by the fetch pipeline, as proj4 strings.
// RACMO files come on a regular geographic lon/lat grid; fetched stacks
// are always delivered in the metric target projection.
const (
	SourceProj4 = "+proj=longlat +datum=WGS84 +no_defs"
	TargetProj4 = "+proj=utm +zone=31 +ellps=GRS80 +units=m +no_defs"
)

// Stack is an ordered collection of equally sized 2-D grids, one per
// time step, sharing one spatial reference. Rows run south to north,
// columns west to east. Grid coordinates refer to cell centers.
type Stack struct {
	data   *sparse.DenseArray // [layer, row, col]
	names  []string
	bounds *geom.Bounds
	sr     *proj.SR
}

// NewStack builds a stack from a [layer, row, col] array whose cell
// centers span bounds in the given spatial reference. One name per
// layer is required.
func NewStack(data *sparse.DenseArray, bounds *geom.Bounds, sr *proj.SR, names []string) (*Stack, error) {
	if len(data.Shape) != 3 {
		return nil, fmt.Errorf("racmo: stack data has %d dimensions, want 3", len(data.Shape))
	}
	if len(names) != data.Shape[0] {
		return nil, fmt.Errorf("racmo: %d layer names for %d layers", len(names), data.Shape[0])
	}
	if data.Shape[1] < 2 || data.Shape[2] < 2 {
		return nil, fmt.Errorf("racmo: stack grid is %dx%d, want at least 2x2", data.Shape[1], data.Shape[2])
	}
	return &Stack{data: data, names: names, bounds: bounds, sr: sr}, nil
}

// Layers returns the number of layers in the stack.
func (s *Stack) Layers() int { return s.data.Shape[0] }

// Rows returns the number of grid rows per layer.
func (s *Stack) Rows() int { return s.data.Shape[1] }

// Cols returns the number of grid columns per layer.
func (s *Stack) Cols() int { return s.data.Shape[2] }

// Names returns the layer names in layer order.
func (s *Stack) Names() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// Bounds returns the bounding box of the stack's cell centers.
func (s *Stack) Bounds() *geom.Bounds {
	return s.bounds.Copy()
}

// SR returns the stack's spatial reference.
func (s *Stack) SR() *proj.SR { return s.sr }

// At returns the value of the given cell.
func (s *Stack) At(layer, row, col int) float64 {
	return s.data.Get(layer, row, col)
}

// cell spacing between adjacent grid centers.
func (s *Stack) spacing() (dx, dy float64) {
	dx = (s.bounds.Max.X - s.bounds.Min.X) / float64(s.Cols()-1)
	dy = (s.bounds.Max.Y - s.bounds.Min.Y) / float64(s.Rows()-1)
	return dx, dy
}

// Project reprojects every layer of the stack into the dst spatial
// reference using nearest-neighbor resampling onto a grid with the same
// number of rows and columns. Cells that fall outside the source grid
// become NaN. The receiver is left unchanged.
func (s *Stack) Project(dst *proj.SR) (*Stack, error) {
	forward, err := s.sr.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("racmo: creating forward transform: %w", err)
	}
	inverse, err := dst.NewTransform(s.sr)
	if err != nil {
		return nil, fmt.Errorf("racmo: creating inverse transform: %w", err)
	}
	// NewTransform returns a nil Transformer when the two references
	// are equal.
	if forward == nil {
		forward = identityTransform
	}
	if inverse == nil {
		inverse = identityTransform
	}

	bounds, err := s.projectedBounds(forward)
	if err != nil {
		return nil, err
	}

	ny, nx := s.Rows(), s.Cols()
	dx, dy := s.spacing()
	dxOut := (bounds.Max.X - bounds.Min.X) / float64(nx-1)
	dyOut := (bounds.Max.Y - bounds.Min.Y) / float64(ny-1)

	out := sparse.ZerosDense(s.data.Shape...)
	for iy := 0; iy < ny; iy++ {
		y := bounds.Min.Y + float64(iy)*dyOut
		for ix := 0; ix < nx; ix++ {
			x := bounds.Min.X + float64(ix)*dxOut
			sx, sy, err := inverse(x, y)
			if err != nil {
				return nil, fmt.Errorf("racmo: inverse transform of (%g, %g): %w", x, y, err)
			}
			col := int(math.Round((sx - s.bounds.Min.X) / dx))
			row := int(math.Round((sy - s.bounds.Min.Y) / dy))
			inGrid := row >= 0 && row < ny && col >= 0 && col < nx
			for l := 0; l < s.Layers(); l++ {
				if inGrid {
					out.Set(s.data.Get(l, row, col), l, iy, ix)
				} else {
					out.Set(math.NaN(), l, iy, ix)
				}
			}
		}
	}
	return &Stack{data: out, names: s.Names(), bounds: bounds, sr: dst}, nil
}

func identityTransform(x, y float64) (float64, float64, error) {
	return x, y, nil
}

// projectedBounds transforms all boundary cell centers of the grid and
// returns their bounding box. Sampling the whole boundary rather than
// the four corners keeps curved edges inside the result.
func (s *Stack) projectedBounds(forward proj.Transformer) (*geom.Bounds, error) {
	ny, nx := s.Rows(), s.Cols()
	dx, dy := s.spacing()
	bounds := geom.NewBounds()
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			if iy != 0 && iy != ny-1 && ix != 0 && ix != nx-1 {
				continue
			}
			x, y, err := forward(s.bounds.Min.X+float64(ix)*dx, s.bounds.Min.Y+float64(iy)*dy)
			if err != nil {
				return nil, fmt.Errorf("racmo: forward transform of grid edge: %w", err)
			}
			bounds.Extend(&geom.Bounds{Min: geom.Point{X: x, Y: y}, Max: geom.Point{X: x, Y: y}})
		}
	}
	return bounds, nil
}
