// Package ncgrid reads regular lon/lat gridded variables out of
// NetCDF files.
package ncgrid

import (
	"fmt"
	"math"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// Dataset is an open NetCDF file with one-dimensional longitude and
// latitude coordinate axes. Grids with two-dimensional (curvilinear)
// coordinate axes are not supported.
type Dataset struct {
	nc      api.Group
	lon     []float64
	lat     []float64
	flipLat bool
}

// Candidate names for the coordinate axes, in order of preference.
var (
	lonNames  = []string{"lon", "longitude", "x"}
	latNames  = []string{"lat", "latitude", "y"}
	timeNames = []string{"time"}
)

// Open opens the NetCDF file at path and reads its coordinate axes.
func Open(path string) (*Dataset, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ncgrid: opening %s: %w", path, err)
	}
	d := &Dataset{nc: nc}
	d.lon, _, err = d.axis(lonNames)
	if err != nil {
		nc.Close()
		return nil, err
	}
	d.lat, _, err = d.axis(latNames)
	if err != nil {
		nc.Close()
		return nil, err
	}
	if len(d.lon) < 2 || len(d.lat) < 2 {
		nc.Close()
		return nil, fmt.Errorf("ncgrid: %s: coordinate axes must have at least 2 points", path)
	}
	// Store latitudes south to north regardless of file order.
	if d.lat[0] > d.lat[len(d.lat)-1] {
		d.flipLat = true
		for i, j := 0, len(d.lat)-1; i < j; i, j = i+1, j-1 {
			d.lat[i], d.lat[j] = d.lat[j], d.lat[i]
		}
	}
	return d, nil
}

// Close closes the underlying file.
func (d *Dataset) Close() {
	d.nc.Close()
}

// Extent returns the bounding box of the coordinate axes' cell centers.
func (d *Dataset) Extent() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: d.lon[0], Y: d.lat[0]},
		Max: geom.Point{X: d.lon[len(d.lon)-1], Y: d.lat[len(d.lat)-1]},
	}
}

// Summary returns summary information about the dataset suitable for
// logging.
func (d *Dataset) Summary() []any {
	return []any{
		"vars", d.nc.ListVariables(),
		"loCnt", len(d.lon),
		"laCnt", len(d.lat),
	}
}

// Grid reads the full array of the named variable as [time, row, column]
// with rows running south to north. Fill values become NaN and packed
// data are unpacked using the scale_factor and add_offset attributes.
func (d *Dataset) Grid(name string) (*sparse.DenseArray, error) {
	vg, err := d.nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("ncgrid: variable %s: %w", name, err)
	}
	if n := len(vg.Dimensions()); n != 3 {
		return nil, fmt.Errorf("ncgrid: variable %s has %d dimensions, want 3 (time, lat, lon)", name, n)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("ncgrid: reading variable %s: %w", name, err)
	}

	nt, ny, nx, err := dims3(v)
	if err != nil {
		return nil, fmt.Errorf("ncgrid: variable %s: %w", name, err)
	}
	if ny != len(d.lat) || nx != len(d.lon) {
		return nil, fmt.Errorf("ncgrid: variable %s is %dx%d but the coordinate axes are %dx%d",
			name, ny, nx, len(d.lat), len(d.lon))
	}
	data := sparse.ZerosDense(nt, len(d.lat), len(d.lon))
	fill := math.NaN()
	if f, ok := attrFloat(vg.Attributes(), "_FillValue"); ok {
		fill = f
	} else if f, ok := attrFloat(vg.Attributes(), "missing_value"); ok {
		fill = f
	}
	scale, hasScale := attrFloat(vg.Attributes(), "scale_factor")
	offset, hasOffset := attrFloat(vg.Attributes(), "add_offset")
	if !hasScale {
		scale = 1
	}
	if !hasOffset {
		offset = 0
	}

	for it := 0; it < nt; it++ {
		for iy := 0; iy < len(d.lat); iy++ {
			srcY := iy
			if d.flipLat {
				srcY = len(d.lat) - 1 - iy
			}
			for ix := 0; ix < len(d.lon); ix++ {
				val, err := cell(v, it, srcY, ix)
				if err != nil {
					return nil, fmt.Errorf("ncgrid: variable %s: %w", name, err)
				}
				if val == fill {
					val = math.NaN()
				} else {
					val = val*scale + offset
				}
				data.Set(val, it, iy, ix)
			}
		}
	}
	return data, nil
}

// TimeAxis returns the raw values of the time axis together with its
// units string and calendar attribute. The calendar defaults to
// "standard" when the file does not record one.
func (d *Dataset) TimeAxis() (values []float64, units, calendar string, err error) {
	values, vg, err := d.axis(timeNames)
	if err != nil {
		return nil, "", "", err
	}
	units, ok := attrString(vg.Attributes(), "units")
	if !ok {
		return nil, "", "", fmt.Errorf("ncgrid: time axis has no units attribute")
	}
	calendar, ok = attrString(vg.Attributes(), "calendar")
	if !ok {
		calendar = "standard"
	}
	return values, units, calendar, nil
}

// axis reads the first present variable among names as a 1-D float axis.
func (d *Dataset) axis(names []string) ([]float64, api.VarGetter, error) {
	for _, name := range names {
		vg, err := d.nc.GetVarGetter(name)
		if err != nil {
			continue
		}
		if n := len(vg.Dimensions()); n != 1 {
			return nil, nil, fmt.Errorf("ncgrid: coordinate axis %s has %d dimensions, want 1", name, n)
		}
		v, err := vg.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("ncgrid: reading axis %s: %w", name, err)
		}
		vals, err := toFloats(v)
		if err != nil {
			return nil, nil, fmt.Errorf("ncgrid: axis %s: %w", name, err)
		}
		return vals, vg, nil
	}
	return nil, nil, fmt.Errorf("ncgrid: no variable named any of %v found", names)
}

// toFloats converts a 1-D numeric array of any NetCDF element type to
// float64.
func toFloats(v interface{}) ([]float64, error) {
	switch a := v.(type) {
	case []float64:
		return a, nil
	case []float32:
		o := make([]float64, len(a))
		for i, x := range a {
			o[i] = float64(x)
		}
		return o, nil
	case []int64:
		o := make([]float64, len(a))
		for i, x := range a {
			o[i] = float64(x)
		}
		return o, nil
	case []int32:
		o := make([]float64, len(a))
		for i, x := range a {
			o[i] = float64(x)
		}
		return o, nil
	case []int16:
		o := make([]float64, len(a))
		for i, x := range a {
			o[i] = float64(x)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unexpected array type %T", v)
	}
}

// dims3 returns the lengths of a 3-D array of any NetCDF element type.
func dims3(v interface{}) (nt, ny, nx int, err error) {
	switch a := v.(type) {
	case [][][]float64:
		if len(a) == 0 || len(a[0]) == 0 {
			return 0, 0, 0, fmt.Errorf("empty array")
		}
		return len(a), len(a[0]), len(a[0][0]), nil
	case [][][]float32:
		if len(a) == 0 || len(a[0]) == 0 {
			return 0, 0, 0, fmt.Errorf("empty array")
		}
		return len(a), len(a[0]), len(a[0][0]), nil
	case [][][]int32:
		if len(a) == 0 || len(a[0]) == 0 {
			return 0, 0, 0, fmt.Errorf("empty array")
		}
		return len(a), len(a[0]), len(a[0][0]), nil
	case [][][]int16:
		if len(a) == 0 || len(a[0]) == 0 {
			return 0, 0, 0, fmt.Errorf("empty array")
		}
		return len(a), len(a[0]), len(a[0][0]), nil
	default:
		return 0, 0, 0, fmt.Errorf("unexpected array type %T", v)
	}
}

// cell extracts one element from a 3-D array of any NetCDF element type.
func cell(v interface{}, t, y, x int) (float64, error) {
	switch a := v.(type) {
	case [][][]float64:
		return a[t][y][x], nil
	case [][][]float32:
		return float64(a[t][y][x]), nil
	case [][][]int32:
		return float64(a[t][y][x]), nil
	case [][][]int16:
		return float64(a[t][y][x]), nil
	default:
		return 0, fmt.Errorf("unexpected array type %T", v)
	}
}

// attrFloat reads a numeric attribute, which NetCDF files store either
// as a scalar or as a length-1 array.
func attrFloat(attrs api.AttributeMap, name string) (float64, bool) {
	v, ok := attrs.Get(name)
	if !ok {
		return 0, false
	}
	switch a := v.(type) {
	case float64:
		return a, true
	case float32:
		return float64(a), true
	case int32:
		return float64(a), true
	case int16:
		return float64(a), true
	case []float64:
		if len(a) > 0 {
			return a[0], true
		}
	case []float32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []int32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []int16:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	}
	return 0, false
}

// attrString reads a text attribute.
func attrString(attrs api.AttributeMap, name string) (string, bool) {
	v, ok := attrs.Get(name)
	if !ok {
		return "", false
	}
	switch a := v.(type) {
	case string:
		return a, true
	case []string:
		if len(a) > 0 {
			return a[0], true
		}
	}
	return "", false
}
