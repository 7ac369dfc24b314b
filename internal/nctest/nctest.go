// Package nctest writes small NetCDF files for use in tests.
package nctest

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
)

// Fixture describes a gridded test file with one variable on a
// [time, lat, lon] grid.
type Fixture struct {
	Var       string
	Data      []float32 // flattened [time][lat][lon], row-major
	Lon       []float64
	Lat       []float64
	Time      []float64
	TimeUnits string
	Calendar  string // omitted from the file when empty

	// Optional packing and fill attributes for Var.
	ScaleFactor float64
	AddOffset   float64
	FillValue   float32
	HasFill     bool
}

// Write creates a NetCDF classic file at path containing the fixture.
func Write(path string, f Fixture) error {
	nt, ny, nx := len(f.Time), len(f.Lat), len(f.Lon)
	if len(f.Data) != nt*ny*nx {
		return fmt.Errorf("nctest: data length %d does not match %dx%dx%d grid", len(f.Data), nt, ny, nx)
	}

	h := cdf.NewHeader([]string{"time", "lat", "lon"}, []int{nt, ny, nx})
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", f.TimeUnits)
	if f.Calendar != "" {
		h.AddAttribute("time", "calendar", f.Calendar)
	}
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddVariable(f.Var, []string{"time", "lat", "lon"}, []float32{0})
	if f.ScaleFactor != 0 {
		h.AddAttribute(f.Var, "scale_factor", []float64{f.ScaleFactor})
	}
	if f.AddOffset != 0 {
		h.AddAttribute(f.Var, "add_offset", []float64{f.AddOffset})
	}
	if f.HasFill {
		h.AddAttribute(f.Var, "_FillValue", []float32{f.FillValue})
	}
	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("nctest: defining header: %v", err)
	}

	ff, err := os.Create(path)
	if err != nil {
		return err
	}
	defer ff.Close()
	cf, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("nctest: creating %s: %v", path, err)
	}

	if err := write(cf, "time", []int{nt}, f.Time); err != nil {
		return err
	}
	if err := write(cf, "lat", []int{ny}, f.Lat); err != nil {
		return err
	}
	if err := write(cf, "lon", []int{nx}, f.Lon); err != nil {
		return err
	}
	if err := write(cf, f.Var, []int{nt, ny, nx}, f.Data); err != nil {
		return err
	}
	return cdf.UpdateNumRecs(ff)
}

func write(f *cdf.File, v string, end []int, data interface{}) error {
	w := f.Writer(v, make([]int, len(end)), end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("nctest: writing %s: %v", v, err)
	}
	return nil
}
