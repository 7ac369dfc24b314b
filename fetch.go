package racmo

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ctessum/geom/proj"

	"github.com/KeesVanImmerzeel/racmo/internal/cftime"
	"github.com/KeesVanImmerzeel/racmo/internal/ncgrid"
)

// urlResponse carries the temporary signed download URL for one file.
type urlResponse struct {
	TemporaryDownloadURL string `json:"temporaryDownloadUrl"`
}

// FetchRaster downloads the named file from the dataset, extracts the
// named variable and returns it as a raster stack in the target
// projection, with one layer per time step named
// "<variableID>_<YYYY-MM-DD>" in time-axis order.
//
// The file is staged in a private scratch directory (under
// Client.WorkDir when set) that is removed again on every return path.
func (c *Client) FetchRaster(filename, variableID string) (*Stack, error) {
	workDir, err := os.MkdirTemp(c.WorkDir, "racmo-")
	if err != nil {
		return nil, fmt.Errorf("racmo: creating scratch directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	dlURL, err := c.downloadURL(filename)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(workDir, filepath.Base(filename))
	if err := c.download(dlURL, path); err != nil {
		return nil, fmt.Errorf("racmo: downloading %s: %w", filename, err)
	}

	ds, err := ncgrid.Open(path)
	if err != nil {
		return nil, fmt.Errorf("racmo: %w", err)
	}
	defer ds.Close()
	c.logger.Info("opened dataset", ds.Summary()...)

	data, err := ds.Grid(variableID)
	if err != nil {
		return nil, fmt.Errorf("racmo: %w", err)
	}
	values, units, calendar, err := ds.TimeAxis()
	if err != nil {
		return nil, fmt.Errorf("racmo: %w", err)
	}
	if len(values) != data.Shape[0] {
		return nil, fmt.Errorf("racmo: variable %s has %d time steps but the time axis has %d entries",
			variableID, data.Shape[0], len(values))
	}
	dates, err := cftime.Decode(values, units, calendar)
	if err != nil {
		return nil, fmt.Errorf("racmo: decoding time axis of %s: %w", filename, err)
	}
	names := make([]string, len(dates))
	for i, d := range dates {
		names[i] = variableID + "_" + d.String()
	}

	src, err := proj.Parse(SourceProj4)
	if err != nil {
		return nil, fmt.Errorf("racmo: parsing source projection: %w", err)
	}
	dst, err := proj.Parse(TargetProj4)
	if err != nil {
		return nil, fmt.Errorf("racmo: parsing target projection: %w", err)
	}
	stack, err := NewStack(data, ds.Extent(), src, names)
	if err != nil {
		return nil, err
	}
	return stack.Project(dst)
}

// downloadURL resolves the temporary signed download URL for filename.
func (c *Client) downloadURL(filename string) (string, error) {
	res, err := c.get(c.endpoint+"/"+url.PathEscape(filename)+"/url", nil)
	if err != nil {
		return "", fmt.Errorf("racmo: resolving download URL for %s: %w", filename, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("racmo: resolving download URL for %s: %w", filename, err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("racmo: resolving download URL for %s: %w", filename,
			&StatusError{StatusCode: res.StatusCode, Body: string(body)})
	}

	var u urlResponse
	if err := json.Unmarshal(body, &u); err != nil {
		return "", fmt.Errorf("racmo: resolving download URL for %s: %w", filename, err)
	}
	if u.TemporaryDownloadURL == "" {
		return "", fmt.Errorf("racmo: resolving download URL for %s: %w: no temporaryDownloadUrl field",
			filename, ErrMalformedResponse)
	}
	return u.TemporaryDownloadURL, nil
}

// download fetches the signed URL to dest. The signed URL grants
// temporary unauthenticated access, so no bearer token is sent.
func (c *Client) download(rawURL, dest string) error {
	start := time.Now()
	res, err := c.httpCli.Get(rawURL)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: res.StatusCode}
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, res.Body)
	if err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	c.logger.Info("downloaded file", "path", dest, "bytes", n, "in", time.Since(start).Round(time.Millisecond))
	return nil
}
