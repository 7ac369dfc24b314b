// Package racmo retrieves RACMO meteorological NetCDF files from the
// KNMI Data Platform and converts them into projected raster stacks.
//
// The package exposes two operations: Client.ListFiles queries the
// platform's file catalog, and Client.FetchRaster downloads one file,
// extracts a named variable and reprojects it into the target spatial
// reference with one date-labeled layer per time step.
package racmo

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"
)

// StatusError is returned when the data platform responds with an
// unexpected HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// ErrMalformedResponse is returned when a data platform response is
// missing a required field.
var ErrMalformedResponse = errors.New("malformed data platform response")

// Client talks to one dataset endpoint of the KNMI Data Platform.
//
// The endpoint is the dataset's files URL, e.g.
// https://api.dataplatform.knmi.nl/open-data/datasets/<ds>/versions/<v>/files,
// and the token is an opaque bearer token passed on every request. The
// client holds no further state; tokens are neither refreshed nor
// persisted.
type Client struct {
	// WorkDir, when set, is the directory under which FetchRaster
	// creates its per-call scratch directories. Defaults to the system
	// temporary directory.
	WorkDir string

	logger   *slog.Logger
	httpCli  *http.Client
	endpoint string
	token    string
}

// NewClient creates a data platform client for the given dataset
// endpoint.
func NewClient(logger *slog.Logger, endpoint, authToken string) (*Client, error) {
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("racmo: invalid endpoint %q: %w", endpoint, err)
	}
	return &Client{
		logger: logger,
		httpCli: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:    2,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		endpoint: endpoint,
		token:    authToken,
	}, nil
}

// get issues an authenticated GET request against the platform.
func (c *Client) get(rawURL string, query url.Values) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.httpCli.Do(req)
}
