package racmo

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// FileRecord is one row of the data platform's file catalog.
type FileRecord struct {
	Filename     string `json:"filename"`
	Size         int64  `json:"size"`
	Created      string `json:"created"`
	LastModified string `json:"lastModified"`
}

// listResponse is the catalog listing returned by the platform.
type listResponse struct {
	Files       []FileRecord `json:"files"`
	IsTruncated bool         `json:"isTruncated"`
	ResultCount int          `json:"resultCount"`
}

// ListFiles queries the dataset's file catalog. At most maxResults
// entries are returned, ordered by the platform according to sortOrder
// (e.g. "asc" or "desc"). Entries beyond maxResults are silently absent;
// choosing a sufficient cap is up to the caller.
func (c *Client) ListFiles(maxResults int, sortOrder string) ([]FileRecord, error) {
	q := url.Values{}
	q.Set("maxKeys", strconv.Itoa(maxResults))
	q.Set("sorting", sortOrder)

	res, err := c.get(c.endpoint, q)
	if err != nil {
		return nil, fmt.Errorf("racmo: listing files: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("racmo: listing files: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("racmo: listing files: %w",
			&StatusError{StatusCode: res.StatusCode, Body: string(body)})
	}

	var list listResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("racmo: listing files: %w", err)
	}
	if list.Files == nil {
		return nil, fmt.Errorf("racmo: listing files: %w: no files field", ErrMalformedResponse)
	}
	c.logger.Info("listed files", "count", len(list.Files), "truncated", list.IsTruncated)
	return list.Files, nil
}
