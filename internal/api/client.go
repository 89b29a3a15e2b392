package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/banshee-data/energyshield/internal/httputil"
	"github.com/banshee-data/energyshield/internal/lut"
)

// RemoteError is a non-2xx reply from a lut-server.
type RemoteError struct {
	StatusCode int
	Message    string
	Param      string
}

func (e *RemoteError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("server returned %d: %s (param %s)", e.StatusCode, e.Message, e.Param)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client queries a running lut-server.
type Client struct {
	base string
	doer httputil.Doer
}

// NewClient returns a client for the server at base, e.g.
// "http://localhost:8081". A nil doer uses http.DefaultClient.
func NewClient(base string, doer httputil.Doer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(base, "/"), doer: doer}
}

// Resolve asks the server to resolve q.
func (c *Client) Resolve(ctx context.Context, q lut.Query) (lut.Result, error) {
	v := url.Values{}
	v.Set("r", strconv.FormatFloat(q.R, 'g', -1, 64))
	v.Set("xi", strconv.FormatFloat(q.Xi, 'g', -1, 64))
	v.Set("beta", strconv.FormatFloat(q.Beta, 'g', -1, 64))
	v.Set("limit", strconv.FormatFloat(q.LongDeltaTLimit, 'g', -1, 64))
	if q.Debug {
		v.Set("debug", "true")
	}

	var res lut.Result
	err := c.getJSON(ctx, "/api/deltat?"+v.Encode(), &res)
	return res, err
}

// Info fetches the served table's parameters and band summaries.
func (c *Client) Info(ctx context.Context) (*LUTInfo, error) {
	var info LUTInfo
	if err := c.getJSON(ctx, "/api/lut", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb httputil.ErrorBody
		if json.Unmarshal(body, &eb) != nil || eb.Error == "" {
			eb.Error = strings.TrimSpace(string(body))
		}
		return &RemoteError{StatusCode: resp.StatusCode, Message: eb.Error, Param: eb.Param}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
