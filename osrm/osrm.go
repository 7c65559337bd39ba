// Package osrm is a thin, stateless HTTP client for the subset of the OSRM
// HTTP API this engine needs: map-matching and route geometry lookup.
// It never mutates a trace; callers (package clean) apply its results
// under the cleaning operators' own provenance rules.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/delhivery/tracely/geo"
)

const (
	defaultMatchBaseURL = "http://127.0.0.1:5000/match/v1/driving/"
	defaultRouteBaseURL = "http://127.0.0.1:5000/route/v1/driving/"
	defaultTimeout      = 10 * time.Second

	// transientRetries bounds the number of transport-level retries for a
	// single logical Match/Route call (see SPEC_FULL.md §4.4, §10.2). This
	// is invisible to the operator: the operator still sees one attempt
	// that either succeeds or fails.
	transientRetries = 2
)

// BatchError reports that a single Match or Route HTTP call failed: a
// transport failure that outlasted the retries, a non-2xx response, a
// malformed JSON body, or (for Route) an empty routes array. It is
// non-fatal: it is the caller's responsibility to leave affected pings
// unchanged and surface a warning.
type BatchError struct {
	Endpoint string // "match" or "route"
	Reason   string
}

func (e BatchError) Error() string {
	return fmt.Sprintf("osrm %s request failed: %s", e.Endpoint, e.Reason)
}

// Client is a stateless OSRM HTTP client. The zero value is not usable;
// construct with NewClient.
type Client struct {
	MatchBaseURL string
	RouteBaseURL string
	HTTPClient   *http.Client
	Logger       *log.Logger // nil is valid and means "don't log"
}

// NewClient builds a Client with sensible defaults: base URLs pointed at
// a local OSRM instance and a 10s request timeout. It takes no base URL:
// callers who run a non-standard OSRM deployment set
// MatchBaseURL/RouteBaseURL directly on the returned Client.
func NewClient() *Client {
	return &Client{
		MatchBaseURL: defaultMatchBaseURL,
		RouteBaseURL: defaultRouteBaseURL,
		HTTPClient:   &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

// coordsParam renders points as OSRM's semicolon-joined "lon,lat" path
// segment.
func coordsParam(points []geo.Point) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("%g,%g", p.Lon, p.Lat)
	}
	return strings.Join(parts, ";")
}

// get performs a single GET with a bounded number of transient-failure
// retries (connection refused/reset, timeout) via exponential backoff. A
// successful HTTP round trip - regardless of status code - is never
// retried; the caller inspects the status code itself.
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	var resp *http.Response

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		r, err := c.HTTPClient.Do(req)
		if err != nil {
			return err // transient: retry
		}
		resp = r
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), transientRetries)
	notify := func(err error, wait time.Duration) {
		c.logf("osrm request to %s failed (%v), retrying in %s", url, err, wait)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return resp, nil
}

type tracepointResponse struct {
	Tracepoints []*struct {
		Location [2]float64 `json:"location"`
	} `json:"tracepoints"`
}

// Match snaps each of points (with corresponding timestamps) to the road
// network in a single request. On success it returns one entry per input
// point: either the snapped coordinate or nil if OSRM reported no
// tracepoint for that position. On any transport, non-2xx or parse failure
// the whole batch fails and a BatchError is returned; callers must leave
// every ping in the batch unchanged.
func (c *Client) Match(ctx context.Context, points []geo.Point, timestamps []int64) ([]*geo.Point, error) {
	if len(points) == 0 {
		return nil, nil
	}

	url := fmt.Sprintf("%s%s?overview=false", c.MatchBaseURL, coordsParam(points))

	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, BatchError{Endpoint: "match", Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, BatchError{Endpoint: "match", Reason: fmt.Sprintf("status %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, BatchError{Endpoint: "match", Reason: err.Error()}
	}

	var parsed tracepointResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, BatchError{Endpoint: "match", Reason: "malformed tracepoints JSON: " + err.Error()}
	}

	out := make([]*geo.Point, len(points))
	for i, tp := range parsed.Tracepoints {
		if i >= len(out) || tp == nil {
			continue
		}
		out[i] = &geo.Point{Lat: tp.Location[1], Lon: tp.Location[0]}
	}
	return out, nil
}

type routeResponse struct {
	Routes []struct {
		Geometry struct {
			Coordinates [][2]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Route fetches the full driving-route geometry between a and b, returned
// in order from a to b inclusive of OSRM's snapped endpoints. On any
// transport, non-2xx, parse failure, or an empty routes array, a BatchError
// is returned and the caller must insert nothing for the pair.
func (c *Client) Route(ctx context.Context, a, b geo.Point) ([]geo.Point, error) {
	url := fmt.Sprintf("%s%s?overview=full&geometries=geojson", c.RouteBaseURL, coordsParam([]geo.Point{a, b}))

	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, BatchError{Endpoint: "route", Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, BatchError{Endpoint: "route", Reason: fmt.Sprintf("status %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, BatchError{Endpoint: "route", Reason: err.Error()}
	}

	var parsed routeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, BatchError{Endpoint: "route", Reason: "malformed route JSON: " + err.Error()}
	}
	if len(parsed.Routes) == 0 {
		return nil, BatchError{Endpoint: "route", Reason: "no routes in response"}
	}

	coords := parsed.Routes[0].Geometry.Coordinates
	out := make([]geo.Point, len(coords))
	for i, coord := range coords {
		out[i] = geo.Point{Lat: coord[1], Lon: coord[0]}
	}
	return out, nil
}
