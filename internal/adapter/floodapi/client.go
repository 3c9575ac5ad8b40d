// Package floodapi is the HTTP client for the Environment Agency
// flood-monitoring API: station directory, latest readings, active flood
// warnings, and flood area polygons.
package floodapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kentwatersensors/floodwatch/internal/domain"
	"github.com/kentwatersensors/floodwatch/internal/observability"
)

// Client talks to the Environment Agency flood-monitoring API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a flood-monitoring API client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// StationsNear lists all stations within distKm kilometers of the center.
func (c *Client) StationsNear(ctx context.Context, center domain.Point, distKm float64) ([]domain.Station, error) {
	params := url.Values{
		"lat":  {formatCoord(center.Lat)},
		"long": {formatCoord(center.Lon)},
		"dist": {strconv.FormatFloat(distKm, 'f', -1, 64)},
	}

	var resp stationsResponse
	if err := c.getJSON(ctx, "stations", c.baseURL+"/id/stations/?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	stations := make([]domain.Station, 0, len(resp.Items))
	for _, item := range resp.Items {
		measures := make([]domain.Measure, 0, len(item.Measures))
		for _, m := range item.Measures {
			measures = append(measures, domain.Measure{Parameter: m.Parameter})
		}
		stations = append(stations, domain.Station{
			Notation: item.Notation,
			Lat:      item.Lat,
			Lon:      item.Long,
			Measures: measures,
		})
	}
	return stations, nil
}

// LatestReading fetches a station's single most recent reading.
// The value is in meters, as served by the API.
func (c *Client) LatestReading(ctx context.Context, stationReference string) (time.Time, float64, error) {
	u := fmt.Sprintf("%s/id/stations/%s/readings?_sorted&_limit=1", c.baseURL, url.PathEscape(stationReference))

	var resp readingsResponse
	if err := c.getJSON(ctx, "readings", u, &resp); err != nil {
		return time.Time{}, 0, err
	}
	if len(resp.Items) == 0 {
		return time.Time{}, 0, fmt.Errorf("station %s has no readings", stationReference)
	}

	return resp.Items[0].DateTime, resp.Items[0].Value, nil
}

// WarningsNear lists active flood warnings within distKm kilometers of the center.
func (c *Client) WarningsNear(ctx context.Context, center domain.Point, distKm float64) ([]domain.FloodWarning, error) {
	params := url.Values{
		"lat":  {formatCoord(center.Lat)},
		"long": {formatCoord(center.Lon)},
		"dist": {strconv.FormatFloat(distKm, 'f', -1, 64)},
	}

	var resp floodsResponse
	if err := c.getJSON(ctx, "floods", c.baseURL+"/id/floods/?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	warnings := make([]domain.FloodWarning, 0, len(resp.Items))
	for _, item := range resp.Items {
		warnings = append(warnings, domain.FloodWarning{
			Description:   item.Description,
			Message:       item.Message,
			Severity:      item.Severity,
			SeverityLevel: item.SeverityLevel,
		})
	}
	return warnings, nil
}

// FloodAreaSet pairs the raw area objects with their fetched polygon geometry,
// index-aligned.
type FloodAreaSet struct {
	Items    []json.RawMessage
	Polygons []json.RawMessage
}

// FloodAreas fetches flood area geometry for the map surface. With current
// set, it returns the areas of currently active warnings; otherwise the
// registered flood areas within distKm of the center. Polygon documents are
// fetched concurrently, one request per area.
func (c *Client) FloodAreas(ctx context.Context, current bool, center domain.Point, distKm float64) (FloodAreaSet, error) {
	var u string
	if current {
		u = c.baseURL + "/id/floods"
	} else {
		params := url.Values{
			"lat":  {formatCoord(center.Lat)},
			"long": {formatCoord(center.Lon)},
			"dist": {strconv.FormatFloat(distKm, 'f', -1, 64)},
		}
		u = c.baseURL + "/id/floodAreas?" + params.Encode()
	}

	var resp rawItemsResponse
	if err := c.getJSON(ctx, "flood_areas", u, &resp); err != nil {
		return FloodAreaSet{}, err
	}

	polygonURLs := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		polygonURL, err := extractPolygonURL(item, current)
		if err != nil {
			return FloodAreaSet{}, err
		}
		polygonURLs = append(polygonURLs, polygonURL)
	}

	polygons := make([]json.RawMessage, len(polygonURLs))
	g, gctx := errgroup.WithContext(ctx)
	for i, polygonURL := range polygonURLs {
		g.Go(func() error {
			var doc json.RawMessage
			if err := c.getJSON(gctx, "flood_areas", polygonURL, &doc); err != nil {
				return err
			}
			polygons[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return FloodAreaSet{}, err
	}

	return FloodAreaSet{Items: resp.Items, Polygons: polygons}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, fullURL string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.AgencyAPIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.AgencyAPIErrors.WithLabelValues(endpoint).Inc()
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.AgencyAPIErrors.WithLabelValues(endpoint).Inc()
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("flood-monitoring API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		c.metrics.AgencyAPIErrors.WithLabelValues(endpoint).Inc()
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// formatCoord keeps full precision without scientific notation in query strings.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func extractPolygonURL(item json.RawMessage, current bool) (string, error) {
	if current {
		var area struct {
			FloodArea struct {
				Polygon string `json:"polygon"`
			} `json:"floodArea"`
		}
		if err := json.Unmarshal(item, &area); err != nil {
			return "", fmt.Errorf("decode flood area item: %w", err)
		}
		return area.FloodArea.Polygon, nil
	}

	var area struct {
		Polygon string `json:"polygon"`
	}
	if err := json.Unmarshal(item, &area); err != nil {
		return "", fmt.Errorf("decode flood area item: %w", err)
	}
	return area.Polygon, nil
}

// Environment Agency API response types.

type stationsResponse struct {
	Items []stationItem `json:"items"`
}

type stationItem struct {
	Notation string        `json:"notation"`
	Lat      float64       `json:"lat"`
	Long     float64       `json:"long"`
	Measures []measureItem `json:"measures"`
}

type measureItem struct {
	Parameter string `json:"parameter"`
}

type readingsResponse struct {
	Items []readingItem `json:"items"`
}

type readingItem struct {
	DateTime time.Time `json:"dateTime"`
	Value    float64   `json:"value"`
}

type floodsResponse struct {
	Items []floodItem `json:"items"`
}

type floodItem struct {
	Description   string `json:"description"`
	Message       string `json:"message"`
	Severity      string `json:"severity"`
	SeverityLevel int    `json:"severityLevel"`
}

type rawItemsResponse struct {
	Items []json.RawMessage `json:"items"`
}
