// Package aemet implements the OpenData client for the Antarctic
// observation campaigns. The API answers in two steps: the first call
// returns an envelope whose "datos" field points at the actual data URL.
package aemet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/mfenerich/meteoanalytics/internal/meteo"
)

// apiTimeLayout is the window format the OpenData API expects.
const apiTimeLayout = "2006-01-02T15:04:05UTC"

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
)

// Config bundles connection and retry settings for the client.
type Config struct {
	BaseURL string
	APIKey  string
	Client  *http.Client

	// MaxRetries bounds additional attempts after the first; RetryDelay
	// is the fixed pause between attempts.
	MaxRetries int
	RetryDelay time.Duration
}

// Client fetches Antarctic observations with bounded fixed-delay retries
// and a circuit breaker. It implements meteo.Fetcher.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	circuit    *gobreaker.CircuitBreaker
	log        *zap.SugaredLogger

	// sleep is swapped out in tests to avoid wall-clock waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Client. Zero retry settings fall back to five
// attempts two seconds apart.
func NewClient(cfg Config, log *zap.SugaredLogger) *Client {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "aemet-opendata",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: cfg.Client,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		circuit:    cb,
		log:        log,
		sleep:      sleepContext,
	}
}

// envelope is the first-step response. A 404 can arrive either as an
// HTTP status or embedded in the estado field of a 200 body.
type envelope struct {
	Descripcion string `json:"descripcion"`
	Estado      int    `json:"estado"`
	Datos       string `json:"datos"`
	Metadatos   string `json:"metadatos"`
}

// record is the raw observation as served by the data URL.
type record struct {
	Identificacion string   `json:"identificacion"`
	Nombre         string   `json:"nombre"`
	FHora          string   `json:"fhora"`
	Latitud        *float64 `json:"latitud"`
	Longitud       *float64 `json:"longitud"`
	Altitud        *float64 `json:"altitud"`
	Temp           *float64 `json:"temp"`
	Pres           *float64 `json:"pres"`
	Vel            *float64 `json:"vel"`
	Ddd            *float64 `json:"ddd"`
	Hr             *float64 `json:"hr"`
	Ins            *float64 `json:"ins"`
	Rad            *float64 `json:"rad"`
	Ttierra        *float64 `json:"ttierra"`
	Nieve          *float64 `json:"nieve"`
	Albedo         *float64 `json:"albedo"`
}

// FetchWindow retrieves all observations for the station in the UTC
// window [start, end].
func (c *Client) FetchWindow(ctx context.Context, station meteo.Station, start, end time.Time) ([]meteo.Observation, error) {
	endpoint := fmt.Sprintf("%s/api/antartida/datos/fechaini/%s/fechafin/%s/estacion/%s",
		c.baseURL,
		url.PathEscape(start.UTC().Format(apiTimeLayout)),
		url.PathEscape(end.UTC().Format(apiTimeLayout)),
		url.PathEscape(string(station)),
	)

	var env envelope
	if err := c.getJSON(ctx, endpoint, &env); err != nil {
		return nil, err
	}
	if env.Estado == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", meteo.ErrNotFound, env.Descripcion)
	}
	if env.Datos == "" {
		return nil, fmt.Errorf("%w: envelope carries no data URL (estado %d)", meteo.ErrUpstreamUnavailable, env.Estado)
	}

	var raw []record
	if err := c.getJSON(ctx, env.Datos, &raw); err != nil {
		return nil, err
	}

	observations := make([]meteo.Observation, 0, len(raw))
	for _, r := range raw {
		ts, err := parseUpstreamTime(r.FHora)
		if err != nil {
			c.log.Warnw("skipping record with unparseable timestamp", "station", station, "fhora", r.FHora)
			continue
		}
		observations = append(observations, meteo.Observation{
			StationID: r.Identificacion,
			Name:      r.Nombre,
			Time:      ts,
			FHora:     r.FHora,
			Latitud:   r.Latitud,
			Longitud:  r.Longitud,
			Altitud:   r.Altitud,
			Temp:      r.Temp,
			Pres:      r.Pres,
			Vel:       r.Vel,
			Ddd:       r.Ddd,
			Hr:        r.Hr,
			Ins:       r.Ins,
			Rad:       r.Rad,
			Ttierra:   r.Ttierra,
			Nieve:     r.Nieve,
			Albedo:    r.Albedo,
		})
	}
	return observations, nil
}

// getJSON performs a GET with the fixed-delay retry loop and decodes the
// body into out. A 404 maps to ErrNotFound without retrying; everything
// else that keeps failing surfaces as ErrUpstreamUnavailable.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.retryDelay); err != nil {
				return fmt.Errorf("%w: %v", meteo.ErrUpstreamUnavailable, err)
			}
		}

		err := c.tryGetJSON(ctx, rawURL, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, meteo.ErrNotFound) {
			return err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: circuit open: %v", meteo.ErrUpstreamUnavailable, err)
		}

		lastErr = err
		c.log.Warnw("upstream request failed", "url", rawURL, "attempt", attempt+1, "error", err)
	}

	return fmt.Errorf("%w: %v", meteo.ErrUpstreamUnavailable, lastErr)
}

func (c *Client) tryGetJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		q := req.URL.Query()
		q.Set("api_key", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		resp, execErr := c.httpClient.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, meteo.ErrNotFound
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, errRateLimited
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}

		var body json.RawMessage
		if decodeErr := json.NewDecoder(resp.Body).Decode(&body); decodeErr != nil {
			return nil, fmt.Errorf("decode response: %w", decodeErr)
		}
		return body, nil
	})
	if err != nil {
		return err
	}

	return json.Unmarshal(result.(json.RawMessage), out)
}

// upstreamTimeLayouts covers the timestamp shapes the data URL serves.
// Offset-less values are treated as UTC.
var upstreamTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
}

func parseUpstreamTime(value string) (time.Time, error) {
	for _, layout := range upstreamTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
