package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/consolidator/auth"
	"github.com/kilianp07/consolidator/connectors"
	"github.com/kilianp07/consolidator/core/model"
	"github.com/kilianp07/consolidator/core/scheduler"
)

// Config locates the collaborator gateway.
type Config struct {
	BaseURL        string    `json:"base_url"`
	Auth           auth.Conf `json:"auth"`
	TimeoutSeconds int       `json:"timeout_seconds"`
	// HistoryHours is how far back past power and service levels are read.
	HistoryHours int `json:"history_hours"`
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("collab: base_url is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("collab: base_url: %w", err)
	}
	return nil
}

// Gateway paths of each input. Every endpoint answers a JSON array.
const (
	pathObjectives   = "/power-planner/objectives"
	pathForecasts    = "/power-planner/forecasts"
	pathIdealPlans   = "/power-planner/ideal-plans"
	pathBudgets      = "/power-splitter/budgets"
	pathActivities   = "/eascs/activities"
	pathPastPower    = "/monitoring/power"
	pathPastService  = "/monitoring/service-levels"
	pathLiveMetrics  = "/monitoring/live"
	defaultTimeout   = 10 * time.Second
	defaultHistoryHr = 24
)

// Client fetches the inputs of an iteration from the collaborator gateway.
type Client struct {
	base    string
	auth    *auth.ClientCred
	http    *http.Client
	history time.Duration
}

// New builds a gateway client. Authentication is skipped when no token URL
// is configured.
func New(cfg Config, opts ...connectors.Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	history := defaultHistoryHr
	if cfg.HistoryHours > 0 {
		history = cfg.HistoryHours
	}
	c := &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		history: time.Duration(history) * time.Hour,
	}
	if cfg.Auth.AuthURL != "" {
		c.auth = auth.NewClientCred(cfg.Auth)
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) connectors.Option {
	return func(s connectors.Source) error {
		if c, ok := s.(*Client); ok {
			c.http = h
			return nil
		}
		return fmt.Errorf(connectors.ErrIncompatibleOption, "WithHTTPClient", "collab")
	}
}

// Fetch retrieves every input concurrently. Forecasts, budgets and activities
// are mandatory; the others may be empty.
func (c *Client) Fetch(ctx context.Context, r model.TimeRange) (scheduler.Problem, error) {
	p := scheduler.Problem{Window: r}
	past := r.Start.Add(-c.history)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.get(gctx, pathObjectives, r.Start, r.End, &p.Objectives) })
	g.Go(func() error { return c.get(gctx, pathForecasts, r.Start, r.End, &p.Forecasts) })
	g.Go(func() error { return c.get(gctx, pathIdealPlans, r.Start, r.End, &p.IdealPlans) })
	g.Go(func() error { return c.get(gctx, pathBudgets, r.Start, r.End, &p.Budgets) })
	g.Go(func() error { return c.get(gctx, pathActivities, r.Start, r.End, &p.Activities) })
	g.Go(func() error { return c.get(gctx, pathPastPower, past, r.Start, &p.PastPower) })
	g.Go(func() error { return c.get(gctx, pathPastService, past, r.Start, &p.PastService) })
	g.Go(func() error { return c.get(gctx, pathLiveMetrics, r.Start, r.Start, &p.Live) })
	if err := g.Wait(); err != nil {
		return scheduler.Problem{}, err
	}
	if len(p.Forecasts) == 0 || len(p.Budgets) == 0 || len(p.Activities) == 0 {
		return scheduler.Problem{}, fmt.Errorf("collab: gateway returned no forecasts, budgets or activities")
	}
	p.FillRanges()
	return p, nil
}

func (c *Client) get(ctx context.Context, path string, start, end time.Time, out any) error {
	q := url.Values{}
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))
	u := c.base + path + "?" + q.Encode()

	resp, err := c.do(ctx, u)
	if err != nil {
		return err
	}
	// A stale token gets one retry with a fresh one.
	if resp.StatusCode == http.StatusUnauthorized && c.auth != nil {
		_ = resp.Body.Close()
		if _, err := c.auth.ForceRefresh(ctx); err != nil {
			return err
		}
		if resp, err = c.do(ctx, u); err != nil {
			return err
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("collab %s: unexpected status code: %d, body: %s", path, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("collab %s: failed to decode response: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		if err := c.auth.SetAuthHeader(req); err != nil {
			return nil, fmt.Errorf("failed to set auth header: %w", err)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}
