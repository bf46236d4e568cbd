package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	apihttp "github.com/GriffinCanCode/AgentOS/shell/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/jonboulle/clockwork"
)

// ErrServerUnavailable marks transport failures and 5xx responses
var ErrServerUnavailable = errors.New("shell server unavailable")

// APIError is a non-2xx response from the control API
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("shell api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("shell api: %d %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Config configures the client
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryWait  time.Duration
	Clock      clockwork.Clock
}

// DefaultConfig targets a local server
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:8000",
		Timeout:    15 * time.Second,
		MaxRetries: 3,
		RetryWait:  250 * time.Millisecond,
	}
}

// Client talks to the shell control API. Transport failures are retried by
// retryablehttp; repeated server failures open a breaker so callers fail fast.
type Client struct {
	resty   *resty.Client
	breaker *resilience.Breaker
}

// New creates a client
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWait
	retryClient.RetryWaitMax = 4 * cfg.RetryWait
	retryClient.Logger = nil
	retryClient.CheckRetry = retryPolicy
	// Hand 5xx responses back to the caller once retries are spent
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	r := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "shellctl/1.0").
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	breaker := resilience.New("shell-api", resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		Clock: cfg.Clock,
	})

	return &Client{resty: r, breaker: breaker}
}

// retryPolicy retries transport failures, 429 and gateway errors. A 500
// carries a lifecycle failure and repeating the call would change its outcome.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == http.StatusInternalServerError {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// BreakerState returns the breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// do sends req and decodes a 2xx body into out. Only transport failures
// and 5xx responses count against the breaker.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var apiErr error
	err := c.breaker.Execute(func() error {
		req := c.resty.R().SetContext(ctx)
		if body != nil {
			req.SetBody(body)
		}
		if out != nil {
			req.SetResult(out)
		}
		req.SetError(&apihttp.ErrorResponse{})

		resp, err := req.Execute(method, path)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrServerUnavailable, err)
		}
		if !resp.IsError() {
			return nil
		}

		e := &APIError{Status: resp.StatusCode()}
		if er, ok := resp.Error().(*apihttp.ErrorResponse); ok {
			e.Code, e.Message = er.Code, er.Error
		}
		if resp.StatusCode() >= http.StatusInternalServerError && e.Code == "" {
			return fmt.Errorf("%w: %w", ErrServerUnavailable, e)
		}
		apiErr = e
		return nil
	})
	if err != nil {
		return err
	}
	return apiErr
}

// Health returns the /health document
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

// Stats is the /stats document
type Stats struct {
	TotalApps     int      `json:"total_apps"`
	RunningApps   int      `json:"running_apps"`
	FailedApps    int      `json:"failed_apps"`
	PendingApps   int      `json:"pending_apps"`
	RegistrySize  int      `json:"registry_size"`
	HistoryLength int      `json:"history_length"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Running       []string `json:"running"`
}

// Stats returns orchestrator statistics
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	err := c.do(ctx, http.MethodGet, "/stats", nil, &out)
	return out, err
}

// Apps lists registry entries, optionally by category
func (c *Client) Apps(ctx context.Context, category types.Category) ([]apihttp.AppView, error) {
	var out struct {
		Apps []apihttp.AppView `json:"apps"`
	}
	path := "/apps"
	if category != "" {
		path += "?category=" + string(category)
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.Apps, err
}

// App returns one entry
func (c *Client) App(ctx context.Context, name string) (apihttp.AppView, error) {
	var out apihttp.AppView
	err := c.do(ctx, http.MethodGet, "/apps/"+name, nil, &out)
	return out, err
}

// Start starts an app
func (c *Client) Start(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/apps/"+name+"/start", nil, nil)
}

// Stop stops an app
func (c *Client) Stop(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/apps/"+name+"/stop", nil, nil)
}

// Restart restarts an app
func (c *Client) Restart(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/apps/"+name+"/restart", nil, nil)
}

// Recover resets an errored app
func (c *Client) Recover(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/apps/"+name+"/recover", nil, nil)
}

// Uninstall removes an app
func (c *Client) Uninstall(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/apps/"+name, nil, nil)
}

// Send routes a signal through the server
func (c *Client) Send(ctx context.Context, req apihttp.SignalRequest) (types.Envelope, error) {
	var out types.Envelope
	err := c.do(ctx, http.MethodPost, "/signals", req, &out)
	return out, err
}

// Signals returns recent history; limit 0 returns all of it
func (c *Client) Signals(ctx context.Context, limit int) ([]types.Envelope, error) {
	var out struct {
		Signals []types.Envelope `json:"signals"`
	}
	err := c.do(ctx, http.MethodGet, "/signals?limit="+strconv.Itoa(limit), nil, &out)
	return out.Signals, err
}

// Plugins lists loaded plugins
func (c *Client) Plugins(ctx context.Context) ([]types.PluginInfo, error) {
	var out struct {
		Plugins []types.PluginInfo `json:"plugins"`
	}
	err := c.do(ctx, http.MethodGet, "/plugins", nil, &out)
	return out.Plugins, err
}

// Export downloads the registry document
func (c *Client) Export(ctx context.Context) (types.RegistrySnapshot, error) {
	var out types.RegistrySnapshot
	err := c.do(ctx, http.MethodGet, "/registry/export", nil, &out)
	return out, err
}

// Import uploads a registry document
func (c *Client) Import(ctx context.Context, snap types.RegistrySnapshot, merge bool) error {
	return c.do(ctx, http.MethodPost, "/registry/import?merge="+strconv.FormatBool(merge), snap, nil)
}
