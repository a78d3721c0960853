// Package apiclient is a small client for the apimonitor command API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hamed0406/apimonitor/internal/domain"
	"github.com/hamed0406/apimonitor/internal/stats"
)

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Error is a non-2xx answer from the API.
type Error struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	for k, v := range e.Fields {
		msg += fmt.Sprintf("\n  %s: %s", k, v)
	}
	return msg
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusNotFound
}

// TargetInput is the body for creating or replacing a target.
type TargetInput struct {
	Name              string                 `json:"name,omitempty"`
	URL               string                 `json:"url"`
	Method            string                 `json:"method,omitempty"`
	Headers           map[string]string      `json:"headers,omitempty"`
	Body              string                 `json:"body,omitempty"`
	ExpectedStatus    []int                  `json:"expected_status,omitempty"`
	JSONAssert        []domain.JSONAssertion `json:"json_assert,omitempty"`
	IntervalSeconds   float64                `json:"interval_seconds,omitempty"`
	TimeoutSeconds    float64                `json:"timeout_seconds,omitempty"`
	FailureThreshold  int                    `json:"failure_threshold,omitempty"`
	RecoveryThreshold int                    `json:"recovery_threshold,omitempty"`
	Paused            bool                   `json:"paused,omitempty"`
}

type Target struct {
	domain.Target
	IntervalSeconds float64             `json:"interval_seconds"`
	TimeoutSeconds  float64             `json:"timeout_seconds"`
	State           *domain.TargetState `json:"state,omitempty"`
}

// Status returns the target's status, UNKNOWN when none was reported.
func (t Target) Status() domain.Status {
	if t.State == nil || t.State.Status == "" {
		return domain.StatusUnknown
	}
	return t.State.Status
}

func (c *Client) ListTargets(ctx context.Context) ([]Target, error) {
	var ts []Target
	if err := c.do(ctx, http.MethodGet, "/api/targets", nil, &ts); err != nil {
		return nil, err
	}
	return ts, nil
}

func (c *Client) GetTarget(ctx context.Context, id string) (*Target, error) {
	var t Target
	if err := c.do(ctx, http.MethodGet, "/api/targets/"+url.PathEscape(id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) AddTarget(ctx context.Context, in TargetInput) (*Target, error) {
	var t Target
	if err := c.do(ctx, http.MethodPost, "/api/targets", in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) UpdateTarget(ctx context.Context, id string, in TargetInput) (*Target, error) {
	var t Target
	if err := c.do(ctx, http.MethodPut, "/api/targets/"+url.PathEscape(id), in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) RemoveTarget(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/targets/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Pause(ctx context.Context, id string) (*Target, error) {
	var t Target
	if err := c.do(ctx, http.MethodPost, "/api/targets/"+url.PathEscape(id)+"/pause", nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) Resume(ctx context.Context, id string) (*Target, error) {
	var t Target
	if err := c.do(ctx, http.MethodPost, "/api/targets/"+url.PathEscape(id)+"/resume", nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) CheckNow(ctx context.Context, id string) (*domain.CheckOutcome, error) {
	var o domain.CheckOutcome
	if err := c.do(ctx, http.MethodPost, "/api/targets/"+url.PathEscape(id)+"/check", nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) Stats(ctx context.Context, id, window string) (*stats.Summary, error) {
	var s stats.Summary
	if err := c.do(ctx, http.MethodGet, "/api/targets/"+url.PathEscape(id)+"/stats"+windowQuery(window), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Incidents(ctx context.Context, id, window string) ([]stats.Incident, error) {
	var inc []stats.Incident
	if err := c.do(ctx, http.MethodGet, "/api/targets/"+url.PathEscape(id)+"/incidents"+windowQuery(window), nil, &inc); err != nil {
		return nil, err
	}
	return inc, nil
}

func (c *Client) DailyReport(ctx context.Context) (*stats.DailyReport, error) {
	var r stats.DailyReport
	if err := c.do(ctx, http.MethodGet, "/api/reports/daily", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func windowQuery(w string) string {
	if w == "" {
		return ""
	}
	return "?window=" + url.QueryEscape(w)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &Error{Status: resp.StatusCode}
		var eb struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		if json.Unmarshal(b, &eb) == nil && eb.Error != "" {
			apiErr.Message, apiErr.Fields = eb.Error, eb.Fields
		} else {
			apiErr.Message = strings.TrimSpace(string(b))
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
