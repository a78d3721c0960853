package domain

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

type TargetID string

// Target is one monitored endpoint and its probe configuration.
type Target struct {
	ID                TargetID          `json:"id" yaml:"id"`
	Name              string            `json:"name" yaml:"name"`
	URL               string            `json:"url" yaml:"url"`
	Method            string            `json:"method" yaml:"method"`
	Headers           map[string]string `json:"headers,omitempty" yaml:"headers"`
	Body              string            `json:"body,omitempty" yaml:"body"`
	ExpectedStatus    []int             `json:"expected_status" yaml:"expected_status"`
	JSONAssert        []JSONAssertion   `json:"json_assert,omitempty" yaml:"json_assert"`
	Interval          time.Duration     `json:"-" yaml:"interval"`
	Timeout           time.Duration     `json:"-" yaml:"timeout"`
	FailureThreshold  int               `json:"failure_threshold" yaml:"failure_threshold"`
	RecoveryThreshold int               `json:"recovery_threshold" yaml:"recovery_threshold"`
	Paused            bool              `json:"paused" yaml:"paused"`
	CreatedAt         time.Time         `json:"created_at" yaml:"-"`
}

// Defaults fill the zero-valued fields of a Target.
type Defaults struct {
	Interval          time.Duration
	Timeout           time.Duration
	FailureThreshold  int
	RecoveryThreshold int
}

// MinInterval is the shortest accepted check interval.
var MinInterval = time.Second

var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// ApplyDefaults fills omitted fields. Explicit invalid values are left for
// Validate to reject.
func (t *Target) ApplyDefaults(d Defaults) {
	t.Method = strings.ToUpper(strings.TrimSpace(t.Method))
	if t.Method == "" {
		t.Method = http.MethodGet
	}
	if len(t.ExpectedStatus) == 0 {
		t.ExpectedStatus = []int{http.StatusOK}
	}
	if t.Interval == 0 {
		t.Interval = d.Interval
	}
	if t.Timeout == 0 {
		t.Timeout = d.Timeout
	}
	if t.FailureThreshold == 0 {
		t.FailureThreshold = d.FailureThreshold
	}
	if t.RecoveryThreshold == 0 {
		t.RecoveryThreshold = d.RecoveryThreshold
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		if u, err := url.Parse(t.URL); err == nil && u.Hostname() != "" {
			t.Name = u.Hostname()
		}
	}
}

// Validate checks the Target invariants. The returned error is a
// *ValidationError listing every offending field.
func (t *Target) Validate() error {
	fields := map[string]string{}

	if t.Name == "" {
		fields["name"] = "must not be empty"
	}
	u, err := url.Parse(t.URL)
	switch {
	case t.URL == "":
		fields["url"] = "must not be empty"
	case err != nil:
		fields["url"] = "not a valid URL"
	case u.Scheme != "http" && u.Scheme != "https":
		fields["url"] = "scheme must be http or https"
	case u.Host == "":
		fields["url"] = "host is required"
	}
	if !allowedMethods[t.Method] {
		fields["method"] = fmt.Sprintf("unsupported method %q", t.Method)
	}
	if len(t.ExpectedStatus) == 0 {
		fields["expected_status"] = "at least one code is required"
	}
	for _, c := range t.ExpectedStatus {
		if c < 100 || c > 599 {
			fields["expected_status"] = fmt.Sprintf("code %d out of range 100-599", c)
			break
		}
	}
	for name := range t.Headers {
		if strings.TrimSpace(name) == "" {
			fields["headers"] = "header name must not be empty"
			break
		}
	}
	for _, a := range t.JSONAssert {
		if err := a.validate(); err != nil {
			fields["json_assert"] = err.Error()
			break
		}
	}
	if t.Interval < MinInterval {
		fields["interval"] = "must be at least " + MinInterval.String()
	}
	if t.Timeout <= 0 {
		fields["timeout"] = "must be greater than zero"
	}
	if t.FailureThreshold < 1 {
		fields["failure_threshold"] = "must be at least 1"
	}
	if t.RecoveryThreshold < 1 {
		fields["recovery_threshold"] = "must be at least 1"
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// Expects reports whether code is one of the acceptable status codes.
func (t *Target) Expects(code int) bool {
	if len(t.ExpectedStatus) == 0 {
		return code == http.StatusOK
	}
	for _, c := range t.ExpectedStatus {
		if c == code {
			return true
		}
	}
	return false
}

// ValidationError is returned when a Target violates its invariants.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid target: " + strings.Join(parts, "; ")
}
