package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hamed0406/apimonitor/internal/domain"
)

const defaultMaxBody = 8 << 20

// HTTPChecker executes HTTP probes. Validation runs in a fixed order and
// stops at the first failure: connection, timeout, status code, JSON
// assertions.
type HTTPChecker struct {
	Client *http.Client
	DNS    *DNSDiagnoser

	// MaxBody caps the bytes decoded for JSON assertions. The rest of the
	// body is read and discarded.
	MaxBody int64
}

type Option func(*HTTPChecker)

func WithClient(c *http.Client) Option { return func(h *HTTPChecker) { h.Client = c } }

// WithDNSDiagnostics appends a DNS classification to connection errors.
func WithDNSDiagnostics(d *DNSDiagnoser) Option { return func(h *HTTPChecker) { h.DNS = d } }

func WithMaxBody(n int64) Option { return func(h *HTTPChecker) { h.MaxBody = n } }

func NewHTTPChecker(opts ...Option) *HTTPChecker {
	h := &HTTPChecker{
		// no client-level timeout: each request is bounded by the target timeout
		Client:  &http.Client{},
		MaxBody: defaultMaxBody,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (c *HTTPChecker) Execute(ctx context.Context, t domain.Target) domain.CheckOutcome {
	start := time.Now()
	out := domain.CheckOutcome{TargetID: t.ID, CheckedAt: start.UTC()}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if t.Body != "" {
		body = strings.NewReader(t.Body)
	}
	method := t.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(reqCtx, method, t.URL, body)
	if err != nil {
		return fail(out, start, domain.ReasonConnection, err.Error())
	}
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}
	if t.Body != "" && req.Header.Get("Content-Type") == "" && json.Valid([]byte(t.Body)) {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		reason := classify(reqCtx, err)
		out = fail(out, start, reason, err.Error())
		if reason == domain.ReasonConnection && c.DNS != nil && ctx.Err() == nil {
			if class := c.DNS.Diagnose(ctx, t.URL); class != "" {
				out.Detail += " dns=" + class
			}
		}
		return out
	}
	defer resp.Body.Close()

	out.HTTPStatus = resp.StatusCode
	statusOK := t.Expects(resp.StatusCode)

	src := &bodyReader{r: resp.Body, left: c.maxBody()}
	var assertErr error
	if statusOK && len(t.JSONAssert) > 0 {
		assertErr = EvaluateReader(src, t.JSONAssert)
	}
	// latency covers the full response, so the remainder is drained
	rest, err := io.Copy(io.Discard, resp.Body)
	if err != nil && src.err == nil {
		src.err = err
	}
	if src.err != nil {
		return fail(out, start, classify(reqCtx, src.err), "reading body: "+src.err.Error())
	}
	out.LatencyMS = sinceMS(start)

	if !statusOK {
		out.Reason = domain.ReasonStatusMismatch
		out.Detail = fmt.Sprintf("expected %v, got %d", expected(t), resp.StatusCode)
		return out
	}
	if assertErr != nil {
		out.Reason = domain.ReasonJSONAssertion
		out.Detail = assertErr.Error()
		if src.left == 0 && rest > 0 {
			out.Detail = fmt.Sprintf("response body exceeds %d bytes", c.maxBody())
		}
		return out
	}

	out.Success = true
	out.Reason = domain.ReasonNone
	out.Detail = resp.Status
	return out
}

func (c *HTTPChecker) maxBody() int64 {
	if c.MaxBody <= 0 {
		return defaultMaxBody
	}
	return c.MaxBody
}

// bodyReader reads at most left bytes and keeps the first transport error,
// so a truncated read is not mistaken for malformed JSON.
type bodyReader struct {
	r    io.Reader
	left int64
	err  error
}

func (b *bodyReader) Read(p []byte) (int, error) {
	if b.left <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > b.left {
		p = p[:b.left]
	}
	n, err := b.r.Read(p)
	b.left -= int64(n)
	if err != nil && err != io.EOF && b.err == nil {
		b.err = err
	}
	return n, err
}

func fail(out domain.CheckOutcome, start time.Time, reason domain.FailureReason, detail string) domain.CheckOutcome {
	out.Success = false
	out.LatencyMS = sinceMS(start)
	out.Reason = reason
	out.Detail = detail
	return out
}

// classify maps a transport error onto timeout or connection_error.
func classify(ctx context.Context, err error) domain.FailureReason {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ReasonTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.ReasonTimeout
	}
	return domain.ReasonConnection
}

func expected(t domain.Target) []int {
	if len(t.ExpectedStatus) == 0 {
		return []int{http.StatusOK}
	}
	return t.ExpectedStatus
}

func sinceMS(start time.Time) float64 {
	return time.Since(start).Seconds() * 1000
}
