package probe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/hamed0406/apimonitor/internal/domain"
)

// EvaluateAll decodes body once and checks every assertion against it.
// The first failing assertion is reported.
func EvaluateAll(body []byte, asserts []domain.JSONAssertion) error {
	return EvaluateReader(bytes.NewReader(body), asserts)
}

// EvaluateReader is EvaluateAll for a streamed body. Only the first JSON
// value of r is read.
func EvaluateReader(r io.Reader, asserts []domain.JSONAssertion) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("response body is not JSON: %w", err)
	}
	for _, a := range asserts {
		if err := evaluate(doc, a); err != nil {
			return err
		}
	}
	return nil
}

func evaluate(doc any, a domain.JSONAssertion) error {
	v, ok := lookup(doc, a.Segments())
	if !ok {
		return fmt.Errorf("json path %q not found", a.Path)
	}
	if a.Equals == nil {
		return nil
	}
	got, err := literal(v)
	if err != nil {
		return fmt.Errorf("json path %q: %w", a.Path, err)
	}
	if got != *a.Equals {
		return fmt.Errorf("json path %q: expected %q, got %q", a.Path, *a.Equals, got)
	}
	return nil
}

func lookup(cur any, segs []string) (any, bool) {
	for _, seg := range segs {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// literal renders a decoded value in the form used for Equals comparison.
func literal(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case nil:
		return "null", nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
