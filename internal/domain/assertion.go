package domain

import (
	"errors"
	"strings"
)

// JSONAssertion requires a value to exist at Path in a JSON response body.
//
// Path is a dot separated list of segments. A segment made only of digits
// indexes into an array; any other segment is an object key. When Equals is
// set, the value found must match it exactly: strings compare by their raw
// text, numbers, booleans and null by their JSON literal, and objects or
// arrays by their compact JSON encoding. The comparison is on text only, so
// Equals "1" matches both the number 1 and the string "1", and "true"
// matches both true and "true".
type JSONAssertion struct {
	Path   string  `json:"path" yaml:"path"`
	Equals *string `json:"equals,omitempty" yaml:"equals"`
}

// ParseJSONAssertion parses the textual form "path" or "path=value".
func ParseJSONAssertion(s string) (JSONAssertion, error) {
	s = strings.TrimSpace(s)
	var a JSONAssertion
	if path, val, ok := strings.Cut(s, "="); ok {
		v := val
		a.Path, a.Equals = strings.TrimSpace(path), &v
	} else {
		a.Path = s
	}
	return a, a.validate()
}

func (a JSONAssertion) String() string {
	if a.Equals == nil {
		return a.Path
	}
	return a.Path + "=" + *a.Equals
}

// Segments returns the path split into its segments.
func (a JSONAssertion) Segments() []string {
	return strings.Split(a.Path, ".")
}

func (a JSONAssertion) validate() error {
	if a.Path == "" {
		return errors.New("assertion path must not be empty")
	}
	for _, seg := range a.Segments() {
		if seg == "" {
			return errors.New("assertion path " + a.Path + " has an empty segment")
		}
	}
	return nil
}
