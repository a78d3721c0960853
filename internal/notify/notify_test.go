package notify

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/multierr"
)

type fakeNotifier struct {
	n   int
	err error
}

func (f *fakeNotifier) Send(ctx context.Context, title, text string) error {
	f.n++
	return f.err
}

func TestMulti_SendsToAllAndCombinesErrors(t *testing.T) {
	a := &fakeNotifier{err: errors.New("a down")}
	b := &fakeNotifier{}
	c := &fakeNotifier{err: errors.New("c down")}
	m := Multi{a, nil, b, c}

	err := m.Send(context.Background(), "t", "x")
	if a.n != 1 || b.n != 1 || c.n != 1 {
		t.Fatalf("expected every notifier called once, got %d %d %d", a.n, b.n, c.n)
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 combined errors, got %d (%v)", got, err)
	}
}

func TestMulti_Enabled(t *testing.T) {
	if (Multi{nil, nil}).Enabled() {
		t.Fatal("all-nil multi should be disabled")
	}
	if !(Multi{nil, &fakeNotifier{}}).Enabled() {
		t.Fatal("expected enabled")
	}
}
