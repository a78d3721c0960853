package probe

import (
	"context"

	"github.com/hamed0406/apimonitor/internal/domain"
)

// Checker performs one probe against a target and never returns an error:
// every failure is reported through the outcome.
type Checker interface {
	Execute(ctx context.Context, t domain.Target) domain.CheckOutcome
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, t domain.Target) domain.CheckOutcome

func (f CheckerFunc) Execute(ctx context.Context, t domain.Target) domain.CheckOutcome {
	return f(ctx, t)
}
