package observability

import "context"

// Checker reports the health of one dependency for the readiness probe.
// Check must honor ctx and be safe for concurrent use.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc struct {
	Component string
	Fn        func(ctx context.Context) error
}

func (c CheckerFunc) Name() string { return c.Component }

func (c CheckerFunc) Check(ctx context.Context) error { return c.Fn(ctx) }
