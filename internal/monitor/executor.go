package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/fuomag9/uptimed/internal/models"
)

// ErrUnknownKind is returned when no checker is registered for a monitor kind.
var ErrUnknownKind = errors.New("unknown monitor kind")

// TimeoutCause is the error recorded for probes that exceed their timeout.
const TimeoutCause = "timeout"

// Executor runs one probe through the registry and enforces the monitor's
// timeout even when a checker ignores its context.
type Executor struct {
	registry *Registry
}

// NewExecutor creates an executor over registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Registry returns the checker registry.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Validate checks the monitor target with its kind's checker.
func (e *Executor) Validate(monitor *models.Monitor) error {
	checker, ok := e.registry.Get(monitor.Type)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, monitor.Type)
	}
	return checker.Validate(monitor)
}

// Run performs one check. The only error is ErrUnknownKind; probe failures
// are reported in the Outcome.
func (e *Executor) Run(ctx context.Context, monitor *models.Monitor) (Outcome, error) {
	checker, ok := e.registry.Get(monitor.Type)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownKind, monitor.Type)
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOf(monitor))
	defer cancel()

	done := make(chan Outcome, 1)
	go func() {
		done <- checker.Check(ctx, monitor)
	}()

	select {
	case outcome := <-done:
		if !outcome.OK && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome.Error = TimeoutCause
		}
		return outcome, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Failure(TimeoutCause), nil
		}
		return Failure("check cancelled"), nil
	}
}
