package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/fuomag9/uptimed/internal/models"
)

// PushLedger reports when a monitor last received a heartbeat with a given status.
type PushLedger interface {
	LastHeartbeatAt(ctx context.Context, monitorID, status string) (*time.Time, error)
}

// PushChecker does not probe anything. Pushes are recorded as they arrive;
// a scheduled check only fails the monitor once pushes stop for longer than
// twice the interval.
type PushChecker struct {
	ledger PushLedger
	now    func() time.Time
}

// NewPushChecker creates a push checker reading push history from ledger.
func NewPushChecker(ledger PushLedger) *PushChecker {
	return &PushChecker{ledger: ledger, now: time.Now}
}

// WithClock replaces the time source used for staleness.
func (p *PushChecker) WithClock(now func() time.Time) *PushChecker {
	p.now = now
	return p
}

func (p *PushChecker) Name() string {
	return models.KindPush
}

func (p *PushChecker) Check(ctx context.Context, monitor *models.Monitor) Outcome {
	window := 2 * time.Duration(monitor.IntervalS) * time.Second

	last, err := p.ledger.LastHeartbeatAt(ctx, monitor.ID, models.StatusUp)
	if err != nil {
		return Failure(fmt.Sprintf("failed to read push history: %v", err))
	}

	// A monitor that never received a push gets one window of grace from creation.
	reference := monitor.CreatedAt.Time
	if last != nil {
		reference = *last
	}

	if p.now().Sub(reference) <= window {
		return Outcome{OK: true, Passive: true}
	}
	return Failure(fmt.Sprintf("no push received within %ds", int(window.Seconds())))
}

func (p *PushChecker) Validate(monitor *models.Monitor) error {
	return nil
}
