package monitor

import (
	"context"
	"fmt"

	"github.com/go-ping/ping"

	"github.com/fuomag9/uptimed/internal/models"
)

// PingChecker sends a single ICMP echo per check
type PingChecker struct {
	privileged bool
}

// NewPingChecker creates a ping checker. Unprivileged mode uses UDP ICMP
// sockets; privileged mode needs raw socket capability.
func NewPingChecker(privileged bool) *PingChecker {
	return &PingChecker{privileged: privileged}
}

func (p *PingChecker) Name() string {
	return models.KindPing
}

func (p *PingChecker) Check(ctx context.Context, monitor *models.Monitor) Outcome {
	if monitor.Target == "" {
		return Failure("no host specified")
	}

	pinger, err := ping.NewPinger(monitor.Target)
	if err != nil {
		return Failure(fmt.Sprintf("failed to create pinger: %v", err))
	}

	pinger.Count = 1
	pinger.Timeout = timeoutOf(monitor)
	pinger.SetPrivileged(p.privileged)

	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case <-ctx.Done():
		pinger.Stop()
		<-done
		return Failure("ping cancelled")
	case err := <-done:
		if err != nil {
			return Failure(fmt.Sprintf("ping failed: %v", err))
		}
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return Failure("no reply (100% packet loss)")
	}

	rtt := float64(stats.AvgRtt.Microseconds()) / 1000
	return Outcome{OK: true, LatencyMs: &rtt}
}

func (p *PingChecker) Validate(monitor *models.Monitor) error {
	if monitor.Target == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidTarget)
	}
	return nil
}
