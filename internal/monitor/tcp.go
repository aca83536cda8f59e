package monitor

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/fuomag9/uptimed/internal/models"
)

const defaultTCPPort = "80"

// TCPChecker checks if a TCP port accepts connections
type TCPChecker struct {
	ssrf *SSRFProtection
}

// NewTCPChecker creates a TCP checker. When allowPrivateIPs is false the
// target host is screened before dialing.
func NewTCPChecker(allowPrivateIPs bool) *TCPChecker {
	t := &TCPChecker{}
	if !allowPrivateIPs {
		t.ssrf = NewSSRFProtection(false)
	}
	return t
}

func (t *TCPChecker) Name() string {
	return models.KindTCP
}

func (t *TCPChecker) Check(ctx context.Context, monitor *models.Monitor) Outcome {
	address, err := tcpAddress(monitor.Target)
	if err != nil {
		return Failure(err.Error())
	}

	if t.ssrf != nil {
		host, _, _ := net.SplitHostPort(address)
		if err := t.ssrf.ValidateHost(ctx, host); err != nil {
			return Failure(fmt.Sprintf("host validation failed: %v", err))
		}
	}

	dialer := &net.Dialer{Timeout: timeoutOf(monitor)}

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return Failure(fmt.Sprintf("connection failed: %v", err))
	}
	latency := latencySince(start)
	conn.Close()

	return Outcome{OK: true, LatencyMs: latency}
}

func (t *TCPChecker) Validate(monitor *models.Monitor) error {
	if _, err := tcpAddress(monitor.Target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	return nil
}

// tcpAddress normalizes host[:port], defaulting to port 80.
func tcpAddress(target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("host is required")
	}

	host, port, err := net.SplitHostPort(target)
	if err != nil {
		// No port given.
		host, port = target, defaultTCPPort
	}
	if host == "" {
		return "", fmt.Errorf("host is required")
	}

	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("port must be between 1 and 65535")
	}

	return net.JoinHostPort(host, port), nil
}
