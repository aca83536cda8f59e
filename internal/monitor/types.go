package monitor

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/fuomag9/uptimed/internal/models"
)

// ErrInvalidTarget is returned by Validate when a target cannot be probed
// with the checker's protocol.
var ErrInvalidTarget = errors.New("invalid target")

// Checker probes one protocol family. Check never returns an error: every
// failure is reported through Outcome.
type Checker interface {
	// Name returns the monitor kind handled (e.g., "http", "tcp", "ping")
	Name() string

	// Check performs one probe of the monitor's target
	Check(ctx context.Context, monitor *models.Monitor) Outcome

	// Validate validates the monitor target
	Validate(monitor *models.Monitor) error
}

// Outcome is the normalized result of one probe.
type Outcome struct {
	OK             bool
	LatencyMs      *float64
	CertExpiryDays *int
	Error          string

	// Passive outcomes carry no new observation and are not recorded.
	Passive bool
}

// Failure builds a failed outcome.
func Failure(cause string) Outcome {
	return Outcome{OK: false, Error: cause}
}

func latencySince(start time.Time) *float64 {
	ms := float64(time.Since(start).Microseconds()) / 1000
	return &ms
}

func timeoutOf(monitor *models.Monitor) time.Duration {
	if monitor.TimeoutS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(monitor.TimeoutS) * time.Second
}

// Registry maps monitor kinds to checkers.
type Registry struct {
	checkers map[string]Checker
}

// NewRegistry creates a registry holding the given checkers.
func NewRegistry(checkers ...Checker) *Registry {
	r := &Registry{checkers: make(map[string]Checker)}
	for _, c := range checkers {
		r.Register(c)
	}
	return r
}

// Register adds or replaces the checker for c.Name().
func (r *Registry) Register(c Checker) {
	r.checkers[c.Name()] = c
}

// Get returns the checker for a kind.
func (r *Registry) Get(kind string) (Checker, bool) {
	c, ok := r.checkers[kind]
	return c, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.checkers))
	for k := range r.checkers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Options configures the built-in checkers.
type Options struct {
	AllowPrivateIPs bool
	PingPrivileged  bool
}

// NewDefaultRegistry wires every built-in protocol. ledger backs the push checker.
func NewDefaultRegistry(opts Options, ledger PushLedger) *Registry {
	ping := NewPingChecker(opts.PingPrivileged)
	return NewRegistry(
		NewHTTPChecker(opts.AllowPrivateIPs),
		NewTCPChecker(opts.AllowPrivateIPs),
		ping,
		NewDNSChecker(ping),
		NewPushChecker(ledger),
	)
}
