package monitor

import (
	"context"

	"github.com/fuomag9/uptimed/internal/models"
)

// DNSChecker does not resolve records itself; it reports reachability of the
// target host through the fallback checker (ping).
type DNSChecker struct {
	fallback Checker
}

// NewDNSChecker creates a DNS checker delegating to fallback.
func NewDNSChecker(fallback Checker) *DNSChecker {
	return &DNSChecker{fallback: fallback}
}

func (d *DNSChecker) Name() string {
	return models.KindDNS
}

func (d *DNSChecker) Check(ctx context.Context, monitor *models.Monitor) Outcome {
	return d.fallback.Check(ctx, monitor)
}

func (d *DNSChecker) Validate(monitor *models.Monitor) error {
	return d.fallback.Validate(monitor)
}
