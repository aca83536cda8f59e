package monitor

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/fuomag9/uptimed/internal/models"
)

// HTTPChecker implements HTTP/HTTPS monitoring. Any response below 400 is healthy.
type HTTPChecker struct {
	ssrf      *SSRFProtection
	tlsConfig *tls.Config
	now       func() time.Time
}

// NewHTTPChecker creates an HTTP checker. When allowPrivateIPs is false every
// probe is screened by the SSRF guard first.
func NewHTTPChecker(allowPrivateIPs bool) *HTTPChecker {
	h := &HTTPChecker{now: time.Now}
	if !allowPrivateIPs {
		h.ssrf = NewSSRFProtection(false)
	}
	return h
}

// Name returns the monitor type name
func (h *HTTPChecker) Name() string {
	return models.KindHTTP
}

// Validate validates the HTTP monitor target
func (h *HTTPChecker) Validate(monitor *models.Monitor) error {
	u, err := url.Parse(monitor.Target)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: URL must start with http:// or https://", ErrInvalidTarget)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: URL must have a hostname", ErrInvalidTarget)
	}
	return nil
}

// Check performs the HTTP check
func (h *HTTPChecker) Check(ctx context.Context, monitor *models.Monitor) Outcome {
	if h.ssrf != nil {
		if err := h.ssrf.ValidateURL(ctx, monitor.Target); err != nil {
			return Failure(fmt.Sprintf("URL validation failed: %v", err))
		}
	}

	timeout := timeoutOf(monitor)
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:     (&net.Dialer{Timeout: timeout}).DialContext,
			TLSClientConfig: h.tlsConfig,
			// One probe per connection; reused sockets would hide connect latency.
			DisableKeepAlives: true,
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, monitor.Target, nil)
	if err != nil {
		return Failure(fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("User-Agent", "uptimed/1.0")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return Failure(fmt.Sprintf("request failed: %v", err))
	}
	latency := latencySince(start)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	outcome := Outcome{
		OK:        resp.StatusCode < 400,
		LatencyMs: latency,
	}
	if !outcome.OK {
		outcome.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	if resp.TLS != nil && len(resp.TLS.PeerCertificates) > 0 {
		days := certDaysLeft(resp.TLS.PeerCertificates[0].NotAfter, h.now())
		outcome.CertExpiryDays = &days
	}

	return outcome
}

// certDaysLeft returns whole days until notAfter, negative once expired.
func certDaysLeft(notAfter, now time.Time) int {
	return int(math.Floor(notAfter.Sub(now).Hours() / 24))
}
