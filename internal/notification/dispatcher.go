package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fuomag9/uptimed/internal/config"
	"github.com/fuomag9/uptimed/internal/engine"
	"github.com/fuomag9/uptimed/internal/models"
)

// IncidentSource is the part of the engine the dispatcher reads from.
type IncidentSource interface {
	PendingNotifications(ctx context.Context) ([]models.Incident, error)
	MarkIncidentNotified(ctx context.Context, id string) error
	GetMonitor(ctx context.Context, id string) (*models.Monitor, error)
}

// Dispatcher announces incidents to every configured provider
type Dispatcher struct {
	source    IncidentSource
	providers []Provider
	appURL    string
	log       *zap.Logger
	now       func() time.Time

	wg sync.WaitGroup
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(source IncidentSource, log *zap.Logger, appURL string, providers ...Provider) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		source:    source,
		providers: providers,
		appURL:    strings.TrimRight(appURL, "/"),
		log:       log,
		now:       time.Now,
	}
}

// Enabled reports whether any provider is configured.
func (d *Dispatcher) Enabled() bool {
	return len(d.providers) > 0
}

// Sweep sends a DOWN message for every open incident not yet announced and
// marks each one notified once all providers accepted it. Incidents that
// failed stay pending for the next sweep.
func (d *Dispatcher) Sweep(ctx context.Context) (int, error) {
	if !d.Enabled() {
		return 0, nil
	}

	pending, err := d.source.PendingNotifications(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending notifications: %w", err)
	}

	sent := 0
	for i := range pending {
		inc := &pending[i]
		mon, err := d.source.GetMonitor(ctx, inc.MonitorID)
		if err != nil {
			d.log.Warn("skipping notification for unknown monitor",
				zap.String("incident_id", inc.ID), zap.Error(err))
			continue
		}

		if err := d.send(ctx, d.downMessage(mon, inc)); err != nil {
			d.log.Warn("incident notification failed",
				zap.String("incident_id", inc.ID), zap.Error(err))
			continue
		}
		if err := d.source.MarkIncidentNotified(ctx, inc.ID); err != nil {
			return sent, err
		}
		sent++
	}

	return sent, nil
}

// CheckRecorded sends an UP message when an announced incident resolves.
// Delivery happens in the background; Wait blocks until it finishes.
func (d *Dispatcher) CheckRecorded(event engine.CheckEvent) {
	if !d.Enabled() || event.Resolved == nil || !event.Resolved.Notified {
		return
	}

	msg := d.upMessage(&event.Monitor, event.Resolved)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := d.send(ctx, msg); err != nil {
			d.log.Warn("recovery notification failed",
				zap.String("incident_id", msg.IncidentID), zap.Error(err))
		}
	}()
}

// Wait blocks until background deliveries have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// send delivers msg to all providers concurrently
func (d *Dispatcher) send(ctx context.Context, msg *Message) error {
	errCh := make(chan error, len(d.providers))
	for _, p := range d.providers {
		go func(p Provider) {
			if err := p.Send(ctx, msg); err != nil {
				errCh <- fmt.Errorf("%s: %w", p.Name(), err)
				return
			}
			errCh <- nil
		}(p)
	}

	var failed []string
	for range d.providers {
		if err := <-errCh; err != nil {
			failed = append(failed, err.Error())
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to send %d/%d notifications: %s",
			len(failed), len(d.providers), strings.Join(failed, "; "))
	}
	return nil
}

func (d *Dispatcher) link(m *models.Monitor) string {
	if d.appURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/api/monitors/%s", d.appURL, m.ID)
}

func (d *Dispatcher) downMessage(m *models.Monitor, inc *models.Incident) *Message {
	return &Message{
		Title:       fmt.Sprintf("%s is DOWN", m.Name),
		Body:        inc.Cause,
		IncidentID:  inc.ID,
		MonitorID:   m.ID,
		MonitorName: m.Name,
		Target:      m.Target,
		Status:      models.StatusDown,
		StartedAt:   inc.StartedAt.Time,
		Link:        d.link(m),
		Time:        d.now().UTC(),
	}
}

func (d *Dispatcher) upMessage(m *models.Monitor, inc *models.Incident) *Message {
	return &Message{
		Title:       fmt.Sprintf("%s is UP", m.Name),
		Body:        "Monitor recovered",
		IncidentID:  inc.ID,
		MonitorID:   m.ID,
		MonitorName: m.Name,
		Target:      m.Target,
		Status:      models.StatusUp,
		StartedAt:   inc.StartedAt.Time,
		DurationS:   inc.DurationS,
		Link:        d.link(m),
		Time:        d.now().UTC(),
	}
}

// FromConfig builds the providers enabled in cfg.
func FromConfig(cfg config.NotifyConfig) []Provider {
	var providers []Provider
	if cfg.WebhookURL != "" {
		providers = append(providers, NewWebhookProvider(cfg.WebhookURL, nil))
	}
	if cfg.SlackWebhookURL != "" {
		providers = append(providers, NewSlackProvider(cfg.SlackWebhookURL, cfg.SlackChannel))
	}
	if cfg.NtfyTopic != "" {
		providers = append(providers, NewNtfyProvider(cfg.NtfyServer, cfg.NtfyTopic))
	}
	return providers
}
