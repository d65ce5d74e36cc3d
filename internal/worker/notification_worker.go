// Package worker runs the background side of the service: forwarding domain
// events to the notifier and sweeping open tickets for SLA alerts.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldops/msp-workflow/internal/domain"
	"github.com/fieldops/msp-workflow/internal/events"
	"github.com/fieldops/msp-workflow/internal/service"
)

// Dependencies bundles the collaborators of a Worker.
type Dependencies struct {
	Notifications *service.NotificationService
	Tickets       *service.TicketService
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Now           func() time.Time
}

// Worker owns background jobs.
type Worker struct {
	notifications *service.NotificationService
	tickets       *service.TicketService
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	now           func() time.Time

	mu      sync.Mutex
	alerted map[string]events.TicketSLAAlertPayload
}

// New constructs a Worker.
func New(deps Dependencies) *Worker {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Worker{
		notifications: deps.Notifications,
		tickets:       deps.Tickets,
		dispatcher:    deps.Dispatcher,
		logger:        logger,
		now:           now,
		alerted:       make(map[string]events.TicketSLAAlertPayload),
	}
}

// StartNotifications subscribes the notification forwarder to every event type.
func (w *Worker) StartNotifications() {
	if w.notifications == nil {
		return
	}
	w.notifications.RegisterHandlers()
}

// RunSLASweep sweeps on every tick until ctx is done. A non-positive interval
// disables the sweep.
func (w *Worker) RunSLASweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 || w.tickets == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.SweepSLA(ctx); err != nil {
				w.logger.Warn("sla sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepSLA evaluates open tickets and publishes an alert for each ticket whose
// breach or escalation flags changed since the last alert. It returns the
// number of alerts published.
func (w *Worker) SweepSLA(ctx context.Context) (int, error) {
	statuses, err := w.tickets.OpenSLAStatuses(ctx)
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	seen := make(map[string]struct{}, len(statuses))
	published := 0
	for _, status := range statuses {
		alert := events.TicketSLAAlertPayload{
			PolicyID:           status.PolicyID,
			ResponseBreached:   status.Response.Breached,
			ResolutionBreached: status.Resolution.Breached,
			ShouldEscalate:     status.ShouldEscalate,
		}
		if !alert.ResponseBreached && !alert.ResolutionBreached && !alert.ShouldEscalate {
			continue
		}
		seen[status.TicketID] = struct{}{}
		if previous, ok := w.alerted[status.TicketID]; ok && previous == alert {
			continue
		}
		w.alerted[status.TicketID] = alert
		w.publish(ctx, status.TicketID, alert)
		published++
	}
	for ticketID := range w.alerted {
		if _, ok := seen[ticketID]; !ok {
			delete(w.alerted, ticketID)
		}
	}
	return published, nil
}

func (w *Worker) publish(ctx context.Context, ticketID string, alert events.TicketSLAAlertPayload) {
	if w.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketSLAAlert,
		TicketID:  ticketID,
		Actor:     events.ActorFrom(domain.SystemActor()),
		Timestamp: w.now().UTC(),
		Payload:   alert,
	}
	if err := w.dispatcher.Publish(ctx, event); err != nil {
		w.logger.Warn("sla alert publish failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
	w.logger.Info("sla alert",
		zap.String("ticket_id", ticketID),
		zap.Bool("response_breached", alert.ResponseBreached),
		zap.Bool("resolution_breached", alert.ResolutionBreached),
		zap.Bool("should_escalate", alert.ShouldEscalate))
}
