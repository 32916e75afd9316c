package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Jessir1108/Capta-Tickets/internal/config"
	"github.com/Jessir1108/Capta-Tickets/internal/events"
)

// AlertService turns data-quality events into operator notifications.
type AlertService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewAlertService creates the service.
func NewAlertService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *AlertService {
	return &AlertService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (a *AlertService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventInconsistencyDetected, a.handleInconsistency)
	a.dispatcher.Subscribe(events.EventMalformedHistory, a.handleMalformedHistory)
	a.dispatcher.Subscribe(events.EventAuditCompleted, a.handleAuditCompleted)
}

func (a *AlertService) handleInconsistency(ctx context.Context, event events.Event) error {
	a.logger.Info("InconsistencyDetected", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	a.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (a *AlertService) handleMalformedHistory(ctx context.Context, event events.Event) error {
	a.logger.Info("MalformedHistory", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	a.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (a *AlertService) handleAuditCompleted(ctx context.Context, event events.Event) error {
	a.logger.Info("AuditCompleted", zap.String("event_id", event.ID), zap.Any("payload", event.Payload))
	payload, ok := event.Payload.(events.AuditCompletedPayload)
	if ok && (payload.Inconsistent > 0 || payload.Malformed > 0 || payload.ClassifierMismatches > 0) {
		a.sendEmailNotificationStub(ctx, event)
	}
	return nil
}

func (a *AlertService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(a.cfg.EmailFrom) == "" {
		return
	}
	a.logger.Debug("sendEmailNotificationStub",
		zap.String("from", a.cfg.EmailFrom),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
}

func (a *AlertService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(a.cfg.WebhookURL) == "" {
		return
	}
	a.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", a.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
