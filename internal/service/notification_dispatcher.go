package service

import (
	"context"
	"fmt"
	"log"
	"tea_refill/internal/domain"
	"time"
)

// TokenDirectory resolves the push token of a kitchen or agent user.
type TokenDirectory interface {
	PushToken(ctx context.Context, userID string) (string, error)
}

type PushSender interface {
	Send(ctx context.Context, msg domain.PushMessage) error
}

// MachinePublisher delivers a status message to a machine's IoT topic.
type MachinePublisher interface {
	PublishToMachine(ctx context.Context, machineID string, payload domain.MachineCommandPayload) error
}

// EventPublisher appends lifecycle events to a durable log.
type EventPublisher interface {
	PublishRequestEvent(ctx context.Context, event domain.RequestEvent) error
}

// WebSocketManager avoids importing the handler package.
type WebSocketManager interface {
	BroadcastRequestEvent(event domain.RequestEvent)
}

// NotificationDispatcher delivers the outbox returned by the lifecycle core. Delivery is
// best effort: failures are logged and counted, never returned.
type NotificationDispatcher struct {
	tokens    TokenDirectory
	push      PushSender
	machines  MachinePublisher
	events    EventPublisher
	websocket WebSocketManager
	now       func() time.Time
}

func NewNotificationDispatcher(tokens TokenDirectory, push PushSender, machines MachinePublisher, events EventPublisher, ws WebSocketManager) *NotificationDispatcher {
	return &NotificationDispatcher{
		tokens:    tokens,
		push:      push,
		machines:  machines,
		events:    events,
		websocket: ws,
		now:       time.Now,
	}
}

func (d *NotificationDispatcher) Dispatch(ctx context.Context, notifications []domain.Notification) domain.DispatchReport {
	var report domain.DispatchReport
	for _, n := range notifications {
		err := d.deliver(ctx, n)
		if err != nil {
			report.Failed++
			log.Printf("NotificationDispatcher: %s notification for %s (%s) failed: %v", n.Role, n.RecipientUserID, n.RequestID, err)
		} else {
			report.Sent++
		}

		event := domain.RequestEvent{
			NotificationID:  n.ID,
			RequestID:       n.RequestID,
			Status:          n.Status,
			RecipientUserID: n.RecipientUserID,
			Role:            n.Role,
			Message:         n.Message,
			Delivered:       err == nil,
			Timestamp:       d.now().UTC(),
		}
		if d.websocket != nil {
			d.websocket.BroadcastRequestEvent(event)
		}
		if d.events != nil {
			if err := d.events.PublishRequestEvent(ctx, event); err != nil {
				log.Printf("NotificationDispatcher: event log append for %s failed: %v", n.RequestID, err)
			}
		}
	}
	return report
}

func (d *NotificationDispatcher) deliver(ctx context.Context, n domain.Notification) error {
	switch n.Role {
	case domain.RoleMachine:
		if d.machines == nil {
			return fmt.Errorf("no machine publisher configured")
		}
		return d.machines.PublishToMachine(ctx, n.RecipientUserID, domain.MachineCommandPayload{
			RequestID: n.RequestID,
			Status:    n.Status,
			Message:   n.Message,
		})
	case domain.RoleKitchen, domain.RoleAgent:
		if d.tokens == nil || d.push == nil {
			return fmt.Errorf("push delivery not configured")
		}
		token, err := d.tokens.PushToken(ctx, n.RecipientUserID)
		if err != nil {
			return fmt.Errorf("resolve push token: %w", err)
		}
		if token == "" {
			return fmt.Errorf("user %s has no push token", n.RecipientUserID)
		}
		return d.push.Send(ctx, domain.PushMessage{
			Token:     token,
			Title:     fmt.Sprintf("Refill %s: %s", n.RequestID, n.Status),
			Body:      n.Message,
			RequestID: n.RequestID,
			Status:    n.Status,
		})
	}
	return fmt.Errorf("unsupported recipient role '%s'", n.Role)
}
