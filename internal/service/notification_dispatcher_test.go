package service

import (
	"context"
	"errors"
	"tea_refill/internal/domain"
	"testing"
)

type mapTokens map[string]string

func (m mapTokens) PushToken(ctx context.Context, userID string) (string, error) {
	token, ok := m[userID]
	if !ok {
		return "", errors.New("unknown user")
	}
	return token, nil
}

type recordingPush struct {
	sent []domain.PushMessage
	fail map[string]bool
}

func (p *recordingPush) Send(ctx context.Context, msg domain.PushMessage) error {
	if p.fail[msg.Token] {
		return errors.New("unregistered token")
	}
	p.sent = append(p.sent, msg)
	return nil
}

type recordingMachines struct {
	published map[string]domain.MachineCommandPayload
}

func (m *recordingMachines) PublishToMachine(ctx context.Context, machineID string, payload domain.MachineCommandPayload) error {
	if m.published == nil {
		m.published = map[string]domain.MachineCommandPayload{}
	}
	m.published[machineID] = payload
	return nil
}

type recordingEvents struct {
	events []domain.RequestEvent
	err    error
}

func (e *recordingEvents) PublishRequestEvent(ctx context.Context, event domain.RequestEvent) error {
	e.events = append(e.events, event)
	return e.err
}

func (e *recordingEvents) BroadcastRequestEvent(event domain.RequestEvent) {
	e.events = append(e.events, event)
}

func TestNotificationDispatcherDispatch(t *testing.T) {
	push := &recordingPush{fail: map[string]bool{"tok-stale": true}}
	machines := &recordingMachines{}
	kafka := &recordingEvents{err: errors.New("broker down")}
	ws := &recordingEvents{}
	d := NewNotificationDispatcher(mapTokens{"K1": "tok-k1", "A1": "tok-stale", "A2": ""}, push, machines, kafka, ws)

	notifications := []domain.Notification{
		newNotification("K1", domain.RoleKitchen, "REQ-0001", domain.StatusPending, "new request"),
		newNotification("A1", domain.RoleAgent, "REQ-0001", domain.StatusOrderReady, "ready"),
		newNotification("A2", domain.RoleAgent, "REQ-0001", domain.StatusOrderReady, "ready"),
		newNotification("A3", domain.RoleAgent, "REQ-0001", domain.StatusOrderReady, "ready"),
		newNotification("M1", domain.RoleMachine, "REQ-0001", domain.StatusPending, "Refill requested"),
		newNotification("X1", domain.RoleAdmin, "REQ-0001", domain.StatusPending, ""),
	}

	report := d.Dispatch(context.Background(), notifications)
	if report.Sent != 2 || report.Failed != 4 {
		t.Errorf("report = %+v, want sent 2 failed 4", report)
	}
	if len(push.sent) != 1 || push.sent[0].Token != "tok-k1" || push.sent[0].RequestID != "REQ-0001" {
		t.Errorf("push sent = %+v", push.sent)
	}
	if p, ok := machines.published["M1"]; !ok || p.Status != domain.StatusPending || p.RequestID != "REQ-0001" {
		t.Errorf("machine payload = %+v", machines.published)
	}
	if len(ws.events) != len(notifications) || len(kafka.events) != len(notifications) {
		t.Errorf("every notification must reach both feeds: ws=%d kafka=%d", len(ws.events), len(kafka.events))
	}
	if !ws.events[0].Delivered || ws.events[1].Delivered {
		t.Errorf("delivered flags = %v, %v", ws.events[0].Delivered, ws.events[1].Delivered)
	}
	if ws.events[0].NotificationID != notifications[0].ID {
		t.Errorf("event id = %s, want %s", ws.events[0].NotificationID, notifications[0].ID)
	}
}

func TestNotificationDispatcherWithoutSinks(t *testing.T) {
	d := NewNotificationDispatcher(nil, nil, nil, nil, nil)
	report := d.Dispatch(context.Background(), []domain.Notification{
		newNotification("K1", domain.RoleKitchen, "REQ-0001", domain.StatusPending, ""),
		newNotification("M1", domain.RoleMachine, "REQ-0001", domain.StatusPending, ""),
	})
	if report.Sent != 0 || report.Failed != 2 {
		t.Errorf("report = %+v, want all failed without panicking", report)
	}
}
