package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"tea_refill/internal/domain"
	"tea_refill/internal/repository"
	"time"
)

type IoTService struct {
	requestService *RequestService
	dispatcher     *NotificationDispatcher
	eventLogRepo   repository.MachineEventsLogRepository
}

func NewIoTService(rs *RequestService, dispatcher *NotificationDispatcher, eventLogRepo repository.MachineEventsLogRepository) *IoTService {
	return &IoTService{
		requestService: rs,
		dispatcher:     dispatcher,
		eventLogRepo:   eventLogRepo,
	}
}

func (s *IoTService) logEvent(entry *domain.MachineEventLog) {
	if s.eventLogRepo == nil {
		return
	}
	if err := s.eventLogRepo.Create(context.Background(), entry); err != nil {
		log.Printf("IoTService: could not write machine event log (%s): %v", entry.ProcessedStatus, err)
	}
}

// permanent reports errors that a redelivery cannot fix.
func permanent(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrMachineNotFound) ||
		errors.Is(err, ErrInvalidCoordinates)
}

// HandleDeviceEvent processes one message from the machine event queue. A non-nil
// return leaves the message on the queue for another attempt.
func (s *IoTService) HandleDeviceEvent(ctx context.Context, sqsMessageBody string) error {
	log.Printf("IoTService: processing SQS event: %s", sqsMessageBody)

	var genericEvent domain.GenericIoTEvent
	if err := json.Unmarshal([]byte(sqsMessageBody), &genericEvent); err != nil {
		log.Printf("IoTService: malformed event body, dropping: %v", err)
		s.logEvent(&domain.MachineEventLog{
			ReceivedAt:      time.Now().UTC(),
			ProcessedStatus: "error",
			ProcessingNotes: fmt.Sprintf("Failed to unmarshal event: %v", err),
		})
		return nil
	}
	genericEvent.RawPayload = json.RawMessage(sqsMessageBody)

	entry := &domain.MachineEventLog{
		ReceivedAt:      time.Now().UTC(),
		MachineID:       genericEvent.DeviceID,
		MqttTopic:       genericEvent.ReceivedMqttTopic,
		MessageType:     genericEvent.MessageType,
		Payload:         genericEvent.RawPayload,
		ProcessedStatus: "processed",
	}

	var processingError error
	switch genericEvent.MessageType {
	case domain.MessageTypeCanisterLevel:
		var event domain.CanisterLevelEvent
		if err := json.Unmarshal(genericEvent.RawPayload, &event); err != nil {
			processingError = fmt.Errorf("%w: canister_level event: %v", ErrInvalidInput, err)
			break
		}
		event.GenericIoTEvent = genericEvent
		entry.MachineID = event.Machine()
		processingError = s.handleCanisterLevel(ctx, event, entry)
	default:
		log.Printf("IoTService: unhandled message type '%s'", genericEvent.MessageType)
		entry.ProcessedStatus = "ignored"
	}

	if processingError != nil {
		entry.ProcessedStatus = "error"
		entry.ProcessingNotes = processingError.Error()
		log.Printf("IoTService: error handling '%s' (machine %s, topic %s): %v",
			genericEvent.MessageType, entry.MachineID, genericEvent.ReceivedMqttTopic, processingError)
	}
	s.logEvent(entry)

	if processingError != nil && permanent(processingError) {
		return nil
	}
	return processingError
}

func (s *IoTService) handleCanisterLevel(ctx context.Context, event domain.CanisterLevelEvent, entry *domain.MachineEventLog) error {
	result, err := s.requestService.CheckCanisterLevel(ctx, domain.CanisterLevelInput{
		MachineID:     event.Machine(),
		CanisterLevel: event.CanisterLevel,
	})
	if err != nil {
		return err
	}
	entry.ProcessingNotes = result.Message
	if len(result.Notifications) > 0 && s.dispatcher != nil {
		report := s.dispatcher.Dispatch(ctx, result.Notifications)
		log.Printf("IoTService: %s notifications sent=%d failed=%d", result.RequestID, report.Sent, report.Failed)
	}
	return nil
}
