package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"tea_refill/internal/domain"
	"tea_refill/internal/repository"
)

type pgMachineEventsLogRepository struct {
	db *sql.DB
}

func NewPgMachineEventsLogRepository(db *sql.DB) repository.MachineEventsLogRepository {
	return &pgMachineEventsLogRepository{db: db}
}

func (r *pgMachineEventsLogRepository) Create(ctx context.Context, event *domain.MachineEventLog) error {
	query := `INSERT INTO machine_events_log
                (received_at, machine_id, mqtt_topic, message_type, payload, processed_status, processing_notes)
               VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	var payload []byte
	if len(event.Payload) > 0 {
		payload = event.Payload
	}

	err := r.db.QueryRowContext(ctx, query,
		event.ReceivedAt,
		sql.NullString{String: event.MachineID, Valid: event.MachineID != ""},
		sql.NullString{String: event.MqttTopic, Valid: event.MqttTopic != ""},
		sql.NullString{String: event.MessageType, Valid: event.MessageType != ""},
		payload,
		sql.NullString{String: event.ProcessedStatus, Valid: event.ProcessedStatus != ""},
		sql.NullString{String: event.ProcessingNotes, Valid: event.ProcessingNotes != ""},
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("MachineEventsLogRepository.Create: %w", err)
	}
	return nil
}
