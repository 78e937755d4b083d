package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"tea_refill/internal/domain"
	"tea_refill/internal/repository"
	"time"

	"github.com/google/uuid"
	"gopkg.in/guregu/null.v4"
)

type pgStatusUpdateRepository struct {
	q querier
}

const statusUpdateColumns = `id, request_id, user_id, status, latitude, longitude, date_and_time, is_proceed_next, reason, created_at`

func scanStatusUpdate(row rowScanner) (*domain.StatusUpdate, error) {
	u := &domain.StatusUpdate{}
	err := row.Scan(&u.ID, &u.RequestID, &u.UserID, &u.Status, &u.Latitude, &u.Longitude, &u.DateAndTime, &u.IsProceedNext, &u.Reason, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.In(time.UTC)
	return u, nil
}

func (r *pgStatusUpdateRepository) Create(ctx context.Context, update *domain.StatusUpdate) error {
	if update.ID == "" {
		update.ID = uuid.NewString()
	}
	query := `INSERT INTO request_status_updates
	              (id, request_id, user_id, status, latitude, longitude, date_and_time, is_proceed_next, reason, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP)
	          RETURNING created_at`
	err := r.q.QueryRowContext(ctx, query,
		update.ID, update.RequestID, update.UserID, update.Status, update.Latitude, update.Longitude,
		update.DateAndTime, update.IsProceedNext, update.Reason,
	).Scan(&update.CreatedAt)
	if err != nil {
		return fmt.Errorf("StatusUpdateRepository.Create: %w", err)
	}
	update.CreatedAt = update.CreatedAt.In(time.UTC)
	return nil
}

func (r *pgStatusUpdateRepository) FindByRequestID(ctx context.Context, requestID string) ([]domain.StatusUpdate, error) {
	query := `SELECT ` + statusUpdateColumns + ` FROM request_status_updates WHERE request_id = $1 ORDER BY seq`
	rows, err := r.q.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("StatusUpdateRepository.FindByRequestID: %w", err)
	}
	defer rows.Close()

	var updates []domain.StatusUpdate
	for rows.Next() {
		u, err := scanStatusUpdate(rows)
		if err != nil {
			return nil, fmt.Errorf("StatusUpdateRepository.FindByRequestID (scan): %w", err)
		}
		updates = append(updates, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("StatusUpdateRepository.FindByRequestID (rows): %w", err)
	}
	return updates, nil
}

func (r *pgStatusUpdateRepository) FindByRequestAndUser(ctx context.Context, requestID, userID string) (*domain.StatusUpdate, error) {
	query := `SELECT ` + statusUpdateColumns + ` FROM request_status_updates
	          WHERE request_id = $1 AND user_id = $2 ORDER BY seq DESC LIMIT 1`
	u, err := scanStatusUpdate(r.q.QueryRowContext(ctx, query, requestID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("StatusUpdateRepository.FindByRequestAndUser: %w", err)
	}
	return u, nil
}

func (r *pgStatusUpdateRepository) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus, reason null.String) error {
	query := `UPDATE request_status_updates SET status = $1, reason = COALESCE($2, reason) WHERE id = $3`
	result, err := r.q.ExecContext(ctx, query, status, reason, id)
	if err != nil {
		return fmt.Errorf("StatusUpdateRepository.UpdateStatus: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("StatusUpdateRepository.UpdateStatus (rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
