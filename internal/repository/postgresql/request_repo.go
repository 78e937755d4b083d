package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"tea_refill/internal/domain"
	"tea_refill/internal/repository"
	"time"

	"github.com/lib/pq"
	"gopkg.in/guregu/null.v4"
)

type pgRequestRepository struct {
	q querier
	// lock is set inside WithTx; single-row reads then take a row lock until commit.
	lock bool
}

const requestColumns = `id, request_id, machine_id, request_status, kitchen_status, agent_status,
	kitchen_user_id, kitchen_candidates, agent_user_id, priority, quantity, request_date_time,
	source_address, source_latitude, source_longitude, source_contact_name, source_contact_number,
	destination_address, destination_latitude, destination_longitude, destination_contact_name, destination_contact_number,
	reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.Request, error) {
	req := &domain.Request{}
	var assigned null.String
	var candidates pq.StringArray
	err := row.Scan(
		&req.ID, &req.RequestID, &req.MachineID, &req.RequestStatus, &req.KitchenStatus, &req.AgentStatus,
		&assigned, &candidates, &req.AgentUserID, &req.Priority, &req.Quantity, &req.RequestDateTime,
		&req.Source.Address, &req.Source.Latitude, &req.Source.Longitude, &req.Source.ContactName, &req.Source.ContactNumber,
		&req.Destination.Address, &req.Destination.Latitude, &req.Destination.Longitude, &req.Destination.ContactName, &req.Destination.ContactNumber,
		&req.Reason, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if assigned.Valid {
		req.Kitchen = domain.Assigned{Kitchen: assigned.String}
	} else {
		req.Kitchen = domain.Unassigned{Candidates: []string(candidates)}
	}
	req.CreatedAt = req.CreatedAt.In(time.UTC)
	req.UpdatedAt = req.UpdatedAt.In(time.UTC)
	return req, nil
}

func scanRequests(rows *sql.Rows) ([]domain.Request, error) {
	defer rows.Close()
	var requests []domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// kitchenColumnsFor splits the assignment into the two storage columns.
func kitchenColumnsFor(a domain.KitchenAssignment) (null.String, pq.StringArray) {
	if kitchen, ok := domain.AssignedKitchen(a); ok {
		return null.StringFrom(kitchen), pq.StringArray{}
	}
	candidates := domain.KitchenUserIDs(a)
	if candidates == nil {
		candidates = []string{}
	}
	return null.String{}, pq.StringArray(candidates)
}

func (r *pgRequestRepository) LastRequestID(ctx context.Context) (string, error) {
	var requestID string
	err := r.q.QueryRowContext(ctx, `SELECT request_id FROM refill_requests ORDER BY id DESC LIMIT 1`).Scan(&requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("RequestRepository.LastRequestID: %w", err)
	}
	return requestID, nil
}

func (r *pgRequestRepository) Create(ctx context.Context, req *domain.Request) error {
	assigned, candidates := kitchenColumnsFor(req.Kitchen)
	query := `INSERT INTO refill_requests (request_id, machine_id, request_status, kitchen_status, agent_status,
	              kitchen_user_id, kitchen_candidates, agent_user_id, priority, quantity, request_date_time,
	              source_address, source_latitude, source_longitude, source_contact_name, source_contact_number,
	              destination_address, destination_latitude, destination_longitude, destination_contact_name, destination_contact_number,
	              reason, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22,
	              CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	          RETURNING id, created_at, updated_at`
	err := r.q.QueryRowContext(ctx, query,
		req.RequestID, req.MachineID, req.RequestStatus, req.KitchenStatus, req.AgentStatus,
		assigned, candidates, req.AgentUserID, req.Priority, req.Quantity, req.RequestDateTime,
		req.Source.Address, req.Source.Latitude, req.Source.Longitude, req.Source.ContactName, req.Source.ContactNumber,
		req.Destination.Address, req.Destination.Latitude, req.Destination.Longitude, req.Destination.ContactName, req.Destination.ContactNumber,
		req.Reason,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: request %s", repository.ErrDuplicateEntry, req.RequestID)
		}
		return fmt.Errorf("RequestRepository.Create: %w", err)
	}
	req.CreatedAt = req.CreatedAt.In(time.UTC)
	req.UpdatedAt = req.UpdatedAt.In(time.UTC)
	return nil
}

func (r *pgRequestRepository) FindByRequestID(ctx context.Context, requestID string) (*domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM refill_requests WHERE request_id = $1`
	if r.lock {
		query += ` FOR UPDATE`
	}
	req, err := scanRequest(r.q.QueryRowContext(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("RequestRepository.FindByRequestID: %w", err)
	}
	return req, nil
}

func (r *pgRequestRepository) FindByMachineID(ctx context.Context, machineID string) ([]domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM refill_requests WHERE machine_id = $1 ORDER BY id`
	rows, err := r.q.QueryContext(ctx, query, machineID)
	if err != nil {
		return nil, fmt.Errorf("RequestRepository.FindByMachineID: %w", err)
	}
	requests, err := scanRequests(rows)
	if err != nil {
		return nil, fmt.Errorf("RequestRepository.FindByMachineID (scan): %w", err)
	}
	return requests, nil
}

func (r *pgRequestRepository) FindOfferedTo(ctx context.Context, kitchenUserID string) ([]domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM refill_requests r
	          WHERE r.request_status = $1
	            AND EXISTS (SELECT 1 FROM request_status_updates u
	                        WHERE u.request_id = r.request_id AND u.user_id = $2 AND u.status = $1)
	          ORDER BY r.id`
	rows, err := r.q.QueryContext(ctx, query, domain.StatusPending, kitchenUserID)
	if err != nil {
		return nil, fmt.Errorf("RequestRepository.FindOfferedTo: %w", err)
	}
	requests, err := scanRequests(rows)
	if err != nil {
		return nil, fmt.Errorf("RequestRepository.FindOfferedTo (scan): %w", err)
	}
	return requests, nil
}

func (r *pgRequestRepository) Find(ctx context.Context, filter domain.RequestFilterDTO) ([]domain.Request, error) {
	var conditions []string
	var args []any
	argID := 1
	if filter.MachineID != nil {
		conditions = append(conditions, fmt.Sprintf("machine_id = $%d", argID))
		args = append(args, *filter.MachineID)
		argID++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("request_status = $%d", argID))
		args = append(args, *filter.Status)
		argID++
	}
	query := `SELECT ` + requestColumns + ` FROM refill_requests`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("RequestRepository.Find: %w", err)
	}
	requests, err := scanRequests(rows)
	if err != nil {
		return nil, fmt.Errorf("RequestRepository.Find (scan): %w", err)
	}
	return requests, nil
}

func (r *pgRequestRepository) Update(ctx context.Context, req *domain.Request) error {
	assigned, candidates := kitchenColumnsFor(req.Kitchen)
	query := `UPDATE refill_requests SET
	              request_status = $1, kitchen_status = $2, agent_status = $3,
	              kitchen_user_id = $4, kitchen_candidates = $5, agent_user_id = $6,
	              priority = $7, quantity = $8,
	              source_address = $9, source_latitude = $10, source_longitude = $11,
	              source_contact_name = $12, source_contact_number = $13,
	              reason = $14, updated_at = CURRENT_TIMESTAMP
	          WHERE request_id = $15
	          RETURNING id, created_at, updated_at`
	err := r.q.QueryRowContext(ctx, query,
		req.RequestStatus, req.KitchenStatus, req.AgentStatus,
		assigned, candidates, req.AgentUserID,
		req.Priority, req.Quantity,
		req.Source.Address, req.Source.Latitude, req.Source.Longitude,
		req.Source.ContactName, req.Source.ContactNumber,
		req.Reason, req.RequestID,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("RequestRepository.Update: %w", err)
	}
	req.CreatedAt = req.CreatedAt.In(time.UTC)
	req.UpdatedAt = req.UpdatedAt.In(time.UTC)
	return nil
}
