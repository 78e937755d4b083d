package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"tea_refill/internal/domain"
	"tea_refill/internal/repository"
	"time"

	"github.com/lib/pq"
)

type pgKitchenRepository struct {
	q querier
}

const kitchenColumns = `user_id, name, mobile, address, latitude, longitude, status`

func scanKitchens(rows *sql.Rows) ([]domain.Kitchen, error) {
	defer rows.Close()
	var kitchens []domain.Kitchen
	for rows.Next() {
		var k domain.Kitchen
		if err := rows.Scan(&k.UserID, &k.Name, &k.Mobile, &k.Address, &k.Latitude, &k.Longitude, &k.Status); err != nil {
			return nil, err
		}
		kitchens = append(kitchens, k)
	}
	return kitchens, rows.Err()
}

func (r *pgKitchenRepository) FindByUserID(ctx context.Context, userID string) (*domain.Kitchen, error) {
	query := `SELECT ` + kitchenColumns + ` FROM kitchens WHERE user_id = $1`
	k := &domain.Kitchen{}
	err := r.q.QueryRowContext(ctx, query, userID).Scan(&k.UserID, &k.Name, &k.Mobile, &k.Address, &k.Latitude, &k.Longitude, &k.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("KitchenRepository.FindByUserID: %w", err)
	}
	return k, nil
}

func (r *pgKitchenRepository) FindByUserIDs(ctx context.Context, userIDs []string) ([]domain.Kitchen, error) {
	query := `SELECT ` + kitchenColumns + ` FROM kitchens WHERE user_id = ANY($1) ORDER BY array_position($1, user_id)`
	rows, err := r.q.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("KitchenRepository.FindByUserIDs: %w", err)
	}
	kitchens, err := scanKitchens(rows)
	if err != nil {
		return nil, fmt.Errorf("KitchenRepository.FindByUserIDs (scan): %w", err)
	}
	return kitchens, nil
}

func (r *pgKitchenRepository) FindOnline(ctx context.Context) ([]domain.Kitchen, error) {
	query := `SELECT ` + kitchenColumns + ` FROM kitchens WHERE status = $1 ORDER BY user_id`
	rows, err := r.q.QueryContext(ctx, query, domain.Online)
	if err != nil {
		return nil, fmt.Errorf("KitchenRepository.FindOnline: %w", err)
	}
	kitchens, err := scanKitchens(rows)
	if err != nil {
		return nil, fmt.Errorf("KitchenRepository.FindOnline (scan): %w", err)
	}
	return kitchens, nil
}

func (r *pgKitchenRepository) LastMemberUID(ctx context.Context) (string, error) {
	var uid string
	err := r.q.QueryRowContext(ctx, `SELECT uid FROM kitchen_members ORDER BY id DESC LIMIT 1`).Scan(&uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("KitchenRepository.LastMemberUID: %w", err)
	}
	return uid, nil
}

func (r *pgKitchenRepository) CreateMember(ctx context.Context, member *domain.KitchenMember) error {
	query := `INSERT INTO kitchen_members (uid, kitchen_user_id, name, mobile, created_at)
	          VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP) RETURNING created_at`
	err := r.q.QueryRowContext(ctx, query, member.UID, member.KitchenUserID, member.Name, member.Mobile).Scan(&member.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: member %s", repository.ErrDuplicateEntry, member.UID)
		}
		return fmt.Errorf("KitchenRepository.CreateMember: %w", err)
	}
	member.CreatedAt = member.CreatedAt.In(time.UTC)
	return nil
}

func (r *pgKitchenRepository) LastCanisterScanID(ctx context.Context, kitchenUserID string) (string, error) {
	var scanID string
	query := `SELECT scan_id FROM canisters WHERE kitchen_user_id = $1 ORDER BY id DESC LIMIT 1`
	err := r.q.QueryRowContext(ctx, query, kitchenUserID).Scan(&scanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("KitchenRepository.LastCanisterScanID: %w", err)
	}
	return scanID, nil
}

func (r *pgKitchenRepository) CreateCanister(ctx context.Context, canister *domain.Canister) error {
	query := `INSERT INTO canisters (scan_id, kitchen_user_id, created_at)
	          VALUES ($1, $2, CURRENT_TIMESTAMP) RETURNING created_at`
	err := r.q.QueryRowContext(ctx, query, canister.ScanID, canister.KitchenUserID).Scan(&canister.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: canister %s", repository.ErrDuplicateEntry, canister.ScanID)
		}
		return fmt.Errorf("KitchenRepository.CreateCanister: %w", err)
	}
	canister.CreatedAt = canister.CreatedAt.In(time.UTC)
	return nil
}
