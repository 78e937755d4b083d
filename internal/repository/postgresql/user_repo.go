package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"tea_refill/internal/domain"
	"tea_refill/internal/repository"
	"time"
)

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) repository.UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, user_id, username, password_hash, role, COALESCE(push_token, ''), created_at, updated_at`

func (r *pgUserRepository) scanOne(ctx context.Context, op, where string, arg any) (*domain.User, error) {
	user := &domain.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.UserID, &user.Username, &user.Password, &user.Role, &user.PushToken, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("UserRepository.%s: %w", op, err)
	}
	user.CreatedAt = user.CreatedAt.In(time.UTC)
	user.UpdatedAt = user.UpdatedAt.In(time.UTC)
	return user, nil
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.scanOne(ctx, "FindByUsername", "username = $1", username)
}

func (r *pgUserRepository) FindByUserID(ctx context.Context, userID string) (*domain.User, error) {
	return r.scanOne(ctx, "FindByUserID", "user_id = $1", userID)
}

func (r *pgUserRepository) UpdatePushToken(ctx context.Context, userID string, token string) error {
	query := `UPDATE users SET push_token = $2, updated_at = CURRENT_TIMESTAMP WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, query, userID, token)
	if err != nil {
		return fmt.Errorf("UserRepository.UpdatePushToken: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UserRepository.UpdatePushToken (rows): %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
