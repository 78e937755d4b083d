package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"tea_refill/internal/domain"
	"tea_refill/internal/repository"
)

type pgAgentRepository struct {
	q querier
}

func (r *pgAgentRepository) FindByUserID(ctx context.Context, userID string) (*domain.Agent, error) {
	a := &domain.Agent{}
	query := `SELECT user_id, name, mobile, status FROM agents WHERE user_id = $1`
	err := r.q.QueryRowContext(ctx, query, userID).Scan(&a.UserID, &a.Name, &a.Mobile, &a.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("AgentRepository.FindByUserID: %w", err)
	}
	return a, nil
}

func (r *pgAgentRepository) FindOnline(ctx context.Context) ([]domain.Agent, error) {
	query := `SELECT user_id, name, mobile, status FROM agents WHERE status = $1 ORDER BY user_id`
	rows, err := r.q.QueryContext(ctx, query, domain.Online)
	if err != nil {
		return nil, fmt.Errorf("AgentRepository.FindOnline: %w", err)
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		var a domain.Agent
		if err := rows.Scan(&a.UserID, &a.Name, &a.Mobile, &a.Status); err != nil {
			return nil, fmt.Errorf("AgentRepository.FindOnline (scan): %w", err)
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("AgentRepository.FindOnline (rows): %w", err)
	}
	return agents, nil
}
