package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"tea_refill/internal/config"
	"tea_refill/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

func NewDB(cfg *config.Config) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSslMode)

	db, err := sql.Open("pgx", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PgStore struct {
	db   *sql.DB
	q    querier
	inTx bool
}

func NewPgStore(db *sql.DB) *PgStore {
	return &PgStore{db: db, q: db}
}

func (s *PgStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("PgStore.WithTx (begin): %w", err)
	}
	if err := fn(&PgStore{db: s.db, q: tx, inTx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("PgStore.WithTx (commit): %w", err)
	}
	return nil
}

func (s *PgStore) Machines() repository.MachineRepository {
	return &pgMachineRepository{q: s.q}
}

func (s *PgStore) Kitchens() repository.KitchenRepository {
	return &pgKitchenRepository{q: s.q}
}

func (s *PgStore) Agents() repository.AgentRepository {
	return &pgAgentRepository{q: s.q}
}

func (s *PgStore) Requests() repository.RequestRepository {
	return &pgRequestRepository{q: s.q, lock: s.inTx}
}

func (s *PgStore) StatusUpdates() repository.StatusUpdateRepository {
	return &pgStatusUpdateRepository{q: s.q}
}

// isUniqueViolation recognises 23505 from pgx as well as lib/pq.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation"
	}
	return false
}
