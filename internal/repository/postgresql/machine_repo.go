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

type pgMachineRepository struct {
	q querier
}

func (r *pgMachineRepository) FindByID(ctx context.Context, id string) (*domain.Machine, error) {
	query := `SELECT id, building, floor, area, district, state, gis_latitude, gis_longitude, kitchen_ids,
	                 COALESCE(machine_type, ''), COALESCE(end_time, ''), tea_fill_start_quantity, tea_fill_end_quantity,
	                 status, updated_at
	          FROM machines WHERE id = $1`
	m := &domain.Machine{}
	var kitchenIDs pq.StringArray
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.Address.Building, &m.Address.Floor, &m.Address.Area, &m.Address.District, &m.Address.State,
		&m.GisLatitude, &m.GisLongitude, &kitchenIDs,
		&m.MachineType, &m.EndTime, &m.TeaFillStartQuantity, &m.TeaFillEndQuantity,
		&m.Status, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("MachineRepository.FindByID: %w", err)
	}
	m.KitchenIDs = []string(kitchenIDs)
	m.UpdatedAt = m.UpdatedAt.In(time.UTC)
	return m, nil
}
