package memory

import (
	"context"
	"fmt"
	"tea_refill/internal/domain"
	"tea_refill/internal/repository"

	"github.com/google/uuid"
	"gopkg.in/guregu/null.v4"
)

type requestRepo struct{ s *Store }

func (r requestRepo) LastRequestID(ctx context.Context) (string, error) {
	defer r.s.lock()()
	if n := len(r.s.db.st.requests); n > 0 {
		return r.s.db.st.requests[n-1].RequestID, nil
	}
	return "", nil
}

func (r requestRepo) Create(ctx context.Context, req *domain.Request) error {
	defer r.s.lock()()
	if err := r.s.fault("requests.create"); err != nil {
		return err
	}
	for _, existing := range r.s.db.st.requests {
		if existing.RequestID == req.RequestID {
			return fmt.Errorf("%w: request %s", repository.ErrDuplicateEntry, req.RequestID)
		}
	}
	r.s.db.st.nextPK++
	req.ID = r.s.db.st.nextPK
	now := r.s.db.now()
	req.CreatedAt = now
	req.UpdatedAt = now
	r.s.db.st.requests = append(r.s.db.st.requests, cloneRequest(*req))
	return nil
}

func (r requestRepo) FindByRequestID(ctx context.Context, requestID string) (*domain.Request, error) {
	defer r.s.lock()()
	for _, req := range r.s.db.st.requests {
		if req.RequestID == requestID {
			c := cloneRequest(req)
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r requestRepo) FindByMachineID(ctx context.Context, machineID string) ([]domain.Request, error) {
	defer r.s.lock()()
	var out []domain.Request
	for _, req := range r.s.db.st.requests {
		if req.MachineID == machineID {
			out = append(out, cloneRequest(req))
		}
	}
	return out, nil
}

func (r requestRepo) FindOfferedTo(ctx context.Context, kitchenUserID string) ([]domain.Request, error) {
	defer r.s.lock()()
	offered := make(map[string]bool)
	for _, u := range r.s.db.st.updates {
		if u.UserID == kitchenUserID && u.Status == domain.StatusPending {
			offered[u.RequestID] = true
		}
	}
	var out []domain.Request
	for _, req := range r.s.db.st.requests {
		if offered[req.RequestID] && req.RequestStatus == domain.StatusPending {
			out = append(out, cloneRequest(req))
		}
	}
	return out, nil
}

func (r requestRepo) Find(ctx context.Context, filter domain.RequestFilterDTO) ([]domain.Request, error) {
	defer r.s.lock()()
	var out []domain.Request
	for _, req := range r.s.db.st.requests {
		if filter.MachineID != nil && req.MachineID != *filter.MachineID {
			continue
		}
		if filter.Status != nil && string(req.RequestStatus) != *filter.Status {
			continue
		}
		out = append(out, cloneRequest(req))
	}
	return out, nil
}

func (r requestRepo) Update(ctx context.Context, req *domain.Request) error {
	defer r.s.lock()()
	if err := r.s.fault("requests.update"); err != nil {
		return err
	}
	for i, existing := range r.s.db.st.requests {
		if existing.RequestID == req.RequestID {
			req.ID = existing.ID
			req.CreatedAt = existing.CreatedAt
			req.UpdatedAt = r.s.db.now()
			r.s.db.st.requests[i] = cloneRequest(*req)
			return nil
		}
	}
	return repository.ErrNotFound
}

type statusUpdateRepo struct{ s *Store }

func (r statusUpdateRepo) Create(ctx context.Context, update *domain.StatusUpdate) error {
	defer r.s.lock()()
	if err := r.s.fault("status_updates.create"); err != nil {
		return err
	}
	if update.ID == "" {
		update.ID = uuid.NewString()
	}
	update.CreatedAt = r.s.db.now()
	r.s.db.st.updates = append(r.s.db.st.updates, *update)
	return nil
}

func (r statusUpdateRepo) FindByRequestID(ctx context.Context, requestID string) ([]domain.StatusUpdate, error) {
	defer r.s.lock()()
	var out []domain.StatusUpdate
	for _, u := range r.s.db.st.updates {
		if u.RequestID == requestID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r statusUpdateRepo) FindByRequestAndUser(ctx context.Context, requestID, userID string) (*domain.StatusUpdate, error) {
	defer r.s.lock()()
	for i := len(r.s.db.st.updates) - 1; i >= 0; i-- {
		if u := r.s.db.st.updates[i]; u.RequestID == requestID && u.UserID == userID {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r statusUpdateRepo) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus, reason null.String) error {
	defer r.s.lock()()
	if err := r.s.fault("status_updates.update"); err != nil {
		return err
	}
	for i, u := range r.s.db.st.updates {
		if u.ID == id {
			u.Status = status
			if reason.Valid {
				u.Reason = reason
			}
			r.s.db.st.updates[i] = u
			return nil
		}
	}
	return repository.ErrNotFound
}
