package repository

import (
	"context"
	"errors"
	"tea_refill/internal/domain"

	"gopkg.in/guregu/null.v4"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")

type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByUserID(ctx context.Context, userID string) (*domain.User, error)
	UpdatePushToken(ctx context.Context, userID string, token string) error
}

type MachineRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Machine, error)
}

type KitchenRepository interface {
	FindByUserID(ctx context.Context, userID string) (*domain.Kitchen, error)
	FindByUserIDs(ctx context.Context, userIDs []string) ([]domain.Kitchen, error)
	FindOnline(ctx context.Context) ([]domain.Kitchen, error)
	LastMemberUID(ctx context.Context) (string, error)
	CreateMember(ctx context.Context, member *domain.KitchenMember) error
	LastCanisterScanID(ctx context.Context, kitchenUserID string) (string, error)
	CreateCanister(ctx context.Context, canister *domain.Canister) error
}

type AgentRepository interface {
	FindByUserID(ctx context.Context, userID string) (*domain.Agent, error)
	FindOnline(ctx context.Context) ([]domain.Agent, error)
}

type RequestRepository interface {
	// LastRequestID returns the most recently inserted request id, "" when there is none.
	LastRequestID(ctx context.Context) (string, error)
	Create(ctx context.Context, req *domain.Request) error
	FindByRequestID(ctx context.Context, requestID string) (*domain.Request, error)
	FindByMachineID(ctx context.Context, machineID string) ([]domain.Request, error)
	// FindOfferedTo lists still-pending requests that have a pending audit row for the kitchen.
	FindOfferedTo(ctx context.Context, kitchenUserID string) ([]domain.Request, error)
	Find(ctx context.Context, filter domain.RequestFilterDTO) ([]domain.Request, error)
	Update(ctx context.Context, req *domain.Request) error
}

type StatusUpdateRepository interface {
	Create(ctx context.Context, update *domain.StatusUpdate) error
	FindByRequestID(ctx context.Context, requestID string) ([]domain.StatusUpdate, error)
	// FindByRequestAndUser returns the latest row addressed to userID for the request.
	FindByRequestAndUser(ctx context.Context, requestID, userID string) (*domain.StatusUpdate, error)
	UpdateStatus(ctx context.Context, id string, status domain.RequestStatus, reason null.String) error
}

type MachineEventsLogRepository interface {
	Create(ctx context.Context, event *domain.MachineEventLog) error
}

// Store groups the repositories that lifecycle operations touch together.
type Store interface {
	Machines() MachineRepository
	Kitchens() KitchenRepository
	Agents() AgentRepository
	Requests() RequestRepository
	StatusUpdates() StatusUpdateRepository
	// WithTx runs fn against a transactional view of the store. Reads of a request inside
	// fn lock it until commit; any error returned by fn rolls back every write.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
