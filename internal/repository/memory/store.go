// Package memory is an in-process Store used for STORE_DRIVER=memory and by the service tests.
// Transactions serialize on one mutex and roll back by restoring a snapshot.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"tea_refill/internal/domain"
	"tea_refill/internal/repository"
	"time"
)

type state struct {
	machines  map[string]domain.Machine
	kitchens  map[string]domain.Kitchen
	agents    map[string]domain.Agent
	users     map[string]domain.User
	requests  []domain.Request
	updates   []domain.StatusUpdate
	members   []domain.KitchenMember
	canisters []domain.Canister
	eventLogs []domain.MachineEventLog
	nextPK    int64
}

func newState() *state {
	return &state{
		machines: make(map[string]domain.Machine),
		kitchens: make(map[string]domain.Kitchen),
		agents:   make(map[string]domain.Agent),
		users:    make(map[string]domain.User),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.machines {
		c.machines[k] = v
	}
	for k, v := range st.kitchens {
		c.kitchens[k] = v
	}
	for k, v := range st.agents {
		c.agents[k] = v
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	c.requests = make([]domain.Request, len(st.requests))
	for i, r := range st.requests {
		c.requests[i] = cloneRequest(r)
	}
	c.updates = append([]domain.StatusUpdate(nil), st.updates...)
	c.members = append([]domain.KitchenMember(nil), st.members...)
	c.canisters = append([]domain.Canister(nil), st.canisters...)
	c.eventLogs = append([]domain.MachineEventLog(nil), st.eventLogs...)
	c.nextPK = st.nextPK
	return c
}

func cloneRequest(r domain.Request) domain.Request {
	if u, ok := r.Kitchen.(domain.Unassigned); ok {
		r.Kitchen = domain.Unassigned{Candidates: append([]string(nil), u.Candidates...)}
	}
	return r
}

type db struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error
	now    func() time.Time
}

type Store struct {
	db   *db
	inTx bool
}

func NewStore() *Store {
	return &Store{db: &db{st: newState(), faults: make(map[string]error), now: time.Now}}
}

// SetClock overrides the timestamp source for created/updated fields.
func (s *Store) SetClock(now func() time.Time) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.now = now
}

// FailOn makes every subsequent write named op (e.g. "status_updates.create") return err.
// A nil err clears the fault.
func (s *Store) FailOn(op string, err error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err == nil {
		delete(s.db.faults, op)
		return
	}
	s.db.faults[op] = err
}

func (s *Store) fault(op string) error {
	if err, ok := s.db.faults[op]; ok {
		return fmt.Errorf("memory %s: %w", op, err)
	}
	return nil
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.db.mu.Lock()
	return s.db.mu.Unlock
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	snapshot := s.db.st.clone()
	if err := fn(&Store{db: s.db, inTx: true}); err != nil {
		s.db.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Machines() repository.MachineRepository           { return machineRepo{s} }
func (s *Store) Kitchens() repository.KitchenRepository           { return kitchenRepo{s} }
func (s *Store) Agents() repository.AgentRepository               { return agentRepo{s} }
func (s *Store) Requests() repository.RequestRepository           { return requestRepo{s} }
func (s *Store) StatusUpdates() repository.StatusUpdateRepository { return statusUpdateRepo{s} }
func (s *Store) Users() repository.UserRepository                 { return userRepo{s} }
func (s *Store) EventLogs() repository.MachineEventsLogRepository { return eventLogRepo{s} }

func (s *Store) PutMachine(m domain.Machine) {
	defer s.lock()()
	s.db.st.machines[m.ID] = m
}

func (s *Store) PutKitchen(k domain.Kitchen) {
	defer s.lock()()
	s.db.st.kitchens[k.UserID] = k
}

func (s *Store) PutAgent(a domain.Agent) {
	defer s.lock()()
	s.db.st.agents[a.UserID] = a
}

func (s *Store) PutUser(u domain.User) {
	defer s.lock()()
	s.db.st.users[u.UserID] = u
}

// Seed is the JSON document accepted by LoadSeed.
type Seed struct {
	Machines []domain.Machine `json:"machines"`
	Kitchens []domain.Kitchen `json:"kitchens"`
	Agents   []domain.Agent   `json:"agents"`
	Users    []struct {
		domain.User
		PasswordHash string `json:"passwordHash"`
	} `json:"users"`
}

// LoadSeed fills the directory collections from a JSON document.
func (s *Store) LoadSeed(r io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("memory.LoadSeed: %w", err)
	}
	for _, m := range seed.Machines {
		s.PutMachine(m)
	}
	for _, k := range seed.Kitchens {
		s.PutKitchen(k)
	}
	for _, a := range seed.Agents {
		s.PutAgent(a)
	}
	for _, u := range seed.Users {
		user := u.User
		user.Password = u.PasswordHash
		s.PutUser(user)
	}
	return nil
}

type machineRepo struct{ s *Store }

func (r machineRepo) FindByID(ctx context.Context, id string) (*domain.Machine, error) {
	defer r.s.lock()()
	m, ok := r.s.db.st.machines[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m.KitchenIDs = append([]string(nil), m.KitchenIDs...)
	return &m, nil
}

type kitchenRepo struct{ s *Store }

func (r kitchenRepo) FindByUserID(ctx context.Context, userID string) (*domain.Kitchen, error) {
	defer r.s.lock()()
	k, ok := r.s.db.st.kitchens[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &k, nil
}

func (r kitchenRepo) FindByUserIDs(ctx context.Context, userIDs []string) ([]domain.Kitchen, error) {
	defer r.s.lock()()
	var out []domain.Kitchen
	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if k, ok := r.s.db.st.kitchens[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, k)
		}
	}
	return out, nil
}

func (r kitchenRepo) FindOnline(ctx context.Context) ([]domain.Kitchen, error) {
	defer r.s.lock()()
	var out []domain.Kitchen
	for _, k := range r.s.db.st.kitchens {
		if k.Status == domain.Online {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r kitchenRepo) LastMemberUID(ctx context.Context) (string, error) {
	defer r.s.lock()()
	if n := len(r.s.db.st.members); n > 0 {
		return r.s.db.st.members[n-1].UID, nil
	}
	return "", nil
}

func (r kitchenRepo) CreateMember(ctx context.Context, member *domain.KitchenMember) error {
	defer r.s.lock()()
	if err := r.s.fault("kitchens.create_member"); err != nil {
		return err
	}
	for _, m := range r.s.db.st.members {
		if m.UID == member.UID {
			return fmt.Errorf("%w: member %s", repository.ErrDuplicateEntry, member.UID)
		}
	}
	member.CreatedAt = r.s.db.now()
	r.s.db.st.members = append(r.s.db.st.members, *member)
	return nil
}

func (r kitchenRepo) LastCanisterScanID(ctx context.Context, kitchenUserID string) (string, error) {
	defer r.s.lock()()
	for i := len(r.s.db.st.canisters) - 1; i >= 0; i-- {
		if c := r.s.db.st.canisters[i]; c.KitchenUserID == kitchenUserID {
			return c.ScanID, nil
		}
	}
	return "", nil
}

func (r kitchenRepo) CreateCanister(ctx context.Context, canister *domain.Canister) error {
	defer r.s.lock()()
	if err := r.s.fault("kitchens.create_canister"); err != nil {
		return err
	}
	for _, c := range r.s.db.st.canisters {
		if c.ScanID == canister.ScanID {
			return fmt.Errorf("%w: canister %s", repository.ErrDuplicateEntry, canister.ScanID)
		}
	}
	canister.CreatedAt = r.s.db.now()
	r.s.db.st.canisters = append(r.s.db.st.canisters, *canister)
	return nil
}

type agentRepo struct{ s *Store }

func (r agentRepo) FindByUserID(ctx context.Context, userID string) (*domain.Agent, error) {
	defer r.s.lock()()
	a, ok := r.s.db.st.agents[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r agentRepo) FindOnline(ctx context.Context) ([]domain.Agent, error) {
	defer r.s.lock()()
	var out []domain.Agent
	for _, a := range r.s.db.st.agents {
		if a.Status == domain.Online {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

type userRepo struct{ s *Store }

func (r userRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	defer r.s.lock()()
	for _, u := range r.s.db.st.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) FindByUserID(ctx context.Context, userID string) (*domain.User, error) {
	defer r.s.lock()()
	u, ok := r.s.db.st.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) UpdatePushToken(ctx context.Context, userID string, token string) error {
	defer r.s.lock()()
	u, ok := r.s.db.st.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PushToken = token
	u.UpdatedAt = r.s.db.now()
	r.s.db.st.users[userID] = u
	return nil
}

type eventLogRepo struct{ s *Store }

func (r eventLogRepo) Create(ctx context.Context, event *domain.MachineEventLog) error {
	defer r.s.lock()()
	event.ID = int64(len(r.s.db.st.eventLogs) + 1)
	r.s.db.st.eventLogs = append(r.s.db.st.eventLogs, *event)
	return nil
}

// EventLogEntries returns a copy of the machine event log.
func (s *Store) EventLogEntries() []domain.MachineEventLog {
	defer s.lock()()
	return append([]domain.MachineEventLog(nil), s.db.st.eventLogs...)
}
