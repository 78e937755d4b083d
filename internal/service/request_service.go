package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"tea_refill/internal/domain"
	"tea_refill/internal/geo"
	"tea_refill/internal/idgen"
	"tea_refill/internal/repository"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"gopkg.in/guregu/null.v4"
)

// CanisterThreshold is the highest level (percent) that still triggers a refill.
const CanisterThreshold = 20

// ReassignRadiiKm are tried in order until one yields an unoffered online kitchen.
var ReassignRadiiKm = []float64{2, 3, 4, 5}

const maxCreateAttempts = 3

type RequestService struct {
	store    repository.Store
	ids      idgen.Sequence
	validate *validator.Validate
	now      func() time.Time
}

// NewRequestService builds the lifecycle core. A nil ids sequence falls back to
// reading the last stored request id inside each creating transaction.
func NewRequestService(store repository.Store, ids idgen.Sequence) *RequestService {
	return &RequestService{
		store:    store,
		ids:      ids,
		validate: newValidator(),
		now:      time.Now,
	}
}

func (s *RequestService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *RequestService) nextRequestID(ctx context.Context, tx repository.Store) (string, error) {
	if s.ids != nil {
		return s.ids.Next(ctx)
	}
	return idgen.LastIDSequence{Format: idgen.RequestIDs, Last: tx.Requests().LastRequestID}.Next(ctx)
}

func newNotification(recipient string, role domain.Role, requestID string, status domain.RequestStatus, message string) domain.Notification {
	return domain.Notification{
		ID:              uuid.NewString(),
		RecipientUserID: recipient,
		Role:            role,
		RequestID:       requestID,
		Status:          status,
		Message:         message,
	}
}

// CheckCanisterLevel raises a refill request when a machine's canister runs low.
func (s *RequestService) CheckCanisterLevel(ctx context.Context, in domain.CanisterLevelInput) (*domain.CanisterCheckResult, error) {
	if err := validateInput(s.validate, in); err != nil {
		return nil, err
	}
	level := *in.CanisterLevel
	if level > CanisterThreshold {
		return &domain.CanisterCheckResult{
			Success:        true,
			Message:        fmt.Sprintf("Canister level %d%% is above threshold, no refill needed", level),
			KitchenUserIDs: []string{},
		}, nil
	}

	machine, err := s.store.Machines().FindByID(ctx, in.MachineID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMachineNotFound, in.MachineID)
		}
		return nil, fmt.Errorf("RequestService.CheckCanisterLevel: %w", err)
	}

	now := s.now()
	window := EvaluateRefillWindow(*machine, now)
	if window.Blocked {
		log.Printf("RequestService: machine %s closes in %d min, refill blocked", machine.ID, window.MinutesToClose)
		return &domain.CanisterCheckResult{
			Message:        "Refill requests are not allowed within 1 hour of the machine end time",
			KitchenUserIDs: []string{},
		}, nil
	}

	if len(machine.KitchenIDs) == 0 {
		return &domain.CanisterCheckResult{
			Message:        fmt.Sprintf("No kitchen mapped to machine %s", machine.ID),
			KitchenUserIDs: []string{},
		}, nil
	}

	destination, err := geo.ParseCoordinate(machine.GisLatitude, machine.GisLongitude)
	if err != nil {
		return nil, fmt.Errorf("machine %s: %w", machine.ID, err)
	}

	var result *domain.CanisterCheckResult
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		err = s.store.WithTx(ctx, func(tx repository.Store) error {
			var txErr error
			result, txErr = s.createRequest(ctx, tx, machine, destination, window, now)
			return txErr
		})
		if !errors.Is(err, repository.ErrDuplicateEntry) {
			break
		}
		log.Printf("RequestService: request id collision for machine %s (attempt %d/%d): %v", machine.ID, attempt, maxCreateAttempts, err)
	}
	if err != nil {
		return nil, fmt.Errorf("RequestService.CheckCanisterLevel: %w", err)
	}
	return result, nil
}

func (s *RequestService) createRequest(ctx context.Context, tx repository.Store, machine *domain.Machine, destination orb.Point, window RefillWindow, now time.Time) (*domain.CanisterCheckResult, error) {
	history, err := tx.Requests().FindByMachineID(ctx, machine.ID)
	if err != nil {
		return nil, err
	}
	priority := 2
	if IsFirstRequestToday(history, now) {
		priority = 1
	}

	mapped, err := tx.Kitchens().FindByUserIDs(ctx, machine.KitchenIDs)
	if err != nil {
		return nil, err
	}
	online := make([]domain.Kitchen, 0, len(mapped))
	for _, k := range mapped {
		if k.Status == domain.Online {
			online = append(online, k)
		}
	}

	requestID, err := s.nextRequestID(ctx, tx)
	if err != nil {
		return nil, err
	}

	candidates := make([]string, 0, len(online))
	for _, k := range online {
		candidates = append(candidates, k.UserID)
	}

	req := &domain.Request{
		RequestID:       requestID,
		MachineID:       machine.ID,
		RequestStatus:   domain.StatusPending,
		KitchenStatus:   domain.StatusPending,
		Kitchen:         domain.Unassigned{Candidates: candidates},
		Priority:        priority,
		Quantity:        window.Quantity,
		RequestDateTime: FormatRequestDateTime(now),
		Destination: domain.Endpoint{
			Address:   machine.Address.String(),
			Latitude:  destination.Lat(),
			Longitude: destination.Lon(),
		},
	}
	if len(online) == 0 {
		req.RequestStatus = domain.StatusNoKitchensFound
		req.KitchenStatus = domain.StatusNoKitchensFound
	}
	if err := tx.Requests().Create(ctx, req); err != nil {
		return nil, err
	}

	result := &domain.CanisterCheckResult{
		RequestID:      requestID,
		KitchenUserIDs: candidates,
		Priority:       priority,
		Quantity:       window.Quantity,
	}

	if len(online) == 0 {
		log.Printf("RequestService: no online kitchen for machine %s, %s recorded as '%s'", machine.ID, requestID, req.RequestStatus)
		result.Message = fmt.Sprintf("No online kitchens found for machine %s", machine.ID)
		result.Notifications = []domain.Notification{
			newNotification(machine.ID, domain.RoleMachine, requestID, req.RequestStatus, result.Message),
		}
		return result, nil
	}

	dateAndTime := FormatRequestDateTime(now)
	for _, k := range online {
		update := &domain.StatusUpdate{
			RequestID:     requestID,
			UserID:        k.UserID,
			Status:        domain.StatusPending,
			Latitude:      k.Latitude,
			Longitude:     k.Longitude,
			DateAndTime:   dateAndTime,
			IsProceedNext: false,
		}
		if err := tx.StatusUpdates().Create(ctx, update); err != nil {
			return nil, err
		}
		result.Notifications = append(result.Notifications, newNotification(k.UserID, domain.RoleKitchen, requestID, domain.StatusPending,
			fmt.Sprintf("New refill request %s for machine %s, quantity %d", requestID, machine.ID, window.Quantity)))
	}
	result.Notifications = append(result.Notifications,
		newNotification(machine.ID, domain.RoleMachine, requestID, domain.StatusPending, "Refill requested"))

	result.Success = true
	result.Message = fmt.Sprintf("Request %s created and sent to %d kitchen(s)", requestID, len(online))
	log.Printf("RequestService: %s created for machine %s, priority %d, quantity %d, kitchens %v",
		requestID, machine.ID, priority, window.Quantity, candidates)
	return result, nil
}

// DeclineAndReassign records a kitchen's decline and offers the request to the nearest
// online kitchens that were never offered it, widening the radius step by step.
func (s *RequestService) DeclineAndReassign(ctx context.Context, in domain.DeclineInput) (*domain.ReassignResult, error) {
	if err := validateInput(s.validate, in); err != nil {
		return nil, err
	}
	if domain.RequestStatus(in.Status) != domain.StatusDeclined {
		return nil, fmt.Errorf("%w: status must be '%s', got '%s'", ErrInvalidInput, domain.StatusDeclined, in.Status)
	}

	var result *domain.ReassignResult
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var txErr error
		result, txErr = s.declineAndReassign(ctx, tx, in)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *RequestService) declineAndReassign(ctx context.Context, tx repository.Store, in domain.DeclineInput) (*domain.ReassignResult, error) {
	offer, err := tx.StatusUpdates().FindByRequestAndUser(ctx, in.RequestID, in.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s was never offered %s", ErrStatusUpdateNotFound, in.UserID, in.RequestID)
		}
		return nil, fmt.Errorf("RequestService.DeclineAndReassign: %w", err)
	}
	if offer.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: %s already responded to %s with '%s'", ErrInvalidTransition, in.UserID, in.RequestID, offer.Status)
	}

	reason := null.NewString(strings.TrimSpace(in.Reason), strings.TrimSpace(in.Reason) != "")
	if err := tx.StatusUpdates().UpdateStatus(ctx, offer.ID, domain.StatusDeclined, reason); err != nil {
		return nil, fmt.Errorf("RequestService.DeclineAndReassign: %w", err)
	}

	req, err := tx.Requests().FindByRequestID(ctx, in.RequestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, in.RequestID)
		}
		return nil, fmt.Errorf("RequestService.DeclineAndReassign: %w", err)
	}
	if req.RequestStatus != domain.StatusPending {
		return &domain.ReassignResult{
			Message:     fmt.Sprintf("Decline recorded, request %s is already %s", req.RequestID, req.RequestStatus),
			NewKitchens: []string{},
		}, nil
	}

	destination := orb.Point{req.Destination.Longitude, req.Destination.Latitude}
	if err := geo.ValidatePoint(destination); err != nil {
		return nil, fmt.Errorf("request %s destination: %w", req.RequestID, err)
	}

	history, err := tx.StatusUpdates().FindByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("RequestService.DeclineAndReassign: %w", err)
	}
	offered := make(map[string]bool, len(history))
	for _, u := range history {
		offered[u.UserID] = true
	}

	online, err := tx.Kitchens().FindOnline(ctx)
	if err != nil {
		return nil, fmt.Errorf("RequestService.DeclineAndReassign: %w", err)
	}
	fresh := make([]domain.Kitchen, 0, len(online))
	for _, k := range online {
		if !offered[k.UserID] {
			fresh = append(fresh, k)
		}
	}

	candidates, radius := nearestKitchens(destination, fresh, ReassignRadiiKm)
	if len(candidates) == 0 {
		req.RequestStatus = domain.StatusNoAvailableKitchens
		req.KitchenStatus = domain.StatusNoAvailableKitchens
		if err := tx.Requests().Update(ctx, req); err != nil {
			return nil, fmt.Errorf("RequestService.DeclineAndReassign: %w", err)
		}
		message := fmt.Sprintf("No available kitchens within %.0f km", ReassignRadiiKm[len(ReassignRadiiKm)-1])
		log.Printf("RequestService: %s declined by %s, %s", req.RequestID, in.UserID, message)
		return &domain.ReassignResult{
			Message:     message,
			NewKitchens: []string{},
			Notifications: []domain.Notification{
				newNotification(req.MachineID, domain.RoleMachine, req.RequestID, req.RequestStatus, message),
			},
		}, nil
	}

	dateAndTime := FormatRequestDateTime(s.now())
	result := &domain.ReassignResult{Success: true}
	for _, k := range candidates {
		update := &domain.StatusUpdate{
			RequestID:     req.RequestID,
			UserID:        k.UserID,
			Status:        domain.StatusPending,
			Latitude:      k.Latitude,
			Longitude:     k.Longitude,
			DateAndTime:   dateAndTime,
			IsProceedNext: false,
		}
		if err := tx.StatusUpdates().Create(ctx, update); err != nil {
			return nil, fmt.Errorf("RequestService.DeclineAndReassign: %w", err)
		}
		result.NewKitchens = append(result.NewKitchens, k.UserID)
		result.Notifications = append(result.Notifications, newNotification(k.UserID, domain.RoleKitchen, req.RequestID, domain.StatusPending,
			fmt.Sprintf("Refill request %s for machine %s needs a kitchen", req.RequestID, req.MachineID)))
	}
	result.Message = fmt.Sprintf("Request %s offered to %d kitchen(s) within %.0f km", req.RequestID, len(candidates), radius)
	log.Printf("RequestService: %s declined by %s, reassigned to %v", req.RequestID, in.UserID, result.NewKitchens)
	return result, nil
}

// nearestKitchens returns the kitchens inside the first radius that holds any, closest first.
func nearestKitchens(center orb.Point, kitchens []domain.Kitchen, radii []float64) ([]domain.Kitchen, float64) {
	for _, radius := range radii {
		var found []domain.Kitchen
		for _, k := range kitchens {
			if geo.WithinKm(center, k.Location(), radius) {
				found = append(found, k)
			}
		}
		if len(found) > 0 {
			sort.SliceStable(found, func(i, j int) bool {
				return geo.DistanceKm(center, found[i].Location()) < geo.DistanceKm(center, found[j].Location())
			})
			return found, radius
		}
	}
	return nil, 0
}

func (s *RequestService) GetRequest(ctx context.Context, requestID string) (*domain.Request, error) {
	req, err := s.store.Requests().FindByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
		}
		return nil, fmt.Errorf("RequestService.GetRequest: %w", err)
	}
	return req, nil
}

func (s *RequestService) ListStatusUpdates(ctx context.Context, requestID string) ([]domain.StatusUpdate, error) {
	if _, err := s.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	updates, err := s.store.StatusUpdates().FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("RequestService.ListStatusUpdates: %w", err)
	}
	return updates, nil
}

func (s *RequestService) ListMachineRequests(ctx context.Context, machineID string) ([]domain.Request, error) {
	if _, err := s.store.Machines().FindByID(ctx, machineID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMachineNotFound, machineID)
		}
		return nil, fmt.Errorf("RequestService.ListMachineRequests: %w", err)
	}
	requests, err := s.store.Requests().FindByMachineID(ctx, machineID)
	if err != nil {
		return nil, fmt.Errorf("RequestService.ListMachineRequests: %w", err)
	}
	return requests, nil
}

// ListPendingForKitchen lists the still-pending requests currently offered to a kitchen.
func (s *RequestService) ListPendingForKitchen(ctx context.Context, kitchenUserID string) ([]domain.Request, error) {
	requests, err := s.store.Requests().FindOfferedTo(ctx, kitchenUserID)
	if err != nil {
		return nil, fmt.Errorf("RequestService.ListPendingForKitchen: %w", err)
	}
	var pending []domain.Request
	for _, r := range requests {
		latest, err := s.store.StatusUpdates().FindByRequestAndUser(ctx, r.RequestID, kitchenUserID)
		if err != nil {
			return nil, fmt.Errorf("RequestService.ListPendingForKitchen: %w", err)
		}
		if latest.Status == domain.StatusPending {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

func (s *RequestService) FindRequests(ctx context.Context, filter domain.RequestFilterDTO) ([]domain.Request, error) {
	requests, err := s.store.Requests().Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("RequestService.FindRequests: %w", err)
	}
	return requests, nil
}
