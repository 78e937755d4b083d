package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"tea_refill/internal/domain"
	"tea_refill/internal/repository"

	"gopkg.in/guregu/null.v4"
)

// Mutation names, also used as the last path segment of the HTTP routes.
const (
	MutationKitchenResponse = "kitchen-response"
	MutationOrderReady      = "order-ready"
	MutationAgentResponse   = "agent-response"
	MutationPickedUp        = "picked-up"
	MutationOngoing         = "ongoing"
	MutationRefill          = "refill"
	MutationSubmit          = "submit"
	MutationComplete        = "complete"
	MutationCancel          = "cancel"
)

type transition struct {
	// actor is empty when any participant may apply the mutation.
	actor domain.Role
	// from is empty when any non-terminal status is accepted.
	from []domain.RequestStatus
	to   domain.RequestStatus
	// declineTo is the request status after a decline; empty keeps the request as is.
	declineTo    domain.RequestStatus
	declineAudit domain.RequestStatus
	releaseAgent bool
	alwaysReason bool
	// reassignOnDecline hands a decline to the reassignment search instead.
	reassignOnDecline bool
}

var transitions = map[string]transition{
	MutationKitchenResponse: {
		actor: domain.RoleKitchen, from: []domain.RequestStatus{domain.StatusPending},
		to: domain.StatusAccepted, declineAudit: domain.StatusDeclined, reassignOnDecline: true,
	},
	MutationOrderReady: {
		actor: domain.RoleKitchen, from: []domain.RequestStatus{domain.StatusAccepted},
		to: domain.StatusOrderReady, declineTo: domain.StatusCancelled, declineAudit: domain.StatusDeclined,
	},
	MutationAgentResponse: {
		actor: domain.RoleAgent, from: []domain.RequestStatus{domain.StatusOrderReady},
		to: domain.StatusAssigned, declineAudit: domain.StatusDeclined,
	},
	MutationPickedUp: {
		actor: domain.RoleAgent, from: []domain.RequestStatus{domain.StatusAssigned},
		to: domain.StatusPickedUp, declineTo: domain.StatusOrderReady, declineAudit: domain.StatusDeclined, releaseAgent: true,
	},
	MutationOngoing: {
		actor: domain.RoleAgent, from: []domain.RequestStatus{domain.StatusPickedUp},
		to: domain.StatusOngoing, declineTo: domain.StatusCancelled, declineAudit: domain.StatusDeclined,
	},
	MutationRefill: {
		actor: domain.RoleAgent, from: []domain.RequestStatus{domain.StatusOngoing},
		to: domain.StatusRefilled, declineTo: domain.StatusNotRefilled, declineAudit: domain.StatusNotRefilled,
	},
	MutationSubmit: {
		actor: domain.RoleAgent, from: []domain.RequestStatus{domain.StatusRefilled, domain.StatusNotRefilled},
		to: domain.StatusSubmitted, declineTo: domain.StatusNotSubmitted, declineAudit: domain.StatusNotSubmitted,
	},
	MutationComplete: {
		actor: domain.RoleKitchen, from: []domain.RequestStatus{domain.StatusSubmitted, domain.StatusNotSubmitted},
		to: domain.StatusCompleted, declineTo: domain.StatusCancelled, declineAudit: domain.StatusDeclined,
	},
	MutationCancel: {
		to: domain.StatusCancelled, declineTo: domain.StatusCancelled, declineAudit: domain.StatusCancelled, alwaysReason: true,
	},
}

// Mutations lists the transition names in lifecycle order.
func Mutations() []string {
	return []string{
		MutationKitchenResponse, MutationOrderReady, MutationAgentResponse, MutationPickedUp,
		MutationOngoing, MutationRefill, MutationSubmit, MutationComplete, MutationCancel,
	}
}

// Transition applies one lifecycle mutation. The request patch and its audit row are
// written in one transaction; nothing is written when validation or a precondition fails.
func (s *RequestService) Transition(ctx context.Context, mutation string, in domain.TransitionInput) (*domain.TransitionResult, error) {
	t, ok := transitions[mutation]
	if !ok {
		return nil, fmt.Errorf("%w: unknown mutation '%s'", ErrInvalidInput, mutation)
	}
	if err := validateInput(s.validate, in); err != nil {
		return nil, err
	}
	proceed := in.Proceed()
	reason := strings.TrimSpace(in.Reason)
	if (!proceed || t.alwaysReason) && reason == "" {
		return nil, fmt.Errorf("%w: %s on %s", ErrReasonRequired, mutation, in.RequestID)
	}

	if t.reassignOnDecline && !proceed {
		rr, err := s.DeclineAndReassign(ctx, domain.DeclineInput{
			UserID:    in.UserID,
			RequestID: in.RequestID,
			Status:    string(domain.StatusDeclined),
			Reason:    reason,
		})
		if err != nil {
			return nil, err
		}
		req, err := s.GetRequest(ctx, in.RequestID)
		if err != nil {
			return nil, err
		}
		return &domain.TransitionResult{Success: rr.Success, Message: rr.Message, Request: req, Notifications: rr.Notifications}, nil
	}

	var result *domain.TransitionResult
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var txErr error
		result, txErr = s.applyTransition(ctx, tx, mutation, t, in, proceed, reason)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	log.Printf("RequestService: %s %s by %s (proceed=%t) -> %s", mutation, in.RequestID, in.UserID, proceed, result.Request.RequestStatus)
	return result, nil
}

func (s *RequestService) applyTransition(ctx context.Context, tx repository.Store, mutation string, t transition, in domain.TransitionInput, proceed bool, reason string) (*domain.TransitionResult, error) {
	req, err := tx.Requests().FindByRequestID(ctx, in.RequestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, in.RequestID)
		}
		return nil, fmt.Errorf("RequestService.Transition: %w", err)
	}
	if req.RequestStatus.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is already '%s'", ErrInvalidTransition, req.RequestID, req.RequestStatus)
	}
	if len(t.from) > 0 && !slices.Contains(t.from, req.RequestStatus) {
		return nil, fmt.Errorf("%w: %s needs %v, %s is '%s'", ErrInvalidTransition, mutation, t.from, req.RequestID, req.RequestStatus)
	}

	actorRole, err := s.checkParticipant(ctx, tx, mutation, t, req, in.UserID)
	if err != nil {
		return nil, err
	}
	auditStatus := t.to
	patched := true
	if proceed && !t.alwaysReason {
		if err := s.advance(ctx, tx, mutation, t, req, in.UserID); err != nil {
			return nil, err
		}
	} else {
		auditStatus = t.declineAudit
		if t.declineTo == "" {
			patched = false
		} else {
			req.RequestStatus = t.declineTo
			setActorStatus(req, actorRole, auditStatus)
			if t.releaseAgent {
				req.AgentUserID = ""
				req.AgentStatus = domain.StatusDeclined
			}
			req.Reason = null.StringFrom(reason)
		}
	}

	if patched {
		if err := tx.Requests().Update(ctx, req); err != nil {
			return nil, fmt.Errorf("RequestService.Transition: %w", err)
		}
	}

	update := &domain.StatusUpdate{
		RequestID:     req.RequestID,
		UserID:        in.UserID,
		Status:        auditStatus,
		Latitude:      *in.Latitude,
		Longitude:     *in.Longitude,
		DateAndTime:   in.DateAndTime,
		IsProceedNext: proceed,
		Reason:        null.NewString(reason, reason != ""),
	}
	if err := tx.StatusUpdates().Create(ctx, update); err != nil {
		return nil, fmt.Errorf("RequestService.Transition: %w", err)
	}

	notifications, err := s.transitionNotifications(ctx, tx, mutation, req, in.UserID, auditStatus)
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Request %s is now %s", req.RequestID, req.RequestStatus)
	if !patched {
		message = fmt.Sprintf("Decline recorded for request %s", req.RequestID)
	}
	return &domain.TransitionResult{
		Success:       true,
		Message:       message,
		Request:       req,
		Notifications: notifications,
	}, nil
}

// checkParticipant verifies the caller may act on req and returns the role it acts in.
func (s *RequestService) checkParticipant(ctx context.Context, tx repository.Store, mutation string, t transition, req *domain.Request, userID string) (domain.Role, error) {
	assignedKitchen, hasKitchen := domain.AssignedKitchen(req.Kitchen)
	switch t.actor {
	case domain.RoleKitchen:
		if mutation == MutationKitchenResponse {
			open, err := hasOpenOffer(ctx, tx, req.RequestID, userID)
			if err != nil {
				return "", err
			}
			if !open {
				return "", fmt.Errorf("%w: %s has no open offer for %s", ErrNotParticipant, userID, req.RequestID)
			}
			return domain.RoleKitchen, nil
		}
		if !hasKitchen || assignedKitchen != userID {
			return "", fmt.Errorf("%w: %s is not the kitchen of %s", ErrNotParticipant, userID, req.RequestID)
		}
		return domain.RoleKitchen, nil

	case domain.RoleAgent:
		if mutation == MutationAgentResponse {
			if _, err := tx.Agents().FindByUserID(ctx, userID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return "", fmt.Errorf("%w: agent %s not found", ErrNotParticipant, userID)
				}
				return "", fmt.Errorf("RequestService.Transition: %w", err)
			}
			return domain.RoleAgent, nil
		}
		if req.AgentUserID == "" || req.AgentUserID != userID {
			return "", fmt.Errorf("%w: %s is not the agent of %s", ErrNotParticipant, userID, req.RequestID)
		}
		return domain.RoleAgent, nil
	}

	switch {
	case hasKitchen && assignedKitchen == userID:
		return domain.RoleKitchen, nil
	case req.AgentUserID != "" && req.AgentUserID == userID:
		return domain.RoleAgent, nil
	}
	if !hasKitchen {
		open, err := hasOpenOffer(ctx, tx, req.RequestID, userID)
		if err != nil {
			return "", err
		}
		if open {
			return domain.RoleKitchen, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotParticipant, userID)
}

// hasOpenOffer reports whether the latest audit row addressed to userID is still Pending.
// Offers made on reassignment exist only as audit rows, so this is the candidate check.
func hasOpenOffer(ctx context.Context, tx repository.Store, requestID, userID string) (bool, error) {
	offer, err := tx.StatusUpdates().FindByRequestAndUser(ctx, requestID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("RequestService.Transition: %w", err)
	}
	return offer.Status == domain.StatusPending, nil
}

// openOffers lists the kitchens whose latest audit row for the request is still Pending.
func openOffers(history []domain.StatusUpdate) []string {
	latest := make(map[string]domain.RequestStatus, len(history))
	var order []string
	for _, u := range history {
		if _, ok := latest[u.UserID]; !ok {
			order = append(order, u.UserID)
		}
		latest[u.UserID] = u.Status
	}
	var open []string
	for _, id := range order {
		if latest[id] == domain.StatusPending {
			open = append(open, id)
		}
	}
	return open
}

func (s *RequestService) advance(ctx context.Context, tx repository.Store, mutation string, t transition, req *domain.Request, userID string) error {
	req.RequestStatus = t.to
	switch mutation {
	case MutationKitchenResponse:
		kitchen, err := tx.Kitchens().FindByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrKitchenNotFound, userID)
			}
			return fmt.Errorf("RequestService.Transition: %w", err)
		}
		req.Kitchen = domain.Assigned{Kitchen: kitchen.UserID}
		req.Source = domain.Endpoint{
			Address:       kitchen.Address,
			Latitude:      kitchen.Latitude,
			Longitude:     kitchen.Longitude,
			ContactName:   kitchen.Name,
			ContactNumber: kitchen.Mobile,
		}
		req.KitchenStatus = t.to
	case MutationAgentResponse:
		req.AgentUserID = userID
		req.AgentStatus = t.to
	case MutationOrderReady, MutationComplete:
		req.KitchenStatus = t.to
	default:
		req.AgentStatus = t.to
	}
	return nil
}

func setActorStatus(req *domain.Request, role domain.Role, status domain.RequestStatus) {
	if role == domain.RoleAgent {
		req.AgentStatus = status
		return
	}
	req.KitchenStatus = status
}

// transitionNotifications resolves who hears about a committed transition.
func (s *RequestService) transitionNotifications(ctx context.Context, tx repository.Store, mutation string, req *domain.Request, actor string, audit domain.RequestStatus) ([]domain.Notification, error) {
	var out []domain.Notification
	add := func(recipient string, role domain.Role, message string) {
		if recipient == "" || recipient == actor {
			return
		}
		out = append(out, newNotification(recipient, role, req.RequestID, req.RequestStatus, message))
	}
	kitchen, _ := domain.AssignedKitchen(req.Kitchen)
	agentPool := func(message string) error {
		agents, err := tx.Agents().FindOnline(ctx)
		if err != nil {
			return fmt.Errorf("RequestService.Transition: %w", err)
		}
		for _, a := range agents {
			add(a.UserID, domain.RoleAgent, message)
		}
		return nil
	}

	switch mutation {
	case MutationKitchenResponse:
		history, err := tx.StatusUpdates().FindByRequestID(ctx, req.RequestID)
		if err != nil {
			return nil, fmt.Errorf("RequestService.Transition: %w", err)
		}
		seen := map[string]bool{}
		for _, u := range history {
			if u.Status == domain.StatusPending && !seen[u.UserID] {
				seen[u.UserID] = true
				add(u.UserID, domain.RoleKitchen, fmt.Sprintf("Request %s was accepted by another kitchen", req.RequestID))
			}
		}
	case MutationOrderReady:
		if req.RequestStatus == domain.StatusOrderReady {
			if err := agentPool(fmt.Sprintf("Tea for request %s is ready for pickup", req.RequestID)); err != nil {
				return nil, err
			}
		} else {
			add(req.MachineID, domain.RoleMachine, "Refill cancelled by kitchen")
		}
	case MutationAgentResponse:
		if audit != domain.StatusDeclined {
			add(kitchen, domain.RoleKitchen, fmt.Sprintf("Agent %s will pick up request %s", actor, req.RequestID))
		}
	case MutationPickedUp:
		add(kitchen, domain.RoleKitchen, fmt.Sprintf("Request %s is %s", req.RequestID, audit))
		if req.RequestStatus == domain.StatusOrderReady {
			if err := agentPool(fmt.Sprintf("Request %s needs a new agent", req.RequestID)); err != nil {
				return nil, err
			}
		}
	case MutationOngoing, MutationSubmit:
		add(kitchen, domain.RoleKitchen, fmt.Sprintf("Request %s is %s", req.RequestID, req.RequestStatus))
		if req.RequestStatus == domain.StatusCancelled {
			add(req.MachineID, domain.RoleMachine, "Refill cancelled")
		}
	case MutationRefill:
		add(kitchen, domain.RoleKitchen, fmt.Sprintf("Request %s is %s", req.RequestID, req.RequestStatus))
		add(req.MachineID, domain.RoleMachine, string(req.RequestStatus))
	case MutationComplete:
		add(req.AgentUserID, domain.RoleAgent, fmt.Sprintf("Request %s is %s", req.RequestID, req.RequestStatus))
		add(req.MachineID, domain.RoleMachine, string(req.RequestStatus))
	case MutationCancel:
		if kitchen == "" {
			history, err := tx.StatusUpdates().FindByRequestID(ctx, req.RequestID)
			if err != nil {
				return nil, fmt.Errorf("RequestService.Transition: %w", err)
			}
			for _, id := range openOffers(history) {
				add(id, domain.RoleKitchen, fmt.Sprintf("Request %s was cancelled", req.RequestID))
			}
		}
		add(kitchen, domain.RoleKitchen, fmt.Sprintf("Request %s was cancelled", req.RequestID))
		add(req.AgentUserID, domain.RoleAgent, fmt.Sprintf("Request %s was cancelled", req.RequestID))
		add(req.MachineID, domain.RoleMachine, "Refill cancelled")
	}
	return out, nil
}

func (s *RequestService) KitchenRespond(ctx context.Context, in domain.TransitionInput) (*domain.TransitionResult, error) {
	return s.Transition(ctx, MutationKitchenResponse, in)
}

func (s *RequestService) MarkOrderReady(ctx context.Context, in domain.TransitionInput) (*domain.TransitionResult, error) {
	return s.Transition(ctx, MutationOrderReady, in)
}

func (s *RequestService) AgentRespond(ctx context.Context, in domain.TransitionInput) (*domain.TransitionResult, error) {
	return s.Transition(ctx, MutationAgentResponse, in)
}

func (s *RequestService) MarkPickedUp(ctx context.Context, in domain.TransitionInput) (*domain.TransitionResult, error) {
	return s.Transition(ctx, MutationPickedUp, in)
}

func (s *RequestService) MarkOngoing(ctx context.Context, in domain.TransitionInput) (*domain.TransitionResult, error) {
	return s.Transition(ctx, MutationOngoing, in)
}

func (s *RequestService) MarkRefilled(ctx context.Context, in domain.TransitionInput) (*domain.TransitionResult, error) {
	return s.Transition(ctx, MutationRefill, in)
}

func (s *RequestService) Submit(ctx context.Context, in domain.TransitionInput) (*domain.TransitionResult, error) {
	return s.Transition(ctx, MutationSubmit, in)
}

func (s *RequestService) Complete(ctx context.Context, in domain.TransitionInput) (*domain.TransitionResult, error) {
	return s.Transition(ctx, MutationComplete, in)
}

func (s *RequestService) Cancel(ctx context.Context, in domain.TransitionInput) (*domain.TransitionResult, error) {
	return s.Transition(ctx, MutationCancel, in)
}
