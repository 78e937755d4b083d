package handler

import (
	"context"
	"log"
	"net/http"
	"tea_refill/internal/api/middleware"
	"tea_refill/internal/domain"
	"tea_refill/internal/service"

	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	requestService *service.RequestService
	dispatcher     *service.NotificationDispatcher
}

func NewRequestHandler(rs *service.RequestService, dispatcher *service.NotificationDispatcher) *RequestHandler {
	return &RequestHandler{requestService: rs, dispatcher: dispatcher}
}

// dispatch delivers the outbox after the transaction has committed. Delivery outlives
// the HTTP request so a client disconnect does not drop notifications.
func (h *RequestHandler) dispatch(c *gin.Context, notifications []domain.Notification) {
	if h.dispatcher == nil || len(notifications) == 0 {
		return
	}
	report := h.dispatcher.Dispatch(context.WithoutCancel(c.Request.Context()), notifications)
	if report.Failed > 0 {
		log.Printf("RequestHandler: %d of %d notification(s) failed", report.Failed, report.Sent+report.Failed)
	}
}

// actingAsSelf rejects a body userId that differs from the token subject. Admins may act
// on behalf of any participant.
func actingAsSelf(c *gin.Context, userID string) bool {
	if c.GetString(middleware.UserRoleKey) == string(domain.RoleAdmin) || c.GetString(middleware.UserIDKey) == userID {
		return true
	}
	c.JSON(http.StatusForbidden, Response{Code: CodeDenied, Message: "userId does not match the authenticated user"})
	return false
}

// POST /api/v1/machines/canister-level
func (h *RequestHandler) CheckCanisterLevel(c *gin.Context) {
	var in domain.CanisterLevelInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBindError(c, err)
		return
	}
	result, err := h.requestService.CheckCanisterLevel(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.dispatch(c, result.Notifications)
	respondResult(c, result.Success, result.Message, result)
}

// POST /api/v1/requests/decline
func (h *RequestHandler) DeclineAndReassign(c *gin.Context) {
	var in domain.DeclineInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBindError(c, err)
		return
	}
	if !actingAsSelf(c, in.UserID) {
		return
	}
	result, err := h.requestService.DeclineAndReassign(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.dispatch(c, result.Notifications)
	respondResult(c, result.Success, result.Message, result)
}

// POST /api/v1/requests/transitions/:mutation
func (h *RequestHandler) Transition(c *gin.Context) {
	var in domain.TransitionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBindError(c, err)
		return
	}
	if !actingAsSelf(c, in.UserID) {
		return
	}
	result, err := h.requestService.Transition(c.Request.Context(), c.Param("mutation"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.dispatch(c, result.Notifications)
	respondResult(c, result.Success, result.Message, result.Request)
}

// GET /api/v1/requests
func (h *RequestHandler) FindRequests(c *gin.Context) {
	var filter domain.RequestFilterDTO
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondBindError(c, err)
		return
	}
	requests, err := h.requestService.FindRequests(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "ok", nonNil(requests))
}

// GET /api/v1/requests/:requestId
func (h *RequestHandler) GetRequest(c *gin.Context) {
	req, err := h.requestService.GetRequest(c.Request.Context(), c.Param("requestId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "ok", req)
}

// GET /api/v1/requests/:requestId/status-updates
func (h *RequestHandler) ListStatusUpdates(c *gin.Context) {
	updates, err := h.requestService.ListStatusUpdates(c.Request.Context(), c.Param("requestId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if updates == nil {
		updates = []domain.StatusUpdate{}
	}
	respondOK(c, "ok", updates)
}

// GET /api/v1/machines/:machineId/requests
func (h *RequestHandler) ListMachineRequests(c *gin.Context) {
	requests, err := h.requestService.ListMachineRequests(c.Request.Context(), c.Param("machineId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "ok", nonNil(requests))
}

// GET /api/v1/kitchens/:userId/pending
func (h *RequestHandler) ListPendingForKitchen(c *gin.Context) {
	requests, err := h.requestService.ListPendingForKitchen(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "ok", nonNil(requests))
}

func nonNil(requests []domain.Request) []domain.Request {
	if requests == nil {
		return []domain.Request{}
	}
	return requests
}
