package handler

import (
	"net/http"
	"tea_refill/internal/domain"
	"tea_refill/internal/service"

	"github.com/gin-gonic/gin"
)

type KitchenHandler struct {
	kitchenService *service.KitchenService
}

func NewKitchenHandler(ks *service.KitchenService) *KitchenHandler {
	return &KitchenHandler{kitchenService: ks}
}

// POST /api/v1/kitchens/:userId/members
func (h *KitchenHandler) AddMember(c *gin.Context) {
	var dto domain.AddKitchenMemberDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		respondBindError(c, err)
		return
	}
	member, err := h.kitchenService.AddMember(c.Request.Context(), c.Param("userId"), dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Code: CodeOK, Message: "member added", Data: member})
}

// POST /api/v1/kitchens/:userId/canisters
func (h *KitchenHandler) RegisterCanister(c *gin.Context) {
	canister, err := h.kitchenService.RegisterCanister(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Code: CodeOK, Message: "canister registered", Data: canister})
}
