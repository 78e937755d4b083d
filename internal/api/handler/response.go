package handler

import (
	"errors"
	"log"
	"net/http"
	"tea_refill/internal/service"

	"github.com/gin-gonic/gin"
)

// Codes carried in the body next to the HTTP status. Business rejections travel as
// HTTP 200 with CodeRejected so mobile clients can tell them apart from transport errors.
const (
	CodeOK       = 200
	CodeRejected = 300
	CodeBadInput = 400
	CodeDenied   = 403
	CodeInternal = 500
)

type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{Code: CodeOK, Message: message, Data: data})
}

// respondResult maps a service result carrying a success flag.
func respondResult(c *gin.Context, success bool, message string, data any) {
	if !success {
		c.JSON(http.StatusOK, Response{Code: CodeRejected, Message: message, Data: data})
		return
	}
	respondOK(c, message, data)
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Response{Code: CodeBadInput, Message: "invalid request body: " + err.Error()})
}

func isClientError(err error) bool {
	for _, target := range []error{
		service.ErrInvalidInput,
		service.ErrMachineNotFound,
		service.ErrKitchenNotFound,
		service.ErrRequestNotFound,
		service.ErrStatusUpdateNotFound,
		service.ErrInvalidCoordinates,
		service.ErrInvalidTransition,
		service.ErrReasonRequired,
		service.ErrNotParticipant,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func respondError(c *gin.Context, err error) {
	if isClientError(err) {
		c.JSON(http.StatusBadRequest, Response{Code: CodeBadInput, Message: err.Error()})
		return
	}
	log.Printf("handler: %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, Response{Code: CodeInternal, Message: err.Error()})
}
