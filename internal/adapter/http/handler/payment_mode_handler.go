package handler

import (
	"tiered-ledger/internal/adapter/http/dto"
	"tiered-ledger/internal/adapter/http/middleware"
	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"
	"tiered-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentModeHandler handles a master's payment modes.
type PaymentModeHandler struct {
	paymentModeSvc ports.PaymentModeService
}

// NewPaymentModeHandler creates a new PaymentModeHandler.
func NewPaymentModeHandler(paymentModeSvc ports.PaymentModeService) *PaymentModeHandler {
	return &PaymentModeHandler{paymentModeSvc: paymentModeSvc}
}

// List handles GET /api/v1/master/payment-modes/.
func (h *PaymentModeHandler) List(c *gin.Context) {
	owner, ok := actorID(c)
	if !ok {
		return
	}

	modes, err := h.paymentModeSvc.List(c.Request.Context(), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, modes)
}

// Create handles POST /api/v1/master/payment-modes/.
func (h *PaymentModeHandler) Create(c *gin.Context) {
	owner, ok := actorID(c)
	if !ok {
		return
	}

	var req dto.CreatePaymentModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	mode, err := h.paymentModeSvc.Create(c.Request.Context(), ports.CreatePaymentModeRequest{
		OwnerID:       owner,
		Type:          domain.PaymentModeType(req.Type),
		Label:         req.Label,
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetResourceID(c, mode.ID)
	response.Created(c, mode)
}

// SetActive handles POST /api/v1/master/payment-modes/{id}/active/.
func (h *PaymentModeHandler) SetActive(c *gin.Context) {
	owner, ok := actorID(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req dto.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	mode, err := h.paymentModeSvc.SetActive(c.Request.Context(), owner, id, *req.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, mode)
}
