package handler

import (
	"tiered-ledger/internal/adapter/http/dto"
	"tiered-ledger/internal/adapter/http/middleware"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"
	"tiered-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// SettlementHandler handles P/L settlement endpoints.
type SettlementHandler struct {
	settlementSvc ports.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlementSvc ports.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc}
}

// Settle handles POST /api/v1/super/settlement/{masterId}/.
func (h *SettlementHandler) Settle(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	masterID, ok := pathUUID(c, "masterId")
	if !ok {
		return
	}

	var req dto.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	record, err := h.settlementSvc.Settle(c.Request.Context(), actor, masterID, req.Pin)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetResourceID(c, record.ID)
	response.Created(c, record)
}

// List handles GET /api/v1/{role}/settlements/.
func (h *SettlementHandler) List(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	records, err := h.settlementSvc.ListSettlements(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}
