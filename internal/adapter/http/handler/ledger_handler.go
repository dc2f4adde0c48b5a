package handler

import (
	"context"

	"tiered-ledger/internal/adapter/http/dto"
	"tiered-ledger/internal/adapter/http/middleware"
	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"
	"tiered-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerHandler handles deposit, withdrawal, bonus and commission routes.
// Each route is bound to one transaction type.
type LedgerHandler struct {
	workflowSvc ports.WorkflowService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(workflowSvc ports.WorkflowService) *LedgerHandler {
	return &LedgerHandler{workflowSvc: workflowSvc}
}

// List handles GET /api/v1/{role}/deposits/ and /withdrawals/.
func (h *LedgerHandler) List(txType domain.TransactionType) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorID(c)
		if !ok {
			return
		}

		filter, err := parseFilter(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		txns, total, err := h.workflowSvc.ListRequests(c.Request.Context(), actor, txType, filter)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.OK(c, dto.TransactionListResponse{
			Items:      txns,
			Total:      total,
			Page:       filter.Page,
			PageSize:   filter.PageSize,
			TotalPages: totalPages(total, filter.PageSize),
		})
	}
}

// Create handles POST /api/v1/{role}/deposits/create/ and /withdrawals/create/.
func (h *LedgerHandler) Create(txType domain.TransactionType) gin.HandlerFunc {
	create := h.workflowSvc.CreateDeposit
	if txType == domain.TransactionTypeWithdrawal {
		create = h.workflowSvc.CreateWithdrawal
	}

	return func(c *gin.Context) {
		actor, ok := actorID(c)
		if !ok {
			return
		}

		var req dto.LedgerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
		dto.SanitizeStruct(&req)

		txn, err := create(c.Request.Context(), ports.RequestInput{
			InitiatorID:   actor,
			AccountID:     uuid.MustParse(req.AccountID),
			Amount:        req.Amount,
			PaymentModeID: optionalUUID(req.PaymentModeID),
			Note:          req.Note,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		middleware.SetResourceID(c, txn.ID)
		response.Created(c, txn)
	}
}

// Approve handles POST /api/v1/{role}/{deposits|withdrawals}/{id}/approve/.
func (h *LedgerHandler) Approve(txType domain.TransactionType) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorID(c)
		if !ok {
			return
		}
		id, ok := pathUUID(c, "id")
		if !ok {
			return
		}

		var req dto.ApproveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}

		txn, err := h.workflowSvc.Approve(c.Request.Context(), ports.DecisionInput{
			ApproverID:    actor,
			TransactionID: id,
			Type:          txType,
			Credential:    ports.Credential{Pin: req.Pin, Password: req.Password},
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, txn)
	}
}

// Reject handles POST /api/v1/{role}/{deposits|withdrawals}/{id}/reject/.
func (h *LedgerHandler) Reject(txType domain.TransactionType) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorID(c)
		if !ok {
			return
		}
		id, ok := pathUUID(c, "id")
		if !ok {
			return
		}

		var req dto.RejectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
		dto.SanitizeStruct(&req)

		txn, err := h.workflowSvc.Reject(c.Request.Context(), actor, id, txType, req.Reason)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, txn)
	}
}

// Direct handles POST /api/v1/{role}/{deposits|withdrawals|bonuses|commissions}/direct/.
func (h *LedgerHandler) Direct(txType domain.TransactionType) gin.HandlerFunc {
	var apply func(context.Context, ports.DirectInput) (*domain.Transaction, error)
	switch txType {
	case domain.TransactionTypeWithdrawal:
		apply = h.workflowSvc.DirectWithdraw
	case domain.TransactionTypeBonus:
		apply = h.workflowSvc.DirectBonus
	case domain.TransactionTypeCommission:
		apply = h.workflowSvc.DirectCommission
	default:
		apply = h.workflowSvc.DirectDeposit
	}

	return func(c *gin.Context) {
		actor, ok := actorID(c)
		if !ok {
			return
		}

		var req dto.DirectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}

		note := req.Note
		if note != nil {
			sanitized := dto.SanitizeString(*note)
			note = &sanitized
		}

		txn, err := apply(c.Request.Context(), ports.DirectInput{
			InitiatorID:   actor,
			AccountID:     uuid.MustParse(req.AccountID),
			Amount:        req.Amount,
			Pin:           req.Pin,
			PaymentModeID: optionalUUID(req.PaymentModeID),
			Note:          note,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		middleware.SetResourceID(c, txn.ID)
		response.Created(c, txn)
	}
}
