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

// AccountHandler handles the account tree and balance views.
type AccountHandler struct {
	accountSvc ports.AccountService
	balanceSvc ports.BalanceService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService, balanceSvc ports.BalanceService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc, balanceSvc: balanceSvc}
}

// Create handles POST /api/v1/{role}/accounts/.
func (h *AccountHandler) Create(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req dto.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	parentID := actor
	if req.ParentID != nil {
		parentID = uuid.MustParse(*req.ParentID)
	}

	account, err := h.accountSvc.CreateAccount(c.Request.Context(), ports.CreateAccountRequest{
		ActorID:  actor,
		ParentID: &parentID,
		Role:     domain.Role(req.Role),
		Username: req.Username,
		Password: req.Password,
		Pin:      req.Pin,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetResourceID(c, account.ID)
	response.Created(c, account)
}

// authorizedTarget resolves the {id} path parameter and checks the caller
// may see it.
func (h *AccountHandler) authorizedTarget(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	actor, ok := actorID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	if err := h.accountSvc.Authorize(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	return actor, id, true
}

// Get handles GET /api/v1/{role}/accounts/{id}/.
func (h *AccountHandler) Get(c *gin.Context) {
	_, id, ok := h.authorizedTarget(c)
	if !ok {
		return
	}

	account, err := h.accountSvc.GetAccount(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, account)
}

// Descendants handles GET /api/v1/{role}/accounts/{id}/descendants/?role=.
// Without a role filter it returns the direct children.
func (h *AccountHandler) Descendants(c *gin.Context) {
	_, id, ok := h.authorizedTarget(c)
	if !ok {
		return
	}

	var (
		accounts []domain.Account
		err      error
	)
	if raw := c.Query("role"); raw != "" {
		role, valid := domain.ParseRole(raw)
		if !valid {
			response.Error(c, apperror.Validation("invalid role: must be powerhouse, super, master, or player"))
			return
		}
		accounts, err = h.accountSvc.GetDescendants(c.Request.Context(), id, role)
	} else {
		accounts, err = h.accountSvc.ListChildren(c.Request.Context(), id)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, accounts)
}

// Balance handles GET /api/v1/{role}/accounts/{id}/balance/.
func (h *AccountHandler) Balance(c *gin.Context) {
	_, id, ok := h.authorizedTarget(c)
	if !ok {
		return
	}

	summary, err := h.balanceSvc.Rollup(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// Reconcile handles GET /api/v1/{role}/accounts/{id}/reconcile/.
func (h *AccountHandler) Reconcile(c *gin.Context) {
	_, id, ok := h.authorizedTarget(c)
	if !ok {
		return
	}

	result, err := h.balanceSvc.Reconcile(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Deactivate handles POST /api/v1/{role}/accounts/{id}/deactivate/.
func (h *AccountHandler) Deactivate(c *gin.Context) {
	h.setStatus(c, h.accountSvc.Deactivate)
}

// Activate handles POST /api/v1/{role}/accounts/{id}/activate/.
func (h *AccountHandler) Activate(c *gin.Context) {
	h.setStatus(c, h.accountSvc.Activate)
}

func (h *AccountHandler) setStatus(c *gin.Context, apply func(ctx context.Context, actorID, id uuid.UUID) (*domain.Account, error)) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	account, err := apply(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, account)
}

// SetExposureLimit handles POST /api/v1/{role}/accounts/{id}/exposure-limit/.
func (h *AccountHandler) SetExposureLimit(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req dto.ExposureLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	account, err := h.accountSvc.SetExposureLimit(c.Request.Context(), actor, id, req.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, account)
}
