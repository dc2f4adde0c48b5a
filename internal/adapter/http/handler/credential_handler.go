package handler

import (
	"tiered-ledger/internal/adapter/http/dto"
	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"
	"tiered-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CredentialHandler handles PIN regeneration and password resets.
type CredentialHandler struct {
	accountSvc ports.AccountService
	credSvc    ports.CredentialService
}

// NewCredentialHandler creates a new CredentialHandler.
func NewCredentialHandler(accountSvc ports.AccountService, credSvc ports.CredentialService) *CredentialHandler {
	return &CredentialHandler{accountSvc: accountSvc, credSvc: credSvc}
}

// target resolves {userType}/{id} and checks the account really has that role.
func (h *CredentialHandler) target(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	actor, ok := actorID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	userType, valid := domain.ParseRole(c.Param("userType"))
	if !valid {
		response.Error(c, apperror.ErrNotFound("route"))
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
	account, err := h.accountSvc.GetAccount(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	if account.Role != userType {
		response.Error(c, apperror.Validation("account is not a "+string(userType)))
		return uuid.Nil, uuid.Nil, false
	}
	return actor, id, true
}

// RegeneratePin handles POST /api/v1/{role}/{userType}/{id}/regenerate-pin/.
// The new PIN is returned once and never stored in plain text.
func (h *CredentialHandler) RegeneratePin(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}

	var req dto.RegeneratePinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	pin, err := h.credSvc.RegeneratePin(c.Request.Context(), actor, id, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.RegeneratePinResponse{AccountID: id.String(), Pin: pin})
}

// ResetPassword handles POST /api/v1/{role}/{userType}/{id}/reset-password/.
func (h *CredentialHandler) ResetPassword(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}

	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.credSvc.ResetPassword(c.Request.Context(), actor, id, req.Password, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"account_id": id.String()})
}
