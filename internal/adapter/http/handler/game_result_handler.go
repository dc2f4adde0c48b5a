package handler

import (
	"tiered-ledger/internal/adapter/http/dto"
	"tiered-ledger/internal/adapter/http/middleware"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"
	"tiered-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GameResultHandler accepts settled rounds from the game integration.
type GameResultHandler struct {
	gameResultSvc ports.GameResultService
}

// NewGameResultHandler creates a new GameResultHandler.
func NewGameResultHandler(gameResultSvc ports.GameResultService) *GameResultHandler {
	return &GameResultHandler{gameResultSvc: gameResultSvc}
}

// Record handles POST /api/v1/internal/game-results/. A replayed round_ref
// returns the original outcome.
func (h *GameResultHandler) Record(c *gin.Context) {
	var req dto.GameResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	outcome, err := h.gameResultSvc.RecordResult(c.Request.Context(), ports.GameResult{
		PlayerID: uuid.MustParse(req.PlayerID),
		RoundRef: req.RoundRef,
		Amount:   req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if outcome.Transaction != nil {
		middleware.SetResourceID(c, outcome.Transaction.ID)
	}
	response.OK(c, outcome)
}
