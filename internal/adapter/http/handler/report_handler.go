package handler

import (
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ReportHandler handles the accounting report.
type ReportHandler struct {
	reportingSvc ports.ReportingService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportingSvc ports.ReportingService) *ReportHandler {
	return &ReportHandler{reportingSvc: reportingSvc}
}

// AccountingReport handles GET /api/v1/{role}/accounting-report/?period=.
func (h *ReportHandler) AccountingReport(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	period := c.DefaultQuery("period", "all")
	report, err := h.reportingSvc.GetAccountingReport(c.Request.Context(), actor, period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
