package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful write operations.
// It maps the matched route template to an audit action. The resource id is
// the one set by the handler via SetResourceID, else the route's path parameter.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		action, resourceType, resourceParam := mapRouteToAction(c.FullPath())
		if action == "" {
			return
		}

		resourceID := c.Param(resourceParam)
		if created := c.GetString(CtxResourceID); created != "" {
			resourceID = created
		}

		var actorID *uuid.UUID
		if id, ok := AccountIDFrom(c); ok {
			actorID = &id
		}

		detailMap := map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}
		for _, p := range c.Params {
			detailMap[p.Key] = p.Value
		}
		details, _ := json.Marshal(detailMap)

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actorID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

// mapRouteToAction returns the action, the resource type and the path
// parameter naming the resource for a route template.
func mapRouteToAction(route string) (domain.AuditAction, string, string) {
	route = strings.TrimPrefix(route, "/api/v1")
	switch {
	case route == "/auth/login/":
		return domain.AuditActionLogin, "session", ""
	case route == "/:role/accounts/":
		return domain.AuditActionCreateAccount, "account", ""
	case strings.HasPrefix(route, "/:role/accounts/:id/"):
		return domain.AuditActionUpdateAccount, "account", "id"
	case strings.HasSuffix(route, "/create/"):
		return domain.AuditActionCreateRequest, "transaction", ""
	case strings.HasSuffix(route, "/:id/approve/"):
		return domain.AuditActionApprove, "transaction", "id"
	case strings.HasSuffix(route, "/:id/reject/"):
		return domain.AuditActionReject, "transaction", "id"
	case strings.HasSuffix(route, "/direct/"):
		return domain.AuditActionDirectTransaction, "transaction", ""
	case route == "/:role/settlement/:masterId/":
		return domain.AuditActionSettle, "settlement", "masterId"
	case strings.HasSuffix(route, "/regenerate-pin/"), strings.HasSuffix(route, "/reset-password/"):
		return domain.AuditActionCredentials, "account", "id"
	case strings.HasPrefix(route, "/:role/payment-modes/"):
		return domain.AuditActionPaymentMode, "payment_mode", "id"
	case route == "/internal/game-results/":
		return domain.AuditActionGameResult, "game_round", ""
	}
	return "", "", ""
}
