package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionLogin             AuditAction = "LOGIN"
	AuditActionCreateAccount     AuditAction = "CREATE_ACCOUNT"
	AuditActionUpdateAccount     AuditAction = "UPDATE_ACCOUNT"
	AuditActionCreateRequest     AuditAction = "CREATE_REQUEST"
	AuditActionApprove           AuditAction = "APPROVE"
	AuditActionReject            AuditAction = "REJECT"
	AuditActionDirectTransaction AuditAction = "DIRECT_TRANSACTION"
	AuditActionSettle            AuditAction = "SETTLE"
	AuditActionCredentials       AuditAction = "CREDENTIALS"
	AuditActionPaymentMode       AuditAction = "PAYMENT_MODE"
	AuditActionGameResult        AuditAction = "GAME_RESULT"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
