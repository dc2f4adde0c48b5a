package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog represents a stored result used to answer a replayed request.
type IdempotencyLog struct {
	Key          string    `json:"key"` // Format: "game:<round_ref>"
	ResourceID   uuid.UUID `json:"resource_id"`
	ResponseJSON []byte    `json:"response_json"` // Cached response to return
	CreatedAt    time.Time `json:"created_at"`
}

// BuildGameResultKey constructs the idempotency key of a game round.
func BuildGameResultKey(roundRef string) string {
	return "game:" + roundRef
}
