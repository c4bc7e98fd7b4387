package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog stores the response of a transfer so a replayed request
// returns the original entry.
type IdempotencyLog struct {
	Key          string    `json:"key"` // Format: "user_id:transfer:client_key"
	EntryID      uuid.UUID `json:"entry_id"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// BuildIdempotencyKey scopes a client-supplied key to the user.
func BuildIdempotencyKey(userID uuid.UUID, clientKey string) string {
	return userID.String() + ":transfer:" + clientKey
}
