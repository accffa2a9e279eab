package purchase

import (
	"database/sql"
	"time"
)

// Lifecycle: pending -> processing -> fulfilled | failed. Terminal states
// are never left. refunded is only reachable from failed via an explicit
// admin refund; nothing refunds automatically.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusFulfilled  = "fulfilled"
	StatusFailed     = "failed"
	StatusRefunded   = "refunded"
)

type Purchase struct {
	ID                  int            `db:"id" json:"id"`
	UserID              int            `db:"user_id" json:"user_id"`
	ItemID              int            `db:"item_id" json:"item_id"`
	Quantity            int            `db:"quantity" json:"quantity"`
	TotalCost           int64          `db:"total_cost" json:"total_cost"`
	Status              string         `db:"status" json:"status"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	FulfilledAt         sql.NullTime   `db:"fulfilled_at" json:"fulfilled_at,omitempty"`
	MinecraftCommand    sql.NullString `db:"minecraft_command" json:"minecraft_command,omitempty"`
	DiscordRoleAssigned bool           `db:"discord_role_assigned" json:"discord_role_assigned"`
}
