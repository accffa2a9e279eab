package audit

import (
	"database/sql"
	"time"
)

// Common actions. The column is free text; these are the ones the
// handlers and bot emit.
const (
	ActionLogin         = "admin_login"
	ActionCoinsAdjusted = "coins_adjusted"
	ActionItemCreated   = "item_created"
	ActionItemUpdated   = "item_updated"
	ActionItemDeleted   = "item_deleted"
	ActionUserBanned    = "user_banned"
	ActionUserUnbanned  = "user_unbanned"
	ActionRefundIssued  = "refund_issued"
	ActionGiftCancelled = "gift_cancelled"
	ActionConfigChanged = "config_changed"
	ActionServerChanged = "server_changed"
	ActionManualFulfill = "manual_fulfill"
)

type Log struct {
	ID         int            `db:"id" json:"id"`
	Actor      string         `db:"actor" json:"actor"`
	Action     string         `db:"action" json:"action"`
	TargetType sql.NullString `db:"target_type" json:"target_type"`
	TargetID   sql.NullString `db:"target_id" json:"target_id"`
	Details    sql.NullString `db:"details" json:"details"`
	IPAddress  sql.NullString `db:"ip_address" json:"ip_address"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// ActionCount is one row of the stats aggregate.
type ActionCount struct {
	Action string `db:"action" json:"action"`
	Count  int    `db:"count" json:"count"`
}
