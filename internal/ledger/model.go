package ledger

import (
	"database/sql"
	"time"
)

// Entry types mirror the transactions check constraint.
const (
	TypeEarn         = "earn"
	TypePurchase     = "purchase"
	TypeAdminAdd     = "admin_add"
	TypeAdminRemove  = "admin_remove"
	TypeRefund       = "refund"
	TypeGiftSent     = "gift_sent"
	TypeGiftReceived = "gift_received"
	TypeTopup        = "topup"
)

// Entry is one immutable signed balance change. The owning user's coins
// column is always the sum of their entries; every balance mutation goes
// through Post/PostTx so the two can never drift.
type Entry struct {
	ID          int            `db:"id" json:"id"`
	UserID      int            `db:"user_id" json:"user_id"`
	Type        string         `db:"transaction_type" json:"transaction_type"`
	Amount      int64          `db:"amount" json:"amount"`
	Description string         `db:"description" json:"description"`
	ReferenceID sql.NullString `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}
