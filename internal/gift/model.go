package gift

import (
	"database/sql"
	"time"
)

const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Gift is a coin transfer between two users. SenderID is NULL for
// admin grants, which mint coins instead of moving them.
type Gift struct {
	ID          int            `db:"id" json:"id"`
	SenderID    sql.NullInt64  `db:"sender_id" json:"sender_id"`
	RecipientID int            `db:"recipient_id" json:"recipient_id"`
	Amount      int64          `db:"amount" json:"amount"`
	Message     sql.NullString `db:"message" json:"message"`
	Status      string         `db:"status" json:"status"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// Stats is the admin dashboard aggregate.
type Stats struct {
	TotalGifts  int   `db:"total_gifts" json:"total_gifts"`
	TotalCoins  int64 `db:"total_coins" json:"total_coins"`
	AdminGrants int   `db:"admin_grants" json:"admin_grants"`
}
