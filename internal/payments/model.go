package payments

import "time"

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Record is one processed Stripe payment. StripePaymentID is unique:
// webhook redeliveries hit the constraint instead of crediting twice.
type Record struct {
	ID              int       `db:"id" json:"id"`
	UserID          int       `db:"user_id" json:"user_id"`
	StripePaymentID string    `db:"stripe_payment_id" json:"stripe_payment_id"`
	AmountCents     int64     `db:"amount_cents" json:"amount_cents"`
	Coins           int64     `db:"coins" json:"coins"`
	Status          string    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
