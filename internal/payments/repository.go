package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/iM5LB/dbot/internal/ledger"
)

var (
	ErrRecordNotFound   = errors.New("payment record not found")
	ErrAlreadyProcessed = errors.New("payment already processed")
)

type Repository struct {
	db     *sqlx.DB
	ledger ledger.Poster
}

func NewRepository(db *sqlx.DB, ledgerRepo ledger.Poster) *Repository {
	return &Repository{db: db, ledger: ledgerRepo}
}

// Credit records a successful payment and credits the coins, in one
// transaction. The unique constraint on stripe_payment_id makes webhook
// redeliveries a no-op.
func (r *Repository) Credit(ctx context.Context, userID int, stripePaymentID string, amountCents, coins int64) (*Record, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rec := &Record{
		UserID:          userID,
		StripePaymentID: stripePaymentID,
		AmountCents:     amountCents,
		Coins:           coins,
		Status:          StatusCompleted,
	}
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO payment_records (user_id, stripe_payment_id, amount_cents, coins, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		userID, stripePaymentID, amountCents, coins, StatusCompleted,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrAlreadyProcessed
		}
		return nil, err
	}

	_, err = r.ledger.PostTx(ctx, tx, userID, coins, ledger.TypeTopup,
		fmt.Sprintf("Coin top-up (%d coins)", coins),
		fmt.Sprintf("stripe_%s", stripePaymentID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Repository) Get(ctx context.Context, id int) (*Record, error) {
	rec := &Record{}
	err := r.db.GetContext(ctx, rec,
		`SELECT id, user_id, stripe_payment_id, amount_cents, coins, status, created_at
		 FROM payment_records WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (r *Repository) List(ctx context.Context, userID, limit, offset int) ([]Record, int, error) {
	if limit <= 0 {
		limit = 50
	}

	where := ``
	args := []interface{}{}
	if userID > 0 {
		where = ` WHERE user_id = $1`
		args = append(args, userID)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM payment_records`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, user_id, stripe_payment_id, amount_cents, coins, status, created_at
		 FROM payment_records` + where + ` ORDER BY created_at DESC`
	if where == "" {
		query += ` LIMIT $1 OFFSET $2`
	} else {
		query += ` LIMIT $2 OFFSET $3`
	}
	args = append(args, limit, offset)

	var records []Record
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
