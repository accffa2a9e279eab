package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUserNotFound      = errors.New("user not found")
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Post records one entry and adjusts the user's balance in a single
// transaction. Concurrent posts against the same user serialize on the
// row lock, so the non-negativity check never races a stale balance.
func (r *Repository) Post(ctx context.Context, userID int, amount int64, entryType, description, referenceID string) (*Entry, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := r.PostTx(ctx, tx, userID, amount, entryType, description, referenceID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

// PostTx is Post inside a caller-owned transaction. Purchase and gift
// flows use it to keep the debit, the entry and their own rows atomic.
func (r *Repository) PostTx(ctx context.Context, tx *sqlx.Tx, userID int, amount int64, entryType, description, referenceID string) (*Entry, error) {
	var coins int64
	err := tx.QueryRowxContext(ctx,
		`SELECT coins FROM users WHERE id = $1 FOR UPDATE`,
		userID,
	).Scan(&coins)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	newBalance := coins + amount
	if newBalance < 0 {
		return nil, ErrInsufficientFunds
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET coins = $1, updated_at = NOW() WHERE id = $2`,
		newBalance, userID,
	)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		UserID:      userID,
		Type:        entryType,
		Amount:      amount,
		Description: description,
	}
	if referenceID != "" {
		entry.ReferenceID = sql.NullString{String: referenceID, Valid: true}
	}

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO transactions (user_id, transaction_type, amount, description, reference_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		userID, entryType, amount, description, entry.ReferenceID,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	return entry, nil
}

func (r *Repository) BalanceOf(ctx context.Context, userID int) (int64, error) {
	var coins int64
	err := r.db.GetContext(ctx, &coins, `SELECT coins FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return coins, nil
}

// SumEarnedSince totals entries of the given type created at or after
// since. The daily earn cap is enforced from this query.
func (r *Repository) SumEarnedSince(ctx context.Context, userID int, since time.Time, entryType string) (int64, error) {
	var total sql.NullInt64
	err := r.db.GetContext(ctx, &total,
		`SELECT SUM(amount) FROM transactions
		 WHERE user_id = $1 AND transaction_type = $2 AND created_at >= $3`,
		userID, entryType, since,
	)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}

// LastEntryAt returns the creation time of the user's most recent entry
// of the given type. Cooldown checks are derived from this instead of an
// in-process map so they survive restarts and multiple instances.
func (r *Repository) LastEntryAt(ctx context.Context, userID int, entryType string) (time.Time, error) {
	var ts time.Time
	err := r.db.GetContext(ctx, &ts,
		`SELECT created_at FROM transactions
		 WHERE user_id = $1 AND transaction_type = $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID, entryType,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return ts, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID, limit, offset int) ([]Entry, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID); err != nil {
		return nil, 0, err
	}

	var entries []Entry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT id, user_id, transaction_type, amount, description, reference_id, created_at
		 FROM transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *Repository) List(ctx context.Context, entryType string, limit, offset int) ([]Entry, int, error) {
	if limit <= 0 {
		limit = 50
	}

	where := ``
	args := []interface{}{}
	if entryType != "" && entryType != "all" {
		where = ` WHERE transaction_type = $1`
		args = append(args, entryType)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM transactions`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, user_id, transaction_type, amount, description, reference_id, created_at
		 FROM transactions` + where + ` ORDER BY created_at DESC`
	if where == "" {
		query += ` LIMIT $1 OFFSET $2`
	} else {
		query += ` LIMIT $2 OFFSET $3`
	}
	args = append(args, limit, offset)

	var entries []Entry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
