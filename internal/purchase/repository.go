package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iM5LB/dbot/internal/ledger"
)

var (
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrNotRefundable    = errors.New("purchase is not refundable")
	ErrNotPending       = errors.New("purchase is not pending")
)

const purchaseColumns = `id, user_id, item_id, quantity, total_cost, status,
	 created_at, fulfilled_at, minecraft_command, discord_role_assigned`

type Repository struct {
	db     *sqlx.DB
	ledger ledger.Poster
}

func NewRepository(db *sqlx.DB, ledgerRepo ledger.Poster) *Repository {
	return &Repository{db: db, ledger: ledgerRepo}
}

// Create inserts a pending purchase and debits the buyer in one
// transaction. total_cost is frozen here; later price edits never touch
// it. On insufficient funds nothing is written.
func (r *Repository) Create(ctx context.Context, userID, itemID, quantity int, totalCost int64, description string) (*Purchase, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p := &Purchase{
		UserID:    userID,
		ItemID:    itemID,
		Quantity:  quantity,
		TotalCost: totalCost,
		Status:    StatusPending,
	}
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO purchases (user_id, item_id, quantity, total_cost, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		userID, itemID, quantity, totalCost, StatusPending,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = r.ledger.PostTx(ctx, tx, userID, -totalCost, ledger.TypePurchase,
		description, fmt.Sprintf("purchase_%d", p.ID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// Claim moves a purchase from pending to processing. The guarded UPDATE
// is the serialization point: of two overlapping sweeps, exactly one
// sees a row affected.
func (r *Repository) Claim(ctx context.Context, id int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE purchases SET status = $1 WHERE id = $2 AND status = $3`,
		StatusProcessing, id, StatusPending,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkFulfilled settles a processing purchase. The resolved command is
// stored for audit even though fulfillment succeeded.
func (r *Repository) MarkFulfilled(ctx context.Context, id int, command string, roleAssigned bool) error {
	return r.settle(ctx, id, StatusFulfilled, command, roleAssigned)
}

// MarkFailed settles a processing purchase as failed. Side effects that
// already succeeded (a granted role, an executed command) stay recorded
// and are not undone.
func (r *Repository) MarkFailed(ctx context.Context, id int, command string, roleAssigned bool) error {
	return r.settle(ctx, id, StatusFailed, command, roleAssigned)
}

func (r *Repository) settle(ctx context.Context, id int, status, command string, roleAssigned bool) error {
	cmd := sql.NullString{String: command, Valid: command != ""}

	var fulfilledAt string
	if status == StatusFulfilled {
		fulfilledAt = `, fulfilled_at = NOW()`
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE purchases
		 SET status = $1, minecraft_command = $2, discord_role_assigned = $3`+fulfilledAt+`
		 WHERE id = $4 AND status = $5`,
		status, cmd, roleAssigned, id, StatusProcessing,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPurchaseNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id int) (*Purchase, error) {
	p := &Purchase{}
	err := r.db.GetContext(ctx, p, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListPending returns the worker's sweep input, oldest first.
func (r *Repository) ListPending(ctx context.Context) ([]Purchase, error) {
	var purchases []Purchase
	err := r.db.SelectContext(ctx, &purchases,
		`SELECT `+purchaseColumns+` FROM purchases
		 WHERE status = $1
		 ORDER BY created_at ASC`,
		StatusPending,
	)
	if err != nil {
		return nil, err
	}
	return purchases, nil
}

func (r *Repository) List(ctx context.Context, status string, userID, limit, offset int) ([]Purchase, int, error) {
	if limit <= 0 {
		limit = 50
	}

	where := ``
	args := []interface{}{}
	n := 0
	if status != "" && status != "all" {
		n++
		where = fmt.Sprintf(" WHERE status = $%d", n)
		args = append(args, status)
	}
	if userID > 0 {
		n++
		if where == "" {
			where = fmt.Sprintf(" WHERE user_id = $%d", n)
		} else {
			where += fmt.Sprintf(" AND user_id = $%d", n)
		}
		args = append(args, userID)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM purchases`+where, args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+purchaseColumns+` FROM purchases`+where+
		` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, limit, offset)

	var purchases []Purchase
	if err := r.db.SelectContext(ctx, &purchases, query, args...); err != nil {
		return nil, 0, err
	}
	return purchases, total, nil
}

// Refund is the explicit administrative compensation for a failed
// purchase: it credits the debited coins back and marks the purchase
// refunded, atomically.
func (r *Repository) Refund(ctx context.Context, id int, reason string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p := &Purchase{}
	err = tx.QueryRowxContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE id = $1 FOR UPDATE`, id,
	).StructScan(p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPurchaseNotFound
		}
		return err
	}

	if p.Status != StatusFailed {
		return ErrNotRefundable
	}

	_, err = r.ledger.PostTx(ctx, tx, p.UserID, p.TotalCost, ledger.TypeRefund,
		reason, fmt.Sprintf("purchase_%d", p.ID))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE purchases SET status = $1 WHERE id = $2`, StatusRefunded, id)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Repository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT status, COUNT(*) AS count FROM purchases GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
