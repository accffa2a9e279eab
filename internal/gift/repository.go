package gift

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iM5LB/dbot/internal/ledger"
	"github.com/iM5LB/dbot/internal/metrics"
)

var (
	ErrGiftNotFound   = errors.New("gift not found")
	ErrInvalidAmount  = errors.New("gift amount must be positive")
	ErrSelfGift       = errors.New("cannot gift coins to yourself")
	ErrNotCancellable = errors.New("gift is not cancellable")
)

type Repository struct {
	db     *sqlx.DB
	ledger ledger.Poster
}

func NewRepository(db *sqlx.DB, ledgerRepo ledger.Poster) *Repository {
	return &Repository{db: db, ledger: ledgerRepo}
}

// Send moves coins from sender to recipient: one gift row plus two
// ledger entries, all in the same transaction. If the sender cannot
// cover the amount, nothing is written.
func (r *Repository) Send(ctx context.Context, senderID, recipientID int, amount int64, message string) (*Gift, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if senderID == recipientID {
		return nil, ErrSelfGift
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Both user rows get locked by the ledger postings below. Taking the
	// locks up front in ascending id order keeps two opposite-direction
	// gifts from deadlocking each other.
	if err := lockUsers(ctx, tx, senderID, recipientID); err != nil {
		return nil, err
	}

	g := &Gift{
		SenderID:    sql.NullInt64{Int64: int64(senderID), Valid: true},
		RecipientID: recipientID,
		Amount:      amount,
		Message:     sql.NullString{String: message, Valid: message != ""},
		Status:      StatusCompleted,
	}
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO gifts (sender_id, recipient_id, amount, message, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		g.SenderID, recipientID, amount, g.Message, StatusCompleted,
	).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return nil, err
	}

	ref := fmt.Sprintf("gift_%d", g.ID)
	_, err = r.ledger.PostTx(ctx, tx, senderID, -amount, ledger.TypeGiftSent,
		fmt.Sprintf("Gift to user %d", recipientID), ref)
	if err != nil {
		return nil, err
	}
	_, err = r.ledger.PostTx(ctx, tx, recipientID, amount, ledger.TypeGiftReceived,
		fmt.Sprintf("Gift from user %d", senderID), ref)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.RecordGift(StatusCompleted)
	return g, nil
}

func lockUsers(ctx context.Context, tx *sqlx.Tx, a, b int) error {
	if b < a {
		a, b = b, a
	}
	for _, id := range []int{a, b} {
		if _, err := tx.ExecContext(ctx,
			`SELECT id FROM users WHERE id = $1 FOR UPDATE`, id); err != nil {
			return err
		}
	}
	return nil
}

// AdminGrant credits coins with no sender. The recipient entry is the
// only ledger movement; nothing is debited anywhere.
func (r *Repository) AdminGrant(ctx context.Context, recipientID int, amount int64, message string) (*Gift, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	g := &Gift{
		RecipientID: recipientID,
		Amount:      amount,
		Message:     sql.NullString{String: message, Valid: message != ""},
		Status:      StatusCompleted,
	}
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO gifts (sender_id, recipient_id, amount, message, status)
		 VALUES (NULL, $1, $2, $3, $4)
		 RETURNING id, created_at`,
		recipientID, amount, g.Message, StatusCompleted,
	).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = r.ledger.PostTx(ctx, tx, recipientID, amount, ledger.TypeAdminAdd,
		message, fmt.Sprintf("gift_%d", g.ID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.RecordGift(StatusCompleted)
	return g, nil
}

// Cancel reverses a completed gift with two compensating ledger
// entries. Admin grants just take the coins back from the recipient.
func (r *Repository) Cancel(ctx context.Context, id int, reason string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	g := &Gift{}
	err = tx.QueryRowxContext(ctx,
		`SELECT id, sender_id, recipient_id, amount, message, status, created_at
		 FROM gifts WHERE id = $1 FOR UPDATE`, id,
	).StructScan(g)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrGiftNotFound
		}
		return err
	}
	if g.Status != StatusCompleted {
		return ErrNotCancellable
	}

	if g.SenderID.Valid {
		if err := lockUsers(ctx, tx, g.RecipientID, int(g.SenderID.Int64)); err != nil {
			return err
		}
	}

	ref := fmt.Sprintf("gift_%d_cancel", g.ID)
	_, err = r.ledger.PostTx(ctx, tx, g.RecipientID, -g.Amount, ledger.TypeAdminRemove, reason, ref)
	if err != nil {
		return err
	}
	if g.SenderID.Valid {
		_, err = r.ledger.PostTx(ctx, tx, int(g.SenderID.Int64), g.Amount, ledger.TypeRefund, reason, ref)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE gifts SET status = $1 WHERE id = $2`, StatusCancelled, id)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	metrics.RecordGift(StatusCancelled)
	return nil
}

func (r *Repository) Get(ctx context.Context, id int) (*Gift, error) {
	g := &Gift{}
	err := r.db.GetContext(ctx, g,
		`SELECT id, sender_id, recipient_id, amount, message, status, created_at
		 FROM gifts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGiftNotFound
		}
		return nil, err
	}
	return g, nil
}

// ListByUser returns gifts a user sent or received, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID, limit, offset int) ([]Gift, error) {
	if limit <= 0 {
		limit = 50
	}
	var gifts []Gift
	err := r.db.SelectContext(ctx, &gifts,
		`SELECT id, sender_id, recipient_id, amount, message, status, created_at
		 FROM gifts
		 WHERE sender_id = $1 OR recipient_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return gifts, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Gift, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM gifts`); err != nil {
		return nil, 0, err
	}

	var gifts []Gift
	err := r.db.SelectContext(ctx, &gifts,
		`SELECT id, sender_id, recipient_id, amount, message, status, created_at
		 FROM gifts
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return gifts, total, nil
}

func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	s := &Stats{}
	err := r.db.GetContext(ctx, s,
		`SELECT COUNT(*) AS total_gifts,
		        COALESCE(SUM(amount), 0) AS total_coins,
		        COUNT(*) FILTER (WHERE sender_id IS NULL) AS admin_grants
		 FROM gifts
		 WHERE status = $1`, StatusCompleted)
	if err != nil {
		return nil, err
	}
	return s, nil
}
