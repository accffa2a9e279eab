package ledger

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Poster interface {
	Post(ctx context.Context, userID int, amount int64, entryType, description, referenceID string) (*Entry, error)
	PostTx(ctx context.Context, tx *sqlx.Tx, userID int, amount int64, entryType, description, referenceID string) (*Entry, error)
	BalanceOf(ctx context.Context, userID int) (int64, error)
	SumEarnedSince(ctx context.Context, userID int, since time.Time, entryType string) (int64, error)
	LastEntryAt(ctx context.Context, userID int, entryType string) (time.Time, error)
}
