package ledger

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupLedgerMock(t *testing.T) (*Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func TestPost_Debit(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	ctx := context.Background()

	mock.ExpectBegin()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT coins FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"coins"}).AddRow(100))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET coins = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs(50, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions (user_id, transaction_type, amount, description, reference_id) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at")).
		WithArgs(3, TypePurchase, -50, "Purchased 1x Diamond Sword", sql.NullString{String: "purchase_7", Valid: true}).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(12, time.Now()))

	mock.ExpectCommit()

	entry, err := repo.Post(ctx, 3, -50, TypePurchase, "Purchased 1x Diamond Sword", "purchase_7")
	require.NoError(t, err)
	require.Equal(t, 12, entry.ID)
	require.Equal(t, int64(-50), entry.Amount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPost_InsufficientFunds(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	ctx := context.Background()

	mock.ExpectBegin()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT coins FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"coins"}).AddRow(50))

	// No UPDATE, no INSERT: the balance must be left untouched.
	mock.ExpectRollback()

	_, err := repo.Post(ctx, 3, -200, TypePurchase, "Purchased 1x Elytra", "")
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPost_UserMissing(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT coins FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Post(context.Background(), 99, 10, TypeEarn, "Message activity", "")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestBalanceOf(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT coins FROM users WHERE id = $1")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"coins"}).AddRow(75))

	balance, err := repo.BalanceOf(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, int64(75), balance)
}

func TestSumEarnedSince(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	since := time.Now().Truncate(24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT SUM(amount) FROM transactions WHERE user_id = $1 AND transaction_type = $2 AND created_at >= $3")).
		WithArgs(3, TypeEarn, since).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(42))

	total, err := repo.SumEarnedSince(context.Background(), 3, since, TypeEarn)
	require.NoError(t, err)
	require.Equal(t, int64(42), total)
}

func TestSumEarnedSince_NoEntries(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	since := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT SUM(amount) FROM transactions")).
		WithArgs(3, TypeEarn, since).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(nil))

	total, err := repo.SumEarnedSince(context.Background(), 3, since, TypeEarn)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestLastEntryAt_NoHistory(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT created_at FROM transactions")).
		WithArgs(3, TypeEarn).
		WillReturnError(sql.ErrNoRows)

	ts, err := repo.LastEntryAt(context.Background(), 3, TypeEarn)
	require.NoError(t, err)
	require.True(t, ts.IsZero())
}
