package user

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupUserMock(t *testing.T) (*Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "discord_id", "username", "email", "minecraft_uuid", "coins",
		"is_admin", "is_active", "created_at", "updated_at",
	})
}

func TestGetOrCreate_Existing(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM users WHERE discord_id = \\$1").
		WithArgs("111222333").
		WillReturnRows(userRows().AddRow(1, "111222333", "Steve", "", "", 100, false, true, now, now))

	u, err := repo.GetOrCreate(context.Background(), "111222333", "Steve")
	require.NoError(t, err)
	require.Equal(t, 1, u.ID)
	require.Equal(t, int64(100), u.Coins)
}

func TestGetOrCreate_New(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM users WHERE discord_id = \\$1").
		WithArgs("444555666").
		WillReturnRows(userRows())

	mock.ExpectQuery("INSERT INTO users \\(discord_id, username\\)").
		WithArgs("444555666", "Alex").
		WillReturnRows(userRows().AddRow(2, "444555666", "Alex", "", "", 0, false, true, now, now))

	u, err := repo.GetOrCreate(context.Background(), "444555666", "Alex")
	require.NoError(t, err)
	require.Equal(t, 2, u.ID)
	require.Zero(t, u.Coins)
}

func TestSetActive_NotFound(t *testing.T) {
	repo, mock, close := setupUserMock(t)
	defer close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs(false, 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetActive(context.Background(), 99, false)
	require.ErrorIs(t, err, ErrUserNotFound)
}
