package settings

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupSettingsMock(t *testing.T) (*Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	closer := func() { sqlxDB.Close() }
	return NewRepository(sqlxDB), mock, closer
}

func TestGet_FallsBackToDefault(t *testing.T) {
	repo, mock, close := setupSettingsMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM bot_config WHERE key = $1")).
		WithArgs(KeyCoinsPerMessage).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	value, err := repo.Get(context.Background(), KeyCoinsPerMessage)
	require.NoError(t, err)
	require.Equal(t, "1", value)
}

func TestGet_UnknownKey(t *testing.T) {
	repo, mock, close := setupSettingsMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM bot_config WHERE key = $1")).
		WithArgs("no_such_key").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, err := repo.Get(context.Background(), "no_such_key")
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestSet_RejectsInvalidValue(t *testing.T) {
	repo, _, close := setupSettingsMock(t)
	defer close()

	require.ErrorIs(t, repo.Set(context.Background(), KeyMessageCooldown, "-5"), ErrInvalidValue)
	require.ErrorIs(t, repo.Set(context.Background(), KeyMessageCooldown, "soon"), ErrInvalidValue)
	require.ErrorIs(t, repo.Set(context.Background(), "no_such_key", "1"), ErrUnknownKey)
}

func TestSet_Upserts(t *testing.T) {
	repo, mock, close := setupSettingsMock(t)
	defer close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bot_config (key, value, updated_at)")).
		WithArgs(KeyMaxDailyCoins, "250").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Set(context.Background(), KeyMaxDailyCoins, "250"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEarnRules_MergesStoredAndDefault(t *testing.T) {
	repo, mock, close := setupSettingsMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, value FROM bot_config")).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow(KeyMessageCooldown, "30"))

	rules, err := repo.EarnRules(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), rules.CoinsPerMessage)
	require.Equal(t, int64(30), rules.CooldownSeconds)
	require.Equal(t, int64(100), rules.MaxDailyCoins)
}
