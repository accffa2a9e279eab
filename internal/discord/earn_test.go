package discord

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iM5LB/dbot/internal/ledger"
	"github.com/iM5LB/dbot/internal/settings"
	"github.com/iM5LB/dbot/internal/user"
)

type mockUsers struct{ mock.Mock }

func (m *mockUsers) FindByID(ctx context.Context, id int) (*user.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*user.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUsers) FindByDiscordID(ctx context.Context, discordID string) (*user.User, error) {
	args := m.Called(ctx, discordID)
	if u := args.Get(0); u != nil {
		return u.(*user.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUsers) GetOrCreate(ctx context.Context, discordID, username string) (*user.User, error) {
	args := m.Called(ctx, discordID, username)
	if u := args.Get(0); u != nil {
		return u.(*user.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) Post(ctx context.Context, userID int, amount int64, entryType, description, referenceID string) (*ledger.Entry, error) {
	args := m.Called(ctx, userID, amount, entryType, description, referenceID)
	if e := args.Get(0); e != nil {
		return e.(*ledger.Entry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLedger) PostTx(ctx context.Context, tx *sqlx.Tx, userID int, amount int64, entryType, description, referenceID string) (*ledger.Entry, error) {
	args := m.Called(ctx, tx, userID, amount, entryType, description, referenceID)
	if e := args.Get(0); e != nil {
		return e.(*ledger.Entry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLedger) BalanceOf(ctx context.Context, userID int) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedger) SumEarnedSince(ctx context.Context, userID int, since time.Time, entryType string) (int64, error) {
	args := m.Called(ctx, userID, since, entryType)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedger) LastEntryAt(ctx context.Context, userID int, entryType string) (time.Time, error) {
	args := m.Called(ctx, userID, entryType)
	return args.Get(0).(time.Time), args.Error(1)
}

type staticRules struct {
	rules settings.EarnRules
}

func (s staticRules) EarnRules(ctx context.Context) (*settings.EarnRules, error) {
	r := s.rules
	return &r, nil
}

func defaultRules() staticRules {
	return staticRules{rules: settings.EarnRules{
		CoinsPerMessage: 1,
		CooldownSeconds: 60,
		MaxDailyCoins:   100,
	}}
}

func chatter() *user.User {
	return &user.User{ID: 3, DiscordID: "111", Username: "A", Coins: 10, IsActive: true}
}

func TestAward_FirstMessageEarns(t *testing.T) {
	users := new(mockUsers)
	ledgerRepo := new(mockLedger)

	users.On("GetOrCreate", mock.Anything, "111", "A").Return(chatter(), nil)
	ledgerRepo.On("LastEntryAt", mock.Anything, 3, ledger.TypeEarn).Return(time.Time{}, nil)
	ledgerRepo.On("SumEarnedSince", mock.Anything, 3, mock.Anything, ledger.TypeEarn).Return(int64(0), nil)
	ledgerRepo.On("Post", mock.Anything, 3, int64(1), ledger.TypeEarn, "Chat activity reward", "").
		Return(&ledger.Entry{ID: 1}, nil)

	e := NewEarner(users, ledgerRepo, defaultRules())
	amount, err := e.Award(context.Background(), "111", "A")

	require.NoError(t, err)
	require.Equal(t, int64(1), amount)
	ledgerRepo.AssertExpectations(t)
}

func TestAward_CooldownBlocks(t *testing.T) {
	users := new(mockUsers)
	ledgerRepo := new(mockLedger)

	users.On("GetOrCreate", mock.Anything, "111", "A").Return(chatter(), nil)
	ledgerRepo.On("LastEntryAt", mock.Anything, 3, ledger.TypeEarn).Return(time.Now().Add(-10*time.Second), nil)

	e := NewEarner(users, ledgerRepo, defaultRules())
	amount, err := e.Award(context.Background(), "111", "A")

	require.NoError(t, err)
	require.Zero(t, amount)
	ledgerRepo.AssertNotCalled(t, "Post", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAward_DailyCapBlocks(t *testing.T) {
	users := new(mockUsers)
	ledgerRepo := new(mockLedger)

	users.On("GetOrCreate", mock.Anything, "111", "A").Return(chatter(), nil)
	ledgerRepo.On("LastEntryAt", mock.Anything, 3, ledger.TypeEarn).Return(time.Now().Add(-2*time.Minute), nil)
	ledgerRepo.On("SumEarnedSince", mock.Anything, 3, mock.Anything, ledger.TypeEarn).Return(int64(100), nil)

	e := NewEarner(users, ledgerRepo, defaultRules())
	amount, err := e.Award(context.Background(), "111", "A")

	require.NoError(t, err)
	require.Zero(t, amount)
	ledgerRepo.AssertNotCalled(t, "Post", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAward_ClampsToRemainingCap(t *testing.T) {
	users := new(mockUsers)
	ledgerRepo := new(mockLedger)

	rules := staticRules{rules: settings.EarnRules{
		CoinsPerMessage: 5,
		CooldownSeconds: 60,
		MaxDailyCoins:   100,
	}}

	users.On("GetOrCreate", mock.Anything, "111", "A").Return(chatter(), nil)
	ledgerRepo.On("LastEntryAt", mock.Anything, 3, ledger.TypeEarn).Return(time.Now().Add(-2*time.Minute), nil)
	ledgerRepo.On("SumEarnedSince", mock.Anything, 3, mock.Anything, ledger.TypeEarn).Return(int64(98), nil)
	ledgerRepo.On("Post", mock.Anything, 3, int64(2), ledger.TypeEarn, "Chat activity reward", "").
		Return(&ledger.Entry{ID: 2}, nil)

	e := NewEarner(users, ledgerRepo, rules)
	amount, err := e.Award(context.Background(), "111", "A")

	require.NoError(t, err)
	require.Equal(t, int64(2), amount)
}

func TestAward_BannedUserEarnsNothing(t *testing.T) {
	users := new(mockUsers)
	ledgerRepo := new(mockLedger)

	banned := chatter()
	banned.IsActive = false
	users.On("GetOrCreate", mock.Anything, "111", "A").Return(banned, nil)

	e := NewEarner(users, ledgerRepo, defaultRules())
	amount, err := e.Award(context.Background(), "111", "A")

	require.NoError(t, err)
	require.Zero(t, amount)
}

func TestAward_EarningDisabled(t *testing.T) {
	users := new(mockUsers)
	ledgerRepo := new(mockLedger)

	disabled := staticRules{rules: settings.EarnRules{CoinsPerMessage: 0, CooldownSeconds: 60, MaxDailyCoins: 100}}

	e := NewEarner(users, ledgerRepo, disabled)
	amount, err := e.Award(context.Background(), "111", "A")

	require.NoError(t, err)
	require.Zero(t, amount)
	users.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything, mock.Anything)
}
