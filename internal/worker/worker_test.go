package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iM5LB/dbot/internal/gameserver"
	"github.com/iM5LB/dbot/internal/item"
	"github.com/iM5LB/dbot/internal/purchase"
	"github.com/iM5LB/dbot/internal/user"
)

type mockPurchases struct{ mock.Mock }

func (m *mockPurchases) Create(ctx context.Context, userID, itemID, quantity int, totalCost int64, description string) (*purchase.Purchase, error) {
	args := m.Called(ctx, userID, itemID, quantity, totalCost, description)
	if p := args.Get(0); p != nil {
		return p.(*purchase.Purchase), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPurchases) Claim(ctx context.Context, id int) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockPurchases) MarkFulfilled(ctx context.Context, id int, command string, roleAssigned bool) error {
	return m.Called(ctx, id, command, roleAssigned).Error(0)
}

func (m *mockPurchases) MarkFailed(ctx context.Context, id int, command string, roleAssigned bool) error {
	return m.Called(ctx, id, command, roleAssigned).Error(0)
}

func (m *mockPurchases) Get(ctx context.Context, id int) (*purchase.Purchase, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*purchase.Purchase), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPurchases) ListPending(ctx context.Context) ([]purchase.Purchase, error) {
	args := m.Called(ctx)
	if p := args.Get(0); p != nil {
		return p.([]purchase.Purchase), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockItems struct{ mock.Mock }

func (m *mockItems) Get(ctx context.Context, id int) (*item.Item, error) {
	args := m.Called(ctx, id)
	if i := args.Get(0); i != nil {
		return i.(*item.Item), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockItems) GetAvailable(ctx context.Context, category string) ([]item.Item, error) {
	args := m.Called(ctx, category)
	if i := args.Get(0); i != nil {
		return i.([]item.Item), args.Error(1)
	}
	return nil, args.Error(1)
}

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

type mockRoles struct{ mock.Mock }

func (m *mockRoles) GrantRole(ctx context.Context, discordID, roleID string) error {
	return m.Called(ctx, discordID, roleID).Error(0)
}

type mockRCON struct{ mock.Mock }

func (m *mockRCON) ExecuteCommand(ctx context.Context, command, host string, port int, password string) bool {
	return m.Called(ctx, command, host, port, password).Bool(0)
}

type mockTargeter struct{ mock.Mock }

func (m *mockTargeter) FirstActive(ctx context.Context) (*gameserver.Server, error) {
	args := m.Called(ctx)
	if s := args.Get(0); s != nil {
		return s.(*gameserver.Server), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) NotifyPurchaseFulfilled(ctx context.Context, discordID, itemName string, quantity int) error {
	return m.Called(ctx, discordID, itemName, quantity).Error(0)
}

func (m *mockNotifier) NotifyPurchaseFailed(ctx context.Context, discordID, itemName string) error {
	return m.Called(ctx, discordID, itemName).Error(0)
}

type fixture struct {
	purchases *mockPurchases
	items     *mockItems
	users     *mockUsers
	roles     *mockRoles
	rcon      *mockRCON
	servers   *mockTargeter
	notifier  *mockNotifier
	worker    *Worker
}

func newFixture() *fixture {
	f := &fixture{
		purchases: new(mockPurchases),
		items:     new(mockItems),
		users:     new(mockUsers),
		roles:     new(mockRoles),
		rcon:      new(mockRCON),
		servers:   new(mockTargeter),
		notifier:  new(mockNotifier),
	}
	f.worker = New(f.purchases, f.items, f.users, f.roles, f.rcon, f.servers, f.notifier,
		RCONTarget{Host: "fallback.example.com", Port: 25575, Password: "secret"},
		30*time.Second)
	return f
}

func buyer() *user.User {
	return &user.User{ID: 3, DiscordID: "111", Username: "Steve", MinecraftUUID: "", IsActive: true}
}

func pendingPurchase(itemID int) purchase.Purchase {
	return purchase.Purchase{ID: 11, UserID: 3, ItemID: itemID, Quantity: 1, TotalCost: 50, Status: purchase.StatusPending}
}

func discordItem() *item.Item {
	return &item.Item{ID: 7, Name: "VIP Role", Kind: item.KindDiscord, DiscordRoleID: "role123", IsAvailable: true}
}

func minecraftItem() *item.Item {
	return &item.Item{
		ID:              8,
		Name:            "Diamond Sword",
		Kind:            item.KindMinecraft,
		CommandTemplate: "give {username} diamond_sword {quantity}",
		IsAvailable:     true,
	}
}

func bothItem() *item.Item {
	return &item.Item{
		ID:              9,
		Name:            "VIP Bundle",
		Kind:            item.KindBoth,
		DiscordRoleID:   "role123",
		CommandTemplate: "lp user {username} parent add vip",
		IsAvailable:     true,
	}
}

func registeredServer() *gameserver.Server {
	return &gameserver.Server{
		ID: 1, Name: "survival",
		Host: "mc.example.com", Port: 25565,
		RCONHost: "mc.example.com", RCONPort: 25575, RCONPassword: "hunter2",
		IsActive: true,
	}
}

func TestProcess_DiscordItemFulfilled(t *testing.T) {
	f := newFixture()
	p := pendingPurchase(7)

	f.purchases.On("Claim", mock.Anything, 11).Return(true, nil)
	f.users.On("FindByID", mock.Anything, 3).Return(buyer(), nil)
	f.items.On("Get", mock.Anything, 7).Return(discordItem(), nil)
	f.roles.On("GrantRole", mock.Anything, "111", "role123").Return(nil)
	f.purchases.On("MarkFulfilled", mock.Anything, 11, "", true).Return(nil)
	f.notifier.On("NotifyPurchaseFulfilled", mock.Anything, "111", "VIP Role", 1).Return(nil)

	require.NoError(t, f.worker.Process(context.Background(), p))

	f.purchases.AssertExpectations(t)
	f.rcon.AssertNotCalled(t, "ExecuteCommand", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_MinecraftItemFulfilled(t *testing.T) {
	f := newFixture()
	p := pendingPurchase(8)

	f.purchases.On("Claim", mock.Anything, 11).Return(true, nil)
	f.users.On("FindByID", mock.Anything, 3).Return(buyer(), nil)
	f.items.On("Get", mock.Anything, 8).Return(minecraftItem(), nil)
	f.servers.On("FirstActive", mock.Anything).Return(registeredServer(), nil)
	f.rcon.On("ExecuteCommand", mock.Anything, "give Steve diamond_sword 1", "mc.example.com", 25575, "hunter2").
		Return(true)
	f.purchases.On("MarkFulfilled", mock.Anything, 11, "give Steve diamond_sword 1", false).Return(nil)
	f.notifier.On("NotifyPurchaseFulfilled", mock.Anything, "111", "Diamond Sword", 1).Return(nil)

	require.NoError(t, f.worker.Process(context.Background(), p))

	f.purchases.AssertExpectations(t)
	f.roles.AssertNotCalled(t, "GrantRole", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_ClaimLostLeavesPurchaseAlone(t *testing.T) {
	f := newFixture()
	p := pendingPurchase(7)

	f.purchases.On("Claim", mock.Anything, 11).Return(false, nil)

	require.NoError(t, f.worker.Process(context.Background(), p))

	f.users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	f.purchases.AssertNotCalled(t, "MarkFulfilled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.purchases.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_PartialFailureKeepsGrantedRole(t *testing.T) {
	f := newFixture()
	p := pendingPurchase(9)

	f.purchases.On("Claim", mock.Anything, 11).Return(true, nil)
	f.users.On("FindByID", mock.Anything, 3).Return(buyer(), nil)
	f.items.On("Get", mock.Anything, 9).Return(bothItem(), nil)
	f.roles.On("GrantRole", mock.Anything, "111", "role123").Return(nil)
	f.servers.On("FirstActive", mock.Anything).Return(registeredServer(), nil)
	f.rcon.On("ExecuteCommand", mock.Anything, "lp user Steve parent add vip", "mc.example.com", 25575, "hunter2").
		Return(false)

	// The granted role and the resolved command survive on the failed
	// record. Coins are not touched: refunds are a separate admin
	// action.
	f.purchases.On("MarkFailed", mock.Anything, 11, "lp user Steve parent add vip", true).Return(nil)
	f.notifier.On("NotifyPurchaseFailed", mock.Anything, "111", "VIP Bundle").Return(nil)

	require.NoError(t, f.worker.Process(context.Background(), p))
	f.purchases.AssertExpectations(t)
}

func TestProcess_RoleFailureStillRunsCommand(t *testing.T) {
	f := newFixture()
	p := pendingPurchase(9)

	f.purchases.On("Claim", mock.Anything, 11).Return(true, nil)
	f.users.On("FindByID", mock.Anything, 3).Return(buyer(), nil)
	f.items.On("Get", mock.Anything, 9).Return(bothItem(), nil)
	f.roles.On("GrantRole", mock.Anything, "111", "role123").Return(errors.New("missing permissions"))
	f.servers.On("FirstActive", mock.Anything).Return(registeredServer(), nil)
	f.rcon.On("ExecuteCommand", mock.Anything, "lp user Steve parent add vip", "mc.example.com", 25575, "hunter2").
		Return(true)
	f.purchases.On("MarkFailed", mock.Anything, 11, "lp user Steve parent add vip", false).Return(nil)
	f.notifier.On("NotifyPurchaseFailed", mock.Anything, "111", "VIP Bundle").Return(nil)

	require.NoError(t, f.worker.Process(context.Background(), p))

	f.rcon.AssertExpectations(t)
	f.purchases.AssertExpectations(t)
}

func TestProcess_MissingItemFails(t *testing.T) {
	f := newFixture()
	p := pendingPurchase(99)

	f.purchases.On("Claim", mock.Anything, 11).Return(true, nil)
	f.users.On("FindByID", mock.Anything, 3).Return(buyer(), nil)
	f.items.On("Get", mock.Anything, 99).Return(nil, item.ErrItemNotFound)
	f.purchases.On("MarkFailed", mock.Anything, 11, "", false).Return(nil)
	f.notifier.On("NotifyPurchaseFailed", mock.Anything, "111", "").Return(nil)

	require.NoError(t, f.worker.Process(context.Background(), p))
	f.purchases.AssertExpectations(t)
}

func TestProcess_FallbackRCONTarget(t *testing.T) {
	f := newFixture()
	p := pendingPurchase(8)

	f.purchases.On("Claim", mock.Anything, 11).Return(true, nil)
	f.users.On("FindByID", mock.Anything, 3).Return(buyer(), nil)
	f.items.On("Get", mock.Anything, 8).Return(minecraftItem(), nil)
	f.servers.On("FirstActive", mock.Anything).Return(nil, gameserver.ErrServerNotFound)
	f.rcon.On("ExecuteCommand", mock.Anything, "give Steve diamond_sword 1", "fallback.example.com", 25575, "secret").
		Return(true)
	f.purchases.On("MarkFulfilled", mock.Anything, 11, "give Steve diamond_sword 1", false).Return(nil)
	f.notifier.On("NotifyPurchaseFulfilled", mock.Anything, "111", "Diamond Sword", 1).Return(nil)

	require.NoError(t, f.worker.Process(context.Background(), p))
	f.rcon.AssertExpectations(t)
}

func TestProcess_LinkedAccountUsedInCommand(t *testing.T) {
	f := newFixture()
	p := pendingPurchase(8)

	linked := buyer()
	linked.MinecraftUUID = "SteveMC"

	f.purchases.On("Claim", mock.Anything, 11).Return(true, nil)
	f.users.On("FindByID", mock.Anything, 3).Return(linked, nil)
	f.items.On("Get", mock.Anything, 8).Return(minecraftItem(), nil)
	f.servers.On("FirstActive", mock.Anything).Return(registeredServer(), nil)
	f.rcon.On("ExecuteCommand", mock.Anything, "give SteveMC diamond_sword 1", "mc.example.com", 25575, "hunter2").
		Return(true)
	f.purchases.On("MarkFulfilled", mock.Anything, 11, "give SteveMC diamond_sword 1", false).Return(nil)
	f.notifier.On("NotifyPurchaseFulfilled", mock.Anything, "111", "Diamond Sword", 1).Return(nil)

	require.NoError(t, f.worker.Process(context.Background(), p))
	f.rcon.AssertExpectations(t)
}

func TestProcess_NotificationFailureDoesNotChangeOutcome(t *testing.T) {
	f := newFixture()
	p := pendingPurchase(7)

	f.purchases.On("Claim", mock.Anything, 11).Return(true, nil)
	f.users.On("FindByID", mock.Anything, 3).Return(buyer(), nil)
	f.items.On("Get", mock.Anything, 7).Return(discordItem(), nil)
	f.roles.On("GrantRole", mock.Anything, "111", "role123").Return(nil)
	f.purchases.On("MarkFulfilled", mock.Anything, 11, "", true).Return(nil)
	f.notifier.On("NotifyPurchaseFulfilled", mock.Anything, "111", "VIP Role", 1).
		Return(errors.New("dms closed"))

	require.NoError(t, f.worker.Process(context.Background(), p))
	f.purchases.AssertExpectations(t)
}

func TestSweep_IsolatesFailures(t *testing.T) {
	f := newFixture()

	first := pendingPurchase(7)
	second := pendingPurchase(7)
	second.ID = 12

	f.purchases.On("ListPending", mock.Anything).Return([]purchase.Purchase{first, second}, nil)
	f.purchases.On("Claim", mock.Anything, 11).Return(false, errors.New("db down"))
	f.purchases.On("Claim", mock.Anything, 12).Return(true, nil)
	f.users.On("FindByID", mock.Anything, 3).Return(buyer(), nil)
	f.items.On("Get", mock.Anything, 7).Return(discordItem(), nil)
	f.roles.On("GrantRole", mock.Anything, "111", "role123").Return(nil)
	f.purchases.On("MarkFulfilled", mock.Anything, 12, "", true).Return(nil)
	f.notifier.On("NotifyPurchaseFulfilled", mock.Anything, "111", "VIP Role", 1).Return(nil)

	f.worker.Sweep(context.Background())

	f.purchases.AssertCalled(t, "MarkFulfilled", mock.Anything, 12, "", true)
}

func TestProcessByID_UsesClaim(t *testing.T) {
	f := newFixture()
	p := pendingPurchase(7)

	f.purchases.On("Get", mock.Anything, 11).Return(&p, nil)
	f.purchases.On("Claim", mock.Anything, 11).Return(false, nil)

	require.NoError(t, f.worker.ProcessByID(context.Background(), 11))
	f.purchases.AssertNotCalled(t, "MarkFulfilled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// A manual fulfill of a settled purchase must report that nothing was
// done instead of silently succeeding.
func TestProcessByID_NonPendingRejected(t *testing.T) {
	for _, status := range []string{
		purchase.StatusProcessing,
		purchase.StatusFulfilled,
		purchase.StatusFailed,
		purchase.StatusRefunded,
	} {
		f := newFixture()
		p := pendingPurchase(7)
		p.Status = status

		f.purchases.On("Get", mock.Anything, 11).Return(&p, nil)

		err := f.worker.ProcessByID(context.Background(), 11)
		require.ErrorIs(t, err, purchase.ErrNotPending, "status %s", status)
		f.purchases.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything)
	}
}
