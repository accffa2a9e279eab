// Package worker runs the purchase fulfillment loop. Purchases are
// paid for up front and sit in pending until a sweep claims them,
// performs the side effects their item requires and settles them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iM5LB/dbot/internal/discord"
	"github.com/iM5LB/dbot/internal/gameserver"
	"github.com/iM5LB/dbot/internal/item"
	"github.com/iM5LB/dbot/internal/logger"
	"github.com/iM5LB/dbot/internal/metrics"
	"github.com/iM5LB/dbot/internal/minecraft"
	"github.com/iM5LB/dbot/internal/purchase"
	"github.com/iM5LB/dbot/internal/user"
)

// Notifier tells buyers how their purchase ended. Delivery is best
// effort; a notification failure never changes a purchase outcome.
type Notifier interface {
	NotifyPurchaseFulfilled(ctx context.Context, discordID, itemName string, quantity int) error
	NotifyPurchaseFailed(ctx context.Context, discordID, itemName string) error
}

// RCONTarget is the fallback command endpoint used when no server is
// registered in the database.
type RCONTarget struct {
	Host     string
	Port     int
	Password string
}

type Worker struct {
	purchases purchase.Store
	items     item.Store
	users     user.Store
	roles     discord.RoleGranter
	rcon      minecraft.Executor
	servers   gameserver.Targeter
	notifier  Notifier
	fallback  RCONTarget
	interval  time.Duration
}

func New(purchases purchase.Store, items item.Store, users user.Store, roles discord.RoleGranter, rcon minecraft.Executor, servers gameserver.Targeter, notifier Notifier, fallback RCONTarget, interval time.Duration) *Worker {
	return &Worker{
		purchases: purchases,
		items:     items,
		users:     users,
		roles:     roles,
		rcon:      rcon,
		servers:   servers,
		notifier:  notifier,
		fallback:  fallback,
		interval:  interval,
	}
}

// Start runs the sweep loop until ctx is cancelled. The first sweep
// happens immediately so queued purchases are not left waiting one
// whole interval after a restart.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		logger.Infof("Fulfillment worker started, interval %s", w.interval)
		w.Sweep(ctx)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("Fulfillment worker stopped")
				return
			case <-ticker.C:
				w.Sweep(ctx)
			}
		}
	}()
}

// Sweep processes every pending purchase once. A failure on one
// purchase never stops the rest of the batch.
func (w *Worker) Sweep(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.FulfillmentSweepDuration.Observe(time.Since(start).Seconds())
	}()

	pending, err := w.purchases.ListPending(ctx)
	if err != nil {
		logger.WithError(err).Error("Sweep: listing pending purchases failed")
		return
	}

	for _, p := range pending {
		if err := w.Process(ctx, p); err != nil {
			logger.WithError(err).Error(fmt.Sprintf("Sweep: purchase %d failed", p.ID))
			continue
		}
	}
}

// ProcessByID fulfills one specific purchase, for the admin manual
// path. Unlike the sweep, a purchase that is not pending is an error
// here: the caller asked for this exact purchase and needs to know
// nothing happened. The claim inside Process still guards against a
// concurrent sweep taking it between the check and the act.
func (w *Worker) ProcessByID(ctx context.Context, id int) error {
	p, err := w.purchases.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != purchase.StatusPending {
		return purchase.ErrNotPending
	}
	return w.Process(ctx, *p)
}

// Process claims and fulfills one purchase. Only a claimed purchase is
// acted on: losing the claim race means another instance owns it and
// this call does nothing. Side effects that succeeded are recorded even
// when the purchase ends up failed.
func (w *Worker) Process(ctx context.Context, p purchase.Purchase) (err error) {
	claimed, err := w.purchases.Claim(ctx, p.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	// A panic past the claim must not strand the purchase in
	// processing.
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Purchase %d: panic during fulfillment: %v", p.ID, r)
			if failErr := w.purchases.MarkFailed(ctx, p.ID, "", false); failErr != nil {
				logger.WithError(failErr).Error(fmt.Sprintf("Purchase %d: marking failed after panic", p.ID))
			}
			metrics.RecordPurchase(purchase.StatusFailed)
			err = errors.New("panic during fulfillment")
		}
	}()

	u, lookupErr := w.users.FindByID(ctx, p.UserID)
	if lookupErr != nil {
		return w.fail(ctx, p, "", false, "", "")
	}
	i, lookupErr := w.items.Get(ctx, p.ItemID)
	if lookupErr != nil {
		return w.fail(ctx, p, "", false, u.DiscordID, "")
	}

	roleGranted := false
	roleOK := true
	if i.Kind.RequiresRole() {
		if grantErr := w.roles.GrantRole(ctx, u.DiscordID, i.DiscordRoleID); grantErr != nil {
			logger.WithError(grantErr).Error(fmt.Sprintf("Purchase %d: role grant failed", p.ID))
			roleOK = false
		} else {
			roleGranted = true
		}
	}

	command := ""
	commandOK := true
	if i.Kind.RequiresCommand() {
		command = i.ResolveCommand(item.CommandTarget{
			Username:      u.Username,
			DiscordID:     u.DiscordID,
			MinecraftUUID: u.MinecraftUUID,
		}, p.Quantity)

		target := w.commandTarget(ctx)
		commandOK = w.rcon.ExecuteCommand(ctx, command, target.Host, target.Port, target.Password)
	}

	if !roleOK || !commandOK {
		return w.fail(ctx, p, command, roleGranted, u.DiscordID, i.Name)
	}

	if markErr := w.purchases.MarkFulfilled(ctx, p.ID, command, roleGranted); markErr != nil {
		return markErr
	}
	metrics.RecordPurchase(purchase.StatusFulfilled)
	logger.Infof("Purchase %d fulfilled for user %d (%s)", p.ID, u.ID, i.Name)

	if w.notifier != nil {
		if notifyErr := w.notifier.NotifyPurchaseFulfilled(ctx, u.DiscordID, i.Name, p.Quantity); notifyErr != nil {
			logger.WithError(notifyErr).Error(fmt.Sprintf("Purchase %d: fulfillment notice failed", p.ID))
		}
	}
	return nil
}

// fail settles a claimed purchase as failed, keeping whatever side
// effects already happened on the record. Coins stay debited; refunds
// are an explicit admin action.
func (w *Worker) fail(ctx context.Context, p purchase.Purchase, command string, roleGranted bool, discordID, itemName string) error {
	if err := w.purchases.MarkFailed(ctx, p.ID, command, roleGranted); err != nil {
		return err
	}
	metrics.RecordPurchase(purchase.StatusFailed)
	logger.Errorf("Purchase %d failed (role_granted=%v, command=%q)", p.ID, roleGranted, command)

	if w.notifier != nil && discordID != "" {
		if notifyErr := w.notifier.NotifyPurchaseFailed(ctx, discordID, itemName); notifyErr != nil {
			logger.WithError(notifyErr).Error(fmt.Sprintf("Purchase %d: failure notice failed", p.ID))
		}
	}
	return nil
}

// commandTarget picks the RCON endpoint: the first active registered
// server, or the configured fallback when none exists.
func (w *Worker) commandTarget(ctx context.Context) RCONTarget {
	if w.servers != nil {
		s, err := w.servers.FirstActive(ctx)
		if err == nil {
			return RCONTarget{Host: s.RCONHost, Port: s.RCONPort, Password: s.RCONPassword}
		}
		if !errors.Is(err, gameserver.ErrServerNotFound) {
			logger.WithError(err).Error("Looking up command target failed, using fallback")
		}
	}
	return w.fallback
}
