package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/iM5LB/dbot/internal/ledger"
	"github.com/iM5LB/dbot/internal/logger"
	"github.com/iM5LB/dbot/internal/metrics"
	"github.com/iM5LB/dbot/internal/settings"
	"github.com/iM5LB/dbot/internal/user"
)

// RuleSource provides the current earn configuration.
type RuleSource interface {
	EarnRules(ctx context.Context) (*settings.EarnRules, error)
}

// Earner turns chat messages into coins. Cooldown and daily cap are
// derived from the ledger itself, so they hold across restarts and
// across multiple bot instances.
type Earner struct {
	users  user.Store
	ledger ledger.Poster
	rules  RuleSource
}

func NewEarner(users user.Store, ledgerRepo ledger.Poster, rules RuleSource) *Earner {
	return &Earner{users: users, ledger: ledgerRepo, rules: rules}
}

// Award credits the author for one message if the earn rules allow it.
// Returns the amount credited, zero when the message earned nothing.
func (e *Earner) Award(ctx context.Context, discordID, username string) (int64, error) {
	rules, err := e.rules.EarnRules(ctx)
	if err != nil {
		return 0, err
	}
	if rules.CoinsPerMessage <= 0 {
		return 0, nil
	}

	u, err := e.users.GetOrCreate(ctx, discordID, username)
	if err != nil {
		return 0, err
	}
	if !u.IsActive {
		return 0, nil
	}

	last, err := e.ledger.LastEntryAt(ctx, u.ID, ledger.TypeEarn)
	if err != nil {
		return 0, err
	}
	if !last.IsZero() && time.Since(last) < time.Duration(rules.CooldownSeconds)*time.Second {
		return 0, nil
	}

	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	earnedToday, err := e.ledger.SumEarnedSince(ctx, u.ID, midnight, ledger.TypeEarn)
	if err != nil {
		return 0, err
	}
	if earnedToday >= rules.MaxDailyCoins {
		return 0, nil
	}

	amount := rules.CoinsPerMessage
	if remaining := rules.MaxDailyCoins - earnedToday; amount > remaining {
		amount = remaining
	}

	if _, err := e.ledger.Post(ctx, u.ID, amount, ledger.TypeEarn, "Chat activity reward", ""); err != nil {
		return 0, err
	}

	metrics.RecordCoinsEarned(amount)
	return amount, nil
}

// RegisterEarnHandler attaches the earn listener to the session. Bot
// messages and command invocations never earn.
func (b *Bot) RegisterEarnHandler(earner *Earner) {
	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author.Bot {
			return
		}
		if len(m.Content) == 0 || hasPrefix(m.Content, b.prefix) {
			return
		}

		if _, err := earner.Award(context.Background(), m.Author.ID, m.Author.Username); err != nil {
			logger.WithError(err).Error(fmt.Sprintf("Awarding coins to %s failed", m.Author.ID))
		}
	})
}

func hasPrefix(content, prefix string) bool {
	return prefix != "" && len(content) >= len(prefix) && content[:len(prefix)] == prefix
}
