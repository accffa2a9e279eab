package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/iM5LB/dbot/internal/gameserver"
	"github.com/iM5LB/dbot/internal/gift"
	"github.com/iM5LB/dbot/internal/item"
	"github.com/iM5LB/dbot/internal/logger"
	"github.com/iM5LB/dbot/internal/minecraft"
	"github.com/iM5LB/dbot/internal/purchase"
	"github.com/iM5LB/dbot/internal/user"
)

// GiftSender is the command-facing slice of the gift store.
type GiftSender interface {
	Send(ctx context.Context, senderID, recipientID int, amount int64, message string) (*gift.Gift, error)
}

// ServerLister is the command-facing slice of the server registry.
type ServerLister interface {
	ListActive(ctx context.Context) ([]gameserver.Server, error)
}

// Commands implements the chat commands: balance, shop, buy, gift,
// status, help.
type Commands struct {
	prefix  string
	users   user.Store
	items   item.Store
	buy     purchase.Service
	gifts   GiftSender
	servers ServerLister
	querier minecraft.StatusQuerier
}

func NewCommands(prefix string, users user.Store, items item.Store, buy purchase.Service, gifts GiftSender, servers ServerLister, querier minecraft.StatusQuerier) *Commands {
	return &Commands{
		prefix:  prefix,
		users:   users,
		items:   items,
		buy:     buy,
		gifts:   gifts,
		servers: servers,
		querier: querier,
	}
}

// RegisterCommandHandler attaches the command dispatcher to the
// session.
func (b *Bot) RegisterCommandHandler(c *Commands) {
	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author.Bot || !hasPrefix(m.Content, c.prefix) {
			return
		}

		reply := c.Dispatch(context.Background(), m.Author.ID, m.Author.Username, m.Content)
		if reply == "" {
			return
		}
		if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
			logger.WithError(err).Error("Sending command reply failed")
		}
	})
}

// Dispatch parses one command invocation and returns the reply text.
// An empty reply means the message was not a known command.
func (c *Commands) Dispatch(ctx context.Context, discordID, username, content string) string {
	fields := strings.Fields(strings.TrimPrefix(content, c.prefix))
	if len(fields) == 0 {
		return ""
	}

	switch strings.ToLower(fields[0]) {
	case "balance", "bal":
		return c.balance(ctx, discordID, username)
	case "shop":
		return c.shop(ctx, fields[1:])
	case "buy":
		return c.buyItem(ctx, discordID, username, fields[1:])
	case "gift":
		return c.sendGift(ctx, discordID, username, fields[1:])
	case "status":
		return c.status(ctx)
	case "help":
		return c.help()
	}
	return ""
}

func (c *Commands) balance(ctx context.Context, discordID, username string) string {
	u, err := c.users.GetOrCreate(ctx, discordID, username)
	if err != nil {
		logger.WithError(err).Error("Balance lookup failed")
		return "Something went wrong, try again later."
	}
	return fmt.Sprintf("You have **%d** coins.", u.Coins)
}

const shopPageSize = 10

// shop lists available items, optionally filtered by category. A bare
// number argument is a page, so both `!shop 2` and `!shop ranks 2` work.
func (c *Commands) shop(ctx context.Context, args []string) string {
	category := ""
	page := 1
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			page = n
		} else {
			category = args[0]
			if len(args) > 1 {
				if n, err := strconv.Atoi(args[1]); err == nil {
					page = n
				}
			}
		}
	}
	if page < 1 {
		page = 1
	}

	items, err := c.items.GetAvailable(ctx, category)
	if err != nil {
		logger.WithError(err).Error("Shop listing failed")
		return "Something went wrong, try again later."
	}
	if len(items) == 0 {
		if category != "" {
			return fmt.Sprintf("No items in category **%s**.", category)
		}
		return "The shop is empty right now."
	}

	pages := (len(items) + shopPageSize - 1) / shopPageSize
	if page > pages {
		return fmt.Sprintf("There is no page %d; the shop has %d.", page, pages)
	}
	start := (page - 1) * shopPageSize
	end := start + shopPageSize
	if end > len(items) {
		end = len(items)
	}

	var sb strings.Builder
	if category != "" {
		fmt.Fprintf(&sb, "**Shop — %s** (page %d/%d)\n", category, page, pages)
	} else {
		fmt.Fprintf(&sb, "**Shop** (page %d/%d)\n", page, pages)
	}
	for _, i := range items[start:end] {
		fmt.Fprintf(&sb, "`%d` %s — %d coins\n", i.ID, i.Name, i.Price)
	}
	fmt.Fprintf(&sb, "Buy with `%sbuy <id> [quantity]`", c.prefix)
	return sb.String()
}

func (c *Commands) buyItem(ctx context.Context, discordID, username string, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("Usage: `%sbuy <item id> [quantity]`", c.prefix)
	}

	itemID, err := strconv.Atoi(args[0])
	if err != nil {
		return "Item id must be a number."
	}
	quantity := 1
	if len(args) > 1 {
		quantity, err = strconv.Atoi(args[1])
		if err != nil {
			return "Quantity must be a number."
		}
	}

	p, balance, err := c.buy.Buy(ctx, discordID, username, itemID, quantity)
	switch {
	case errors.Is(err, purchase.ErrInsufficientFunds):
		return fmt.Sprintf("Not enough coins. You have **%d**.", balance)
	case errors.Is(err, purchase.ErrItemUnavailable):
		return "That item is not available."
	case errors.Is(err, purchase.ErrInvalidQuantity):
		return "Quantity must be at least 1."
	case errors.Is(err, purchase.ErrUserInactive):
		return "Your account is suspended."
	case err != nil:
		logger.WithError(err).Error("Buy command failed")
		return "Something went wrong, try again later."
	}

	return fmt.Sprintf("Purchase #%d placed for **%d** coins. It will be delivered shortly. Balance: **%d**.",
		p.ID, p.TotalCost, balance)
}

func (c *Commands) sendGift(ctx context.Context, discordID, username string, args []string) string {
	if len(args) < 2 {
		return fmt.Sprintf("Usage: `%sgift @user <amount> [message]`", c.prefix)
	}

	recipientID := parseMention(args[0])
	if recipientID == "" {
		return "Mention the recipient, like `@user`."
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return "Amount must be a positive number."
	}
	message := strings.Join(args[2:], " ")

	sender, err := c.users.GetOrCreate(ctx, discordID, username)
	if err != nil {
		logger.WithError(err).Error("Gift sender lookup failed")
		return "Something went wrong, try again later."
	}
	recipient, err := c.users.FindByDiscordID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return "That user has no account yet; they earn one by chatting."
		}
		logger.WithError(err).Error("Gift recipient lookup failed")
		return "Something went wrong, try again later."
	}

	_, err = c.gifts.Send(ctx, sender.ID, recipient.ID, amount, message)
	switch {
	case errors.Is(err, gift.ErrSelfGift):
		return "You cannot gift coins to yourself."
	case errors.Is(err, gift.ErrInvalidAmount):
		return "Amount must be a positive number."
	case err != nil:
		if strings.Contains(err.Error(), "insufficient") {
			return "Not enough coins for that gift."
		}
		logger.WithError(err).Error("Gift command failed")
		return "Something went wrong, try again later."
	}

	return fmt.Sprintf("Sent **%d** coins to <@%s>.", amount, recipientID)
}

func (c *Commands) status(ctx context.Context) string {
	servers, err := c.servers.ListActive(ctx)
	if err != nil {
		logger.WithError(err).Error("Status command failed")
		return "Something went wrong, try again later."
	}
	if len(servers) == 0 {
		return "No servers configured."
	}

	var sb strings.Builder
	for _, s := range servers {
		st := c.querier.QueryStatus(ctx, s.Host, s.Port)
		if st.Online {
			fmt.Fprintf(&sb, ":green_circle: **%s** — %d/%d players, %s\n",
				s.Name, st.PlayersOnline, st.MaxPlayers, st.Version)
		} else {
			fmt.Fprintf(&sb, ":red_circle: **%s** — offline\n", s.Name)
		}
	}
	return sb.String()
}

func (c *Commands) help() string {
	p := c.prefix
	return strings.Join([]string{
		"**Commands**",
		fmt.Sprintf("`%sbalance` — your coin balance", p),
		fmt.Sprintf("`%sshop [category] [page]` — list items for sale", p),
		fmt.Sprintf("`%sbuy <id> [quantity]` — buy an item", p),
		fmt.Sprintf("`%sgift @user <amount> [message]` — send coins", p),
		fmt.Sprintf("`%sstatus` — Minecraft server status", p),
	}, "\n")
}

// parseMention extracts the user id from <@123> or <@!123>.
func parseMention(s string) string {
	if !strings.HasPrefix(s, "<@") || !strings.HasSuffix(s, ">") {
		return ""
	}
	id := strings.TrimSuffix(strings.TrimPrefix(s, "<@"), ">")
	id = strings.TrimPrefix(id, "!")
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return ""
	}
	return id
}
