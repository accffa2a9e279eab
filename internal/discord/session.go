// Package discord owns everything that talks to the Discord gateway:
// the bot session, role grants, direct messages, the chat-earn
// listener and the prefix commands.
package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/iM5LB/dbot/internal/logger"
)

var ErrMemberNotFound = errors.New("member not found in any guild")

const embedColor = 0x5865F2

// Bot wraps one gateway session.
type Bot struct {
	session *discordgo.Session
	prefix  string
}

func NewBot(token, prefix string) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	return &Bot{session: session, prefix: prefix}, nil
}

// Open connects to the gateway. Handlers must be registered before.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening gateway: %w", err)
	}
	logger.Info("Discord gateway connected")
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

// GrantRole adds the role to the member in whichever guild they are
// found. The bot is expected to serve a single community, but scanning
// all guilds keeps multi-guild installs working.
func (b *Bot) GrantRole(ctx context.Context, discordID, roleID string) error {
	for _, guild := range b.session.State.Guilds {
		if _, err := b.session.GuildMember(guild.ID, discordID); err != nil {
			continue
		}
		if err := b.session.GuildMemberRoleAdd(guild.ID, discordID, roleID); err != nil {
			return fmt.Errorf("adding role %s in guild %s: %w", roleID, guild.ID, err)
		}
		logger.Infof("Role %s granted to %s in guild %s", roleID, discordID, guild.ID)
		return nil
	}
	return ErrMemberNotFound
}

// DirectMessage sends an embed to the user's DM channel.
func (b *Bot) DirectMessage(ctx context.Context, discordID, title, body string) error {
	channel, err := b.session.UserChannelCreate(discordID)
	if err != nil {
		return fmt.Errorf("opening DM channel: %w", err)
	}

	_, err = b.session.ChannelMessageSendEmbed(channel.ID, &discordgo.MessageEmbed{
		Title:       title,
		Description: body,
		Color:       embedColor,
	})
	if err != nil {
		return fmt.Errorf("sending DM: %w", err)
	}
	return nil
}
