package item

import (
	"strconv"
	"strings"
	"time"
)

// Kind says which side effects fulfilling an item requires.
type Kind string

const (
	KindDiscord   Kind = "discord"
	KindMinecraft Kind = "minecraft"
	KindBoth      Kind = "both"
)

func (k Kind) Valid() bool {
	switch k {
	case KindDiscord, KindMinecraft, KindBoth:
		return true
	}
	return false
}

func (k Kind) RequiresRole() bool {
	return k == KindDiscord || k == KindBoth
}

func (k Kind) RequiresCommand() bool {
	return k == KindMinecraft || k == KindBoth
}

type Item struct {
	ID              int       `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Description     string    `db:"description" json:"description"`
	Price           int64     `db:"price" json:"price"`
	Category        string    `db:"category" json:"category"`
	Kind            Kind      `db:"item_type" json:"item_type"`
	DiscordRoleID   string    `db:"discord_role_id" json:"discord_role_id"`
	CommandTemplate string    `db:"minecraft_command_template" json:"minecraft_command_template"`
	ImageURL        string    `db:"image_url" json:"image_url"`
	IsAvailable     bool      `db:"is_available" json:"is_available"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// CommandTarget is the minimum the template substitution needs to know
// about the buyer.
type CommandTarget struct {
	Username      string
	DiscordID     string
	MinecraftUUID string
}

// ResolveCommand substitutes the template placeholders. {username} prefers
// the linked Minecraft account and falls back to the display name, same as
// the in-game whitelist expects.
func (i *Item) ResolveCommand(target CommandTarget, quantity int) string {
	name := target.MinecraftUUID
	if name == "" {
		name = target.Username
	}

	cmd := i.CommandTemplate
	cmd = strings.ReplaceAll(cmd, "{username}", name)
	cmd = strings.ReplaceAll(cmd, "{discord_id}", target.DiscordID)
	cmd = strings.ReplaceAll(cmd, "{minecraft_uuid}", name)
	cmd = strings.ReplaceAll(cmd, "{quantity}", strconv.Itoa(quantity))
	return cmd
}
