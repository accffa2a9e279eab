package settings

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/jmoiron/sqlx"
)

// Well-known keys. Everything is stored as text and parsed on read.
const (
	KeyCoinsPerMessage = "coins_per_message"
	KeyMessageCooldown = "message_cooldown"
	KeyMaxDailyCoins   = "max_daily_coins"
)

// Defaults seed fresh installs and back ResetDefaults.
var Defaults = map[string]string{
	KeyCoinsPerMessage: "1",
	KeyMessageCooldown: "60",
	KeyMaxDailyCoins:   "100",
}

var (
	ErrUnknownKey   = errors.New("unknown setting key")
	ErrInvalidValue = errors.New("invalid setting value")
)

type Setting struct {
	Key       string `db:"key" json:"key"`
	Value     string `db:"value" json:"value"`
	UpdatedAt string `db:"updated_at" json:"updated_at"`
}

// EarnRules is the parsed earn configuration the Discord listener uses.
type EarnRules struct {
	CoinsPerMessage int64
	CooldownSeconds int64
	MaxDailyCoins   int64
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the stored value, falling back to the default when the
// key has never been written.
func (r *Repository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.GetContext(ctx, &value,
		`SELECT value FROM bot_config WHERE key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if def, ok := Defaults[key]; ok {
				return def, nil
			}
			return "", ErrUnknownKey
		}
		return "", err
	}
	return value, nil
}

func (r *Repository) Set(ctx context.Context, key, value string) error {
	if err := Validate(key, value); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bot_config (key, value, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	return err
}

func (r *Repository) BulkSet(ctx context.Context, values map[string]string) error {
	for key, value := range values {
		if err := Validate(key, value); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, value := range values {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO bot_config (key, value, updated_at)
			 VALUES ($1, $2, NOW())
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
			key, value)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) ResetDefaults(ctx context.Context) error {
	return r.BulkSet(ctx, Defaults)
}

// All returns every known key with its effective value, stored or
// default.
func (r *Repository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT key, value FROM bot_config`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string, len(Defaults))
	for key, def := range Defaults {
		out[key] = def
	}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}

// EarnRules reads the earn configuration in one shot.
func (r *Repository) EarnRules(ctx context.Context) (*EarnRules, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}

	rules := &EarnRules{}
	rules.CoinsPerMessage, err = strconv.ParseInt(all[KeyCoinsPerMessage], 10, 64)
	if err != nil {
		return nil, ErrInvalidValue
	}
	rules.CooldownSeconds, err = strconv.ParseInt(all[KeyMessageCooldown], 10, 64)
	if err != nil {
		return nil, ErrInvalidValue
	}
	rules.MaxDailyCoins, err = strconv.ParseInt(all[KeyMaxDailyCoins], 10, 64)
	if err != nil {
		return nil, ErrInvalidValue
	}
	return rules, nil
}

// Validate rejects unknown keys and values the bot could not act on.
func Validate(key, value string) error {
	if _, ok := Defaults[key]; !ok {
		return ErrUnknownKey
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return ErrInvalidValue
	}
	return nil
}
