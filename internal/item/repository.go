package item

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrItemNotFound = errors.New("item not found")

const itemColumns = `id, name, description, price, category, item_type, discord_role_id,
	 minecraft_command_template, image_url, is_available, created_at, updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, id int) (*Item, error) {
	i := &Item{}
	err := r.db.GetContext(ctx, i, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return i, nil
}

// GetAvailable lists purchasable items, cheapest first. The id tiebreak
// keeps the order stable for shop pagination.
func (r *Repository) GetAvailable(ctx context.Context, category string) ([]Item, error) {
	var items []Item
	var err error
	if category != "" {
		err = r.db.SelectContext(ctx, &items,
			`SELECT `+itemColumns+` FROM items
			 WHERE is_available = TRUE AND category = $1
			 ORDER BY price ASC, id ASC`, category)
	} else {
		err = r.db.SelectContext(ctx, &items,
			`SELECT `+itemColumns+` FROM items
			 WHERE is_available = TRUE
			 ORDER BY price ASC, id ASC`)
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Item, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM items`); err != nil {
		return nil, 0, err
	}

	var items []Item
	err := r.db.SelectContext(ctx, &items,
		`SELECT `+itemColumns+` FROM items ORDER BY id ASC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *Repository) Create(ctx context.Context, i *Item) error {
	return r.db.QueryRowxContext(ctx,
		`INSERT INTO items (name, description, price, category, item_type, discord_role_id,
		 minecraft_command_template, image_url, is_available)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		i.Name, i.Description, i.Price, i.Category, i.Kind, i.DiscordRoleID,
		i.CommandTemplate, i.ImageURL, i.IsAvailable,
	).Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt)
}

// Update edits the definition only. Existing purchases keep the
// total_cost they were created with.
func (r *Repository) Update(ctx context.Context, i *Item) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE items
		 SET name = $1, description = $2, price = $3, category = $4, item_type = $5,
		     discord_role_id = $6, minecraft_command_template = $7, image_url = $8,
		     is_available = $9, updated_at = NOW()
		 WHERE id = $10`,
		i.Name, i.Description, i.Price, i.Category, i.Kind, i.DiscordRoleID,
		i.CommandTemplate, i.ImageURL, i.IsAvailable, i.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *Repository) Deactivate(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE items SET is_available = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

// HasPurchases reports whether any purchase references the item. Items
// with history are deactivated instead of deleted.
func (r *Repository) HasPurchases(ctx context.Context, id int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM purchases WHERE item_id = $1)`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return exists, nil
}

func (r *Repository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}
