package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bginfotechs/bginfotechs/internal/access"
	"github.com/bginfotechs/bginfotechs/internal/platform/httpx"
)

const itemColumns = `id, kind, title, slug, body, owner_id, display_order, published, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns the rows of kind allowed by vis, newest first or by display order.
func (r *Repository) List(ctx context.Context, kind Kind, vis access.Visibility, page Page) ([]Item, int, error) {
	where := ` WHERE kind = $1`
	args := []any{string(kind)}
	if !vis.All {
		args = append(args, vis.OwnerID)
		where += ` AND owner_id = $2`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM content_items`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("content: count %s: %w", kind, err)
	}

	order := ` ORDER BY created_at DESC, id DESC`
	if kind.Spec().ByDisplayOrder {
		order = ` ORDER BY display_order, id`
	}
	args = append(args, page.Limit, page.Offset)
	query := `SELECT ` + itemColumns + ` FROM content_items` + where + order +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("content: list %s: %w", kind, err)
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, 0, fmt.Errorf("content: scan %s: %w", kind, err)
	}
	return items, total, nil
}

// Get loads one row.
func (r *Repository) Get(ctx context.Context, kind Kind, id int64) (Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM content_items WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return Item{}, fmt.Errorf("content: get %s %d: %w", kind, id, err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		return Item{}, mapErr(err)
	}
	return item, nil
}

// SlugTaken reports whether another row of kind uses slug.
func (r *Repository) SlugTaken(ctx context.Context, kind Kind, slug string, excludeID int64) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM content_items WHERE kind = $1 AND slug = $2 AND id <> $3)`,
		string(kind), slug, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("content: slug lookup: %w", err)
	}
	return taken, nil
}

// Create inserts item and returns it with its generated fields.
func (r *Repository) Create(ctx context.Context, item Item) (Item, error) {
	rows, err := r.pool.Query(ctx, `INSERT INTO content_items (kind, title, slug, body, owner_id, display_order, published)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+itemColumns,
		string(item.Kind), item.Title, item.Slug, item.Body, item.Owner, item.DisplayOrder, item.Published)
	if err != nil {
		return Item{}, mapErr(err)
	}
	created, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		return Item{}, mapErr(err)
	}
	return created, nil
}

// Update writes the mutable fields. The owner column is never touched.
func (r *Repository) Update(ctx context.Context, item Item) (Item, error) {
	rows, err := r.pool.Query(ctx, `UPDATE content_items
		SET title = $3, slug = $4, body = $5, display_order = $6, published = $7, updated_at = now()
		WHERE kind = $1 AND id = $2
		RETURNING `+itemColumns,
		string(item.Kind), item.ID, item.Title, item.Slug, item.Body, item.DisplayOrder, item.Published)
	if err != nil {
		return Item{}, mapErr(err)
	}
	updated, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		return Item{}, mapErr(err)
	}
	return updated, nil
}

// Delete removes a row.
func (r *Repository) Delete(ctx context.Context, kind Kind, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM content_items WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return fmt.Errorf("content: delete %s %d: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func scanItem(row pgx.CollectableRow) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Kind, &it.Title, &it.Slug, &it.Body, &it.Owner,
		&it.DisplayOrder, &it.Published, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return httpx.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: slug already in use", httpx.ErrDuplicate)
	}
	return fmt.Errorf("content: %w", err)
}
