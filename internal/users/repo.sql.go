package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns one page of users matching the filter and the total match count.
func (r *Repository) ListUsers(ctx context.Context, f ListFilter) ([]Listing, int, error) {
	where, args := filterClause(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users u LEFT JOIN roles ro ON ro.id = u.role_id`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}

	args = append(args, f.PerPage, f.offset())
	query := `SELECT u.id, u.username, u.email, trim(u.first_name || ' ' || u.last_name), u.is_active, u.is_staff,
		u.is_superuser, COALESCE(ro.name, ''), u.last_login, u.created_at
	FROM users u LEFT JOIN roles ro ON ro.id = u.role_id` + where +
		fmt.Sprintf(" ORDER BY u.username LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Listing, error) {
		var l Listing
		err := row.Scan(&l.ID, &l.Username, &l.Email, &l.Name, &l.IsActive, &l.IsStaff,
			&l.IsSuperuser, &l.Role, &l.LastLogin, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("users: scan: %w", err)
	}
	return out, total, nil
}

func filterClause(f ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(lower(u.username) LIKE $%d OR lower(u.email) LIKE $%d OR lower(u.first_name || ' ' || u.last_name) LIKE $%d)", n, n, n))
	}
	if f.Role != "" {
		args = append(args, string(f.Role))
		conds = append(conds, fmt.Sprintf("ro.name = $%d", len(args)))
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		conds = append(conds, fmt.Sprintf("u.is_active = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
