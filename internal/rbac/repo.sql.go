package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bginfotechs/bginfotechs/internal/access"
	"github.com/bginfotechs/bginfotechs/internal/platform/db"
)

const pgUniqueViolation = "23505"

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
	queries
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, queries: queries{db: pool}}
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &queries{db: tx})
	})
}

type queries struct {
	db dbtx
}

const userColumns = `id, username, email, first_name, last_name, is_active, is_staff, is_superuser, role_id`

func (q *queries) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.RoleID)
	if err != nil {
		return User{}, mapErr(err)
	}
	return u, nil
}

func (q *queries) GetRole(ctx context.Context, id int64) (Role, error) {
	return q.getRole(ctx, `WHERE r.id = $1`, id)
}

func (q *queries) GetRoleByName(ctx context.Context, name access.RoleName) (Role, error) {
	return q.getRole(ctx, `WHERE r.name = $1`, string(name))
}

func (q *queries) getRole(ctx context.Context, where string, arg any) (Role, error) {
	var role Role
	var name string
	err := q.db.QueryRow(ctx, `SELECT r.id, r.name, r.description, r.created_at, r.updated_at,
		(SELECT COUNT(*) FROM users u WHERE u.role_id = r.id)
		FROM roles r `+where, arg).
		Scan(&role.ID, &name, &role.Description, &role.CreatedAt, &role.UpdatedAt, &role.UserCount)
	if err != nil {
		return Role{}, mapErr(err)
	}
	role.Name = access.RoleName(name)
	perms, err := q.names(ctx, `SELECT p.name FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1 ORDER BY p.name`, role.ID)
	if err != nil {
		return Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

func (q *queries) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := q.db.Query(ctx, `SELECT r.id, r.name, r.description, r.created_at, r.updated_at,
		(SELECT COUNT(*) FROM users u WHERE u.role_id = r.id)
		FROM roles r ORDER BY r.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	index := make(map[int64]int)
	for rows.Next() {
		var role Role
		var name string
		if err := rows.Scan(&role.ID, &name, &role.Description, &role.CreatedAt, &role.UpdatedAt, &role.UserCount); err != nil {
			return nil, err
		}
		role.Name = access.RoleName(name)
		index[role.ID] = len(roles)
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	permRows, err := q.db.Query(ctx, `SELECT rp.role_id, p.name FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id ORDER BY p.name`)
	if err != nil {
		return nil, err
	}
	defer permRows.Close()
	for permRows.Next() {
		var roleID int64
		var perm string
		if err := permRows.Scan(&roleID, &perm); err != nil {
			return nil, err
		}
		if i, ok := index[roleID]; ok {
			roles[i].Permissions = append(roles[i].Permissions, perm)
		}
	}
	return roles, permRows.Err()
}

func (q *queries) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := q.db.Query(ctx, `SELECT id, name, description FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (q *queries) EnsurePermission(ctx context.Context, name, description string) (Permission, error) {
	var p Permission
	err := q.db.QueryRow(ctx, `INSERT INTO permissions (name, description) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
		RETURNING id, name, description`, name, description).Scan(&p.ID, &p.Name, &p.Description)
	if err != nil {
		return Permission{}, mapErr(err)
	}
	return p, nil
}

func (q *queries) ListGroups(ctx context.Context) ([]Group, error) {
	return q.groups(ctx, `SELECT g.id, g.name FROM auth_groups g ORDER BY g.name`)
}

func (q *queries) UserGroups(ctx context.Context, userID int64) ([]Group, error) {
	return q.groups(ctx, `SELECT g.id, g.name FROM auth_groups g
		JOIN user_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = $1 ORDER BY g.name`, userID)
}

func (q *queries) groups(ctx context.Context, sql string, args ...any) ([]Group, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			rows.Close()
			return nil, err
		}
		groups = append(groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range groups {
		perms, err := q.names(ctx, `SELECT p.name FROM group_permissions gp JOIN permissions p ON p.id = gp.permission_id
			WHERE gp.group_id = $1 ORDER BY p.name`, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Permissions = perms
	}
	return groups, nil
}

func (q *queries) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	return q.names(ctx, `SELECT p.name FROM user_permissions up JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1 ORDER BY p.name`, userID)
}

func (q *queries) CreateRole(ctx context.Context, name access.RoleName, description string) (Role, error) {
	var role Role
	var stored string
	err := q.db.QueryRow(ctx, `INSERT INTO roles (name, description) VALUES ($1, $2)
		RETURNING id, name, description, created_at, updated_at`, string(name), description).
		Scan(&role.ID, &stored, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return Role{}, mapErr(err)
	}
	role.Name = access.RoleName(stored)
	return role, nil
}

func (q *queries) UpdateRole(ctx context.Context, id int64, description string) error {
	tag, err := q.db.Exec(ctx, `UPDATE roles SET description = $2, updated_at = NOW() WHERE id = $1`, id, description)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *queries) DeleteRole(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM roles WHERE id = $1
		AND NOT EXISTS (SELECT 1 FROM users WHERE role_id = $1)`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *queries) CountRoleUsers(ctx context.Context, roleID int64) (int, error) {
	var n int
	// Lock the role row so a concurrent assignment cannot slip in before delete.
	if _, err := q.db.Exec(ctx, `SELECT 1 FROM roles WHERE id = $1 FOR UPDATE`, roleID); err != nil {
		return 0, err
	}
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, roleID).Scan(&n)
	return n, err
}

func (q *queries) SetRolePermissions(ctx context.Context, roleID int64, perms []string) error {
	if err := q.ensureNames(ctx, perms); err != nil {
		return err
	}
	if _, err := q.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	_, err := q.db.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id)
		SELECT $1, id FROM permissions WHERE name = ANY($2) ON CONFLICT DO NOTHING`, roleID, perms)
	return err
}

func (q *queries) SetUserRole(ctx context.Context, userID int64, roleID *int64) error {
	tag, err := q.db.Exec(ctx, `UPDATE users SET role_id = $2, updated_at = NOW() WHERE id = $1`, userID, roleID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *queries) SetUserActive(ctx context.Context, userID int64, active bool) error {
	tag, err := q.db.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, userID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *queries) SetUserPermissions(ctx context.Context, userID int64, perms []string) error {
	if err := q.ensureNames(ctx, perms); err != nil {
		return err
	}
	if _, err := q.db.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1`, userID); err != nil {
		return err
	}
	_, err := q.db.Exec(ctx, `INSERT INTO user_permissions (user_id, permission_id)
		SELECT $1, id FROM permissions WHERE name = ANY($2) ON CONFLICT DO NOTHING`, userID, perms)
	return mapErr(err)
}

func (q *queries) SetUserGroups(ctx context.Context, userID int64, groupIDs []int64) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM user_groups WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if len(groupIDs) == 0 {
		return nil
	}
	tag, err := q.db.Exec(ctx, `INSERT INTO user_groups (user_id, group_id)
		SELECT $1, id FROM auth_groups WHERE id = ANY($2) ON CONFLICT DO NOTHING`, userID, groupIDs)
	if err != nil {
		return mapErr(err)
	}
	if int(tag.RowsAffected()) != len(dedupeIDs(groupIDs)) {
		return fmt.Errorf("rbac: unknown group: %w", ErrNotFound)
	}
	return nil
}

// ensureNames inserts registry permissions that were never seeded.
func (q *queries) ensureNames(ctx context.Context, perms []string) error {
	if len(perms) == 0 {
		return nil
	}
	_, err := q.db.Exec(ctx, `INSERT INTO permissions (name, description)
		SELECT unnest($1::text[]), '' ON CONFLICT (name) DO NOTHING`, perms)
	return err
}

func (q *queries) names(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return out, nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrDuplicate)
	}
	return err
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var (
	_ Repository   = (*PGRepository)(nil)
	_ TxRepository = (*queries)(nil)
)
