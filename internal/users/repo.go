package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dormtrack/internal/apperr"
	"dormtrack/internal/model"
	"dormtrack/internal/store"
)

// PostgresRepository persists user accounts.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, login, password_hash, role, refresh_token, created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.Role, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// Create inserts a new account. A duplicate login surfaces as ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, login, passwordHash string, role model.Role) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (login, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns, login, passwordHash, role)
	u, err := scanUser(row)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, apperr.ErrConflict
		}
		return nil, err
	}
	return u, nil
}

// GetByLogin returns the account with the given login.
func (r *PostgresRepository) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE login = $1`, login)
	return scanUser(row)
}

// GetByID returns the account with the given id.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// List returns all accounts, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.Role, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// ListModerators returns id and login of every moderator account.
func (r *PostgresRepository) ListModerators(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, login FROM users WHERE role = $1 ORDER BY login`, model.RoleModerator)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Login); err != nil {
			return nil, err
		}
		u.Role = model.RoleModerator
		res = append(res, u)
	}
	return res, rows.Err()
}

// Update applies non-nil fields to the account.
func (r *PostgresRepository) Update(ctx context.Context, id int64, login, passwordHash *string, role *model.Role) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET login = COALESCE($2, login),
		    password_hash = COALESCE($3, password_hash),
		    role = COALESCE($4, role),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id, login, passwordHash, role)
	u, err := scanUser(row)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, apperr.ErrConflict
		}
		return nil, err
	}
	return u, nil
}

// Delete removes the account.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ReplaceRefreshToken swaps the stored refresh token only while it still
// equals current. Of two concurrent rotations exactly one matches the WHERE
// clause; the loser surfaces as ErrStaleToken.
func (r *PostgresRepository) ReplaceRefreshToken(ctx context.Context, id int64, current, next string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET refresh_token = $3, updated_at = NOW()
		WHERE id = $1 AND refresh_token = $2
	`, id, current, next)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrStaleToken
	}
	return nil
}

// SetRefreshToken stores (or clears, when nil) the single active refresh token.
func (r *PostgresRepository) SetRefreshToken(ctx context.Context, id int64, token *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET refresh_token = $2, updated_at = NOW() WHERE id = $1
	`, id, token)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
