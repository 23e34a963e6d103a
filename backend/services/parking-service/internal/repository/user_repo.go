package repository

import (
	"context"

	"parkcard/backend/services/parking-service/internal/models"
)

const userColumns = `id, user_id, name, email, password_hash, role, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.UserID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// CreateUser inserts a new user.
func (q *Queries) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = models.NormalizeEmail(user.Email)
	const query = `
		INSERT INTO users (user_id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := q.db.QueryRowContext(ctx, query, user.UserID, user.Name, user.Email, user.PasswordHash, user.Role).
		Scan(&user.ID, &user.CreatedAt)
	return mapError(err)
}

// GetUserByRef fetches a user by internal id.
func (q *Queries) GetUserByRef(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByUserID fetches a user by external id.
func (q *Queries) GetUserByUserID(ctx context.Context, userID string) (*models.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID))
}

// GetUserByEmail fetches a user by email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, models.NormalizeEmail(email)))
}

// GetUserByName returns the oldest user with the exact name.
func (q *Queries) GetUserByName(ctx context.Context, name string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE name = $1 ORDER BY created_at ASC, id ASC LIMIT 1`
	return scanUser(q.db.QueryRowContext(ctx, query, name))
}

// ListUsers returns all users, newest first.
func (q *Queries) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// DeleteUser removes a user row.
func (q *Queries) DeleteUser(ctx context.Context, id int64) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result)
}
