package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists users in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `SELECT id, first_name, last_name, email, role, hourly_cost_rate, active, password_hash, created_at, updated_at FROM users`

func (r *Repository) Create(ctx context.Context, user User) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO users (id, first_name, last_name, email, role, hourly_cost_rate, active, password_hash, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW())`,
		user.ID, user.FirstName, user.LastName, user.Email, string(user.Role), user.HourlyCostRate, user.Active, user.PasswordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, user.Email)
		}
		return err
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, userColumns+` WHERE id=$1`, id))
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, userColumns+` WHERE email=$1`, email))
}

func (r *Repository) List(ctx context.Context, activeOnly bool) ([]User, error) {
	query := userColumns + ` ORDER BY last_name ASC, first_name ASC`
	if activeOnly {
		query = userColumns + ` WHERE active ORDER BY last_name ASC, first_name ASC`
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []User{}
	for rows.Next() {
		var u User
		var role string
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &role, &u.HourlyCostRate, &u.Active, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Role = Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *Repository) SetRate(ctx context.Context, id string, rate float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET hourly_cost_rate=$2, updated_at=NOW() WHERE id=$1`, id, rate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	var role string
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &role, &u.HourlyCostRate, &u.Active, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.Role = Role(role)
	return u, nil
}
