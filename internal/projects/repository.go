package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists projects in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const projectColumns = `SELECT id, number, label, client, status, contract_amount, created_at, updated_at FROM projects`

func (r *Repository) Create(ctx context.Context, project Project) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO projects (number, label, client, status, contract_amount, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING id`,
		project.Number, project.Label, project.Client, string(project.Status), project.ContractAmount).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateNumber, project.Number)
		}
		return 0, err
	}
	return id, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Project, error) {
	return scanProject(r.pool.QueryRow(ctx, projectColumns+` WHERE id=$1`, id))
}

func (r *Repository) List(ctx context.Context, statuses []Status) ([]Project, error) {
	query := projectColumns + ` ORDER BY number ASC`
	var rows pgx.Rows
	var err error
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, s := range statuses {
			values[i] = string(s)
		}
		rows, err = r.pool.Query(ctx, projectColumns+` WHERE status = ANY($1) ORDER BY number ASC`, values)
	} else {
		rows, err = r.pool.Query(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	projects := []Project{}
	for rows.Next() {
		var p Project
		var status string
		if err := rows.Scan(&p.ID, &p.Number, &p.Label, &p.Client, &status, &p.ContractAmount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Status = Status(status)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE projects SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	var status string
	err := row.Scan(&p.ID, &p.Number, &p.Label, &p.Client, &status, &p.ContractAmount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}
	p.Status = Status(status)
	return p, nil
}
