package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const uniqueViolation = "23505"

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) CreateArticle(ctx context.Context, article Article) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO articles (code, designation, unit, supplier, location, current_stock, min_stock, max_stock, unit_price, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW()) RETURNING id`,
		article.Code, article.Designation, article.Unit, article.Supplier, article.Location,
		article.CurrentStock, article.MinStock, article.MaxStock, article.UnitPrice, article.Active).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateCode, article.Code)
		}
		return 0, err
	}
	return id, nil
}

func (r *Repository) UpdateArticle(ctx context.Context, article Article) error {
	tag, err := r.pool.Exec(ctx, `UPDATE articles SET designation=$2, unit=$3, supplier=$4, location=$5, min_stock=$6, max_stock=$7, unit_price=$8, updated_at=NOW() WHERE id=$1`,
		article.ID, article.Designation, article.Unit, article.Supplier, article.Location,
		article.MinStock, article.MaxStock, article.UnitPrice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrArticleNotFound
	}
	return nil
}

func (r *Repository) SetArticleActive(ctx context.Context, articleID int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE articles SET active=$2, updated_at=NOW() WHERE id=$1`, articleID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrArticleNotFound
	}
	return nil
}

func (r *Repository) GetArticle(ctx context.Context, articleID int64) (Article, error) {
	return scanArticle(r.pool.QueryRow(ctx, articleColumns+` WHERE id=$1`, articleID))
}

func (r *Repository) ListArticles(ctx context.Context, filter ArticleFilter) ([]Article, int, error) {
	where := `WHERE ($1 = '' OR code ILIKE '%'||$1||'%' OR designation ILIKE '%'||$1||'%') AND (NOT $2 OR active)`
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM articles `+where, filter.Search, filter.ActiveOnly).Scan(&total); err != nil {
		return nil, 0, err
	}
	take := filter.Take
	if take <= 0 {
		take = 50
	}
	rows, err := r.pool.Query(ctx, articleColumns+` `+where+` ORDER BY designation ASC OFFSET $3 LIMIT $4`,
		filter.Search, filter.ActiveOnly, filter.Skip, take)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	articles, err := collectArticles(rows)
	if err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	where := `WHERE ($1::bigint IS NULL OR article_id=$1)
AND ($2::text IS NULL OR user_id=$2)
AND ($3::text IS NULL OR type=$3)
AND created_at BETWEEN COALESCE($4, '-infinity') AND COALESCE($5, 'infinity')`
	args := []any{filter.ArticleID, filter.UserID, (*string)(filter.Type), nullTime(filter.From), nullTime(filter.To)}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_movements `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	take := filter.Take
	if take <= 0 {
		take = 50
	}
	rows, err := r.pool.Query(ctx, movementColumns+` `+where+` ORDER BY created_at DESC, id DESC OFFSET $6 LIMIT $7`,
		append(args, filter.Skip, take)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		m, err := scanMovementRow(rows)
		if err != nil {
			return nil, 0, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

func (r *Repository) GetMovement(ctx context.Context, movementID int64) (Movement, error) {
	m, err := scanMovementRow(r.pool.QueryRow(ctx, movementColumns+` WHERE id=$1`, movementID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movement{}, ErrMovementNotFound
		}
		return Movement{}, err
	}
	return m, nil
}

func (r *Repository) Stats(ctx context.Context, from, to time.Time) ([]TypeStat, error) {
	rows, err := r.pool.Query(ctx, `SELECT type, COUNT(*), COALESCE(SUM(quantity),0)
FROM stock_movements
WHERE created_at BETWEEN COALESCE($1, '-infinity') AND COALESCE($2, 'infinity')
GROUP BY type ORDER BY type`, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats := []TypeStat{}
	for rows.Next() {
		var s TypeStat
		if err := rows.Scan(&s.Type, &s.Count, &s.TotalQuantity); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// LowStock compares the two stock columns directly in SQL.
func (r *Repository) LowStock(ctx context.Context) ([]Article, error) {
	rows, err := r.pool.Query(ctx, articleColumns+` WHERE active AND current_stock <= min_stock ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectArticles(rows)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetArticleForUpdate(ctx context.Context, articleID int64) (Article, error) {
	return scanArticle(r.tx.QueryRow(ctx, articleColumns+` WHERE id=$1 FOR UPDATE`, articleID))
}

func (r *txRepository) InsertMovement(ctx context.Context, movement Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (article_id, type, quantity, unit_price, reason, reference, user_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		movement.ArticleID, string(movement.Type), movement.Quantity, movement.UnitPrice,
		movement.Reason, movement.Reference, movement.UserID, movement.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateArticleStock(ctx context.Context, articleID int64, newStock float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE articles SET current_stock=$2, updated_at=NOW() WHERE id=$1`, articleID, newStock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrArticleNotFound
	}
	return nil
}

const articleColumns = `SELECT id, code, designation, unit, supplier, location, current_stock, min_stock, max_stock, unit_price, active, created_at, updated_at FROM articles`

const movementColumns = `SELECT id, article_id, type, quantity, unit_price, reason, reference, user_id, created_at FROM stock_movements`

func scanArticle(row pgx.Row) (Article, error) {
	var a Article
	err := row.Scan(&a.ID, &a.Code, &a.Designation, &a.Unit, &a.Supplier, &a.Location,
		&a.CurrentStock, &a.MinStock, &a.MaxStock, &a.UnitPrice, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Article{}, ErrArticleNotFound
		}
		return Article{}, err
	}
	return a, nil
}

func collectArticles(rows pgx.Rows) ([]Article, error) {
	articles := []Article{}
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.Code, &a.Designation, &a.Unit, &a.Supplier, &a.Location,
			&a.CurrentStock, &a.MinStock, &a.MaxStock, &a.UnitPrice, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func scanMovementRow(row pgx.Row) (Movement, error) {
	var m Movement
	var movementType string
	if err := row.Scan(&m.ID, &m.ArticleID, &movementType, &m.Quantity, &m.UnitPrice,
		&m.Reason, &m.Reference, &m.UserID, &m.CreatedAt); err != nil {
		return Movement{}, err
	}
	m.Type = MovementType(movementType)
	return m, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
