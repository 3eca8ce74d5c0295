package estimation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists estimations in PostgreSQL. The extended-attributes bag
// is (de)serialized only here, at the storage boundary.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("estimation repository not initialised")
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

const estimationColumns = `SELECT id, job_id, version, status, validated_by, validated_at,
total_amount, total_duration, labor_cost, purchasing_cost, overhead_cost, margin,
headcount, avg_hourly_rate, planned_start, planned_end, extended, created_at, updated_at
FROM estimations`

func (r *Repository) GetByID(ctx context.Context, id int64) (Estimation, error) {
	e, err := scanEstimation(r.pool.QueryRow(ctx, estimationColumns+` WHERE id=$1`, id))
	if err != nil {
		return Estimation{}, err
	}
	details, err := r.loadDetails(ctx, []int64{id})
	if err != nil {
		return Estimation{}, err
	}
	e.Details = details[id]
	if e.Details == nil {
		e.Details = []Detail{}
	}
	return e, nil
}

func (r *Repository) ListForJob(ctx context.Context, jobID int64) ([]Estimation, error) {
	rows, err := r.pool.Query(ctx, estimationColumns+` WHERE job_id=$1 ORDER BY version DESC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	estimations := []Estimation{}
	ids := []int64{}
	for rows.Next() {
		e, err := scanEstimationRow(rows)
		if err != nil {
			return nil, err
		}
		estimations = append(estimations, e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	details, err := r.loadDetails(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range estimations {
		estimations[i].Details = details[estimations[i].ID]
		if estimations[i].Details == nil {
			estimations[i].Details = []Detail{}
		}
	}
	return estimations, nil
}

func (r *Repository) LatestValidated(ctx context.Context, jobID int64) (Estimation, error) {
	e, err := scanEstimation(r.pool.QueryRow(ctx, estimationColumns+` WHERE job_id=$1 AND status='VALIDATED' ORDER BY version DESC LIMIT 1`, jobID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Estimation{}, ErrNoValidated
		}
		return Estimation{}, err
	}
	details, err := r.loadDetails(ctx, []int64{e.ID})
	if err != nil {
		return Estimation{}, err
	}
	e.Details = details[e.ID]
	if e.Details == nil {
		e.Details = []Detail{}
	}
	return e, nil
}

func (r *Repository) HasComparisons(ctx context.Context, estimationID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM comparisons WHERE estimation_id=$1)`, estimationID).Scan(&exists)
	return exists, err
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM estimations WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) loadDetails(ctx context.Context, estimationIDs []int64) (map[int64][]Detail, error) {
	if len(estimationIDs) == 0 {
		return map[int64][]Detail{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, estimation_id, category, sub_category, label, quantity, unit, unit_price, amount, comment, display_order
FROM estimation_details WHERE estimation_id = ANY($1) ORDER BY display_order ASC, id ASC`, estimationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int64][]Detail{}
	for rows.Next() {
		var d Detail
		if err := rows.Scan(&d.ID, &d.EstimationID, &d.Category, &d.SubCategory, &d.Label,
			&d.Quantity, &d.Unit, &d.UnitPrice, &d.Amount, &d.Comment, &d.DisplayOrder); err != nil {
			return nil, err
		}
		out[d.EstimationID] = append(out[d.EstimationID], d)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) NextVersion(ctx context.Context, jobID int64) (int, error) {
	var version int
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(version),0)+1 FROM estimations WHERE job_id=$1`, jobID).Scan(&version)
	return version, err
}

func (r *txRepository) InsertEstimation(ctx context.Context, e Estimation) (int64, error) {
	extended, err := marshalExtended(e.Extended)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.tx.QueryRow(ctx, `INSERT INTO estimations (job_id, version, status, total_amount, total_duration, labor_cost, purchasing_cost, overhead_cost, margin, headcount, avg_hourly_rate, planned_start, planned_end, extended, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW(),NOW()) RETURNING id`,
		e.JobID, e.Version, string(e.Status), e.TotalAmount, e.TotalDuration, e.LaborCost,
		e.PurchasingCost, e.OverheadCost, e.Margin, e.Headcount, e.AvgHourlyRate,
		e.PlannedStart, e.PlannedEnd, extended).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateEstimation(ctx context.Context, e Estimation) error {
	extended, err := marshalExtended(e.Extended)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `UPDATE estimations SET total_amount=$2, total_duration=$3, labor_cost=$4, purchasing_cost=$5, overhead_cost=$6, margin=$7, headcount=$8, avg_hourly_rate=$9, planned_start=$10, planned_end=$11, extended=$12, updated_at=NOW() WHERE id=$1`,
		e.ID, e.TotalAmount, e.TotalDuration, e.LaborCost, e.PurchasingCost, e.OverheadCost,
		e.Margin, e.Headcount, e.AvgHourlyRate, e.PlannedStart, e.PlannedEnd, extended)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteDetails(ctx context.Context, estimationID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM estimation_details WHERE estimation_id=$1`, estimationID)
	return err
}

func (r *txRepository) InsertDetails(ctx context.Context, estimationID int64, details []Detail) error {
	for _, d := range details {
		if _, err := r.tx.Exec(ctx, `INSERT INTO estimation_details (estimation_id, category, sub_category, label, quantity, unit, unit_price, amount, comment, display_order)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			estimationID, d.Category, d.SubCategory, d.Label, d.Quantity, d.Unit, d.UnitPrice, d.Amount, d.Comment, d.DisplayOrder); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) MarkValidated(ctx context.Context, id int64, validatedBy string, validatedAt time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE estimations SET status='VALIDATED', validated_by=$2, validated_at=$3, updated_at=NOW() WHERE id=$1`, id, validatedBy, validatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalExtended(extended *ExtendedAttributes) ([]byte, error) {
	if extended.IsEmpty() {
		return nil, nil
	}
	return json.Marshal(extended)
}

func scanEstimation(row pgx.Row) (Estimation, error) {
	var e Estimation
	var status string
	var extended []byte
	err := row.Scan(&e.ID, &e.JobID, &e.Version, &status, &e.ValidatedBy, &e.ValidatedAt,
		&e.TotalAmount, &e.TotalDuration, &e.LaborCost, &e.PurchasingCost, &e.OverheadCost, &e.Margin,
		&e.Headcount, &e.AvgHourlyRate, &e.PlannedStart, &e.PlannedEnd, &extended, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Estimation{}, ErrNotFound
		}
		return Estimation{}, err
	}
	e.Status = Status(status)
	if len(extended) > 0 {
		var bag ExtendedAttributes
		if err := json.Unmarshal(extended, &bag); err != nil {
			return Estimation{}, err
		}
		if !bag.IsEmpty() {
			e.Extended = &bag
		}
	}
	return e, nil
}

func scanEstimationRow(rows pgx.Rows) (Estimation, error) {
	return scanEstimation(rows)
}
