package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists comparisons and deviation alerts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const comparisonColumns = `SELECT id, job_id, estimation_id, type, computed_by, comparison_date, status, comment,
actual_total_amount, actual_total_duration, actual_fabrication_half_days, actual_installation_half_days,
actual_labor_cost, actual_purchasing_cost, actual_overhead_cost, actual_margin,
actual_headcount, actual_avg_hourly_rate, actual_start, actual_end,
deviation_amount, deviation_duration, deviation_labor, deviation_purchasing, deviation_overhead, deviation_margin,
calculation_metadata
FROM comparisons`

func (r *Repository) Insert(ctx context.Context, c Comparison) (int64, error) {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO comparisons (job_id, estimation_id, type, computed_by, comparison_date, status, comment,
actual_total_amount, actual_total_duration, actual_fabrication_half_days, actual_installation_half_days,
actual_labor_cost, actual_purchasing_cost, actual_overhead_cost, actual_margin,
actual_headcount, actual_avg_hourly_rate, actual_start, actual_end,
deviation_amount, deviation_duration, deviation_labor, deviation_purchasing, deviation_overhead, deviation_margin,
calculation_metadata)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
RETURNING id`,
		c.JobID, c.EstimationID, string(c.Type), c.ComputedBy, c.ComparisonDate, string(c.Status), c.Comment,
		c.Actual.TotalAmount, c.Actual.TotalDuration, c.Actual.FabricationHalfDays, c.Actual.InstallationHalfDays,
		c.Actual.LaborCost, c.Actual.PurchasingCost, c.Actual.OverheadCost, c.Actual.Margin,
		c.Actual.Headcount, c.Actual.AvgHourlyRate, c.Actual.ActualStart, c.Actual.ActualEnd,
		c.Deviations.Amount, c.Deviations.Duration, c.Deviations.Labor, c.Deviations.Purchasing, c.Deviations.Overhead, c.Deviations.Margin,
		metadata).Scan(&id)
	return id, err
}

func (r *Repository) GetByID(ctx context.Context, id int64) (Comparison, error) {
	return scanComparison(r.pool.QueryRow(ctx, comparisonColumns+` WHERE id=$1`, id))
}

func (r *Repository) ListForJob(ctx context.Context, jobID int64) ([]Comparison, error) {
	return r.query(ctx, comparisonColumns+` WHERE job_id=$1 ORDER BY comparison_date DESC, id DESC`, jobID)
}

func (r *Repository) LatestForJob(ctx context.Context, jobID int64) (Comparison, error) {
	return scanComparison(r.pool.QueryRow(ctx, comparisonColumns+` WHERE job_id=$1 ORDER BY comparison_date DESC, id DESC LIMIT 1`, jobID))
}

func (r *Repository) LatestForEstimation(ctx context.Context, estimationID int64) (Comparison, error) {
	return scanComparison(r.pool.QueryRow(ctx, comparisonColumns+` WHERE estimation_id=$1 ORDER BY comparison_date DESC, id DESC LIMIT 1`, estimationID))
}

func (r *Repository) Since(ctx context.Context, since time.Time) ([]Comparison, error) {
	return r.query(ctx, comparisonColumns+` WHERE comparison_date >= $1 ORDER BY comparison_date DESC, id DESC`, since)
}

func (r *Repository) FinalsSince(ctx context.Context, since time.Time) ([]Comparison, error) {
	return r.query(ctx, comparisonColumns+` WHERE type='FINAL' AND comparison_date >= $1 ORDER BY comparison_date DESC, id DESC`, since)
}

func (r *Repository) InsertAlert(ctx context.Context, alert Alert) (int64, error) {
	metadata, err := json.Marshal(alert.Metadata)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO notifications (job_id, type, title, message, severity, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW()) RETURNING id`,
		alert.JobID, alert.Type, alert.Title, alert.Message, string(alert.Severity), metadata).Scan(&id)
	return id, err
}

func (r *Repository) ExportRows(ctx context.Context, jobID *int64) ([]ExportRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.number, p.label, p.client, p.status,
c.comparison_date, c.type, e.version,
e.total_amount, c.actual_total_amount,
e.total_duration, c.actual_total_duration,
e.labor_cost, c.actual_labor_cost,
e.margin, c.actual_margin,
c.deviation_amount, c.deviation_duration, c.deviation_labor, c.deviation_purchasing, c.deviation_overhead, c.deviation_margin,
COALESCE(u.first_name || ' ' || u.last_name, c.computed_by), c.comment
FROM comparisons c
JOIN projects p ON p.id = c.job_id
JOIN estimations e ON e.id = c.estimation_id
LEFT JOIN users u ON u.id = c.computed_by
WHERE $1::bigint IS NULL OR c.job_id = $1
ORDER BY c.comparison_date DESC, c.id DESC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ExportRow{}
	for rows.Next() {
		var row ExportRow
		var comparisonType string
		if err := rows.Scan(&row.JobNumber, &row.JobLabel, &row.JobClient, &row.JobStatus,
			&row.ComparisonDate, &comparisonType, &row.EstimationVersion,
			&row.EstimatedAmount, &row.ActualAmount,
			&row.EstimatedDuration, &row.ActualDuration,
			&row.EstimatedLabor, &row.ActualLabor,
			&row.EstimatedMargin, &row.ActualMargin,
			&row.Deviations.Amount, &row.Deviations.Duration, &row.Deviations.Labor,
			&row.Deviations.Purchasing, &row.Deviations.Overhead, &row.Deviations.Margin,
			&row.ComputedByName, &row.Comment); err != nil {
			return nil, err
		}
		row.ComparisonType = ComparisonType(comparisonType)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]Comparison, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	comparisons := []Comparison{}
	for rows.Next() {
		c, err := scanComparison(rows)
		if err != nil {
			return nil, err
		}
		comparisons = append(comparisons, c)
	}
	return comparisons, rows.Err()
}

func scanComparison(row pgx.Row) (Comparison, error) {
	var c Comparison
	var comparisonType, status string
	var metadata []byte
	err := row.Scan(&c.ID, &c.JobID, &c.EstimationID, &comparisonType, &c.ComputedBy, &c.ComparisonDate, &status, &c.Comment,
		&c.Actual.TotalAmount, &c.Actual.TotalDuration, &c.Actual.FabricationHalfDays, &c.Actual.InstallationHalfDays,
		&c.Actual.LaborCost, &c.Actual.PurchasingCost, &c.Actual.OverheadCost, &c.Actual.Margin,
		&c.Actual.Headcount, &c.Actual.AvgHourlyRate, &c.Actual.ActualStart, &c.Actual.ActualEnd,
		&c.Deviations.Amount, &c.Deviations.Duration, &c.Deviations.Labor, &c.Deviations.Purchasing, &c.Deviations.Overhead, &c.Deviations.Margin,
		&metadata)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Comparison{}, ErrNotFound
		}
		return Comparison{}, err
	}
	c.Type = ComparisonType(comparisonType)
	c.Status = DeviationStatus(status)
	c.Actual.JobID = c.JobID
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return Comparison{}, err
		}
	}
	c.Actual.Consulted = c.Metadata.Sources
	return c, nil
}
