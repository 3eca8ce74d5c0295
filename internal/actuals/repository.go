package actuals

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the operational tables consumed by the aggregator. The
// rows are seeded by external systems; the aggregator never writes them.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) TimeEntries(ctx context.Context, jobID int64) ([]TimeEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT te.user_id, te.hours, u.hourly_cost_rate, te.entry_date
FROM time_entries te
JOIN users u ON u.id = te.user_id
WHERE te.job_id = $1`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []TimeEntry{}
	for rows.Next() {
		var e TimeEntry
		if err := rows.Scan(&e.UserID, &e.Hours, &e.Rate, &e.EntryDate); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) PurchaseAmounts(ctx context.Context, jobID int64) ([]float64, error) {
	rows, err := r.pool.Query(ctx, `SELECT amount_excl_tax FROM purchase_documents WHERE job_id = $1`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	amounts := []float64{}
	for rows.Next() {
		var amount float64
		if err := rows.Scan(&amount); err != nil {
			return nil, err
		}
		amounts = append(amounts, amount)
	}
	return amounts, rows.Err()
}

func (r *Repository) Assignments(ctx context.Context, jobID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT pa.user_id, pa.assignment_date, pa.activity_type, u.hourly_cost_rate
FROM planning_assignments pa
JOIN users u ON u.id = pa.user_id
WHERE pa.job_id = $1
ORDER BY pa.assignment_date ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	assignments := []Assignment{}
	for rows.Next() {
		var a Assignment
		var activity string
		if err := rows.Scan(&a.UserID, &a.Date, &activity, &a.RatePerHour); err != nil {
			return nil, err
		}
		a.Type = ActivityType(activity)
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}
