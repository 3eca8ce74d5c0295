package purchasing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists purchase documents in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const documentColumns = `SELECT id, job_id, type, supplier, reference, amount_excl_tax, document_date, created_at, updated_at FROM purchase_documents`

func (r *Repository) Create(ctx context.Context, doc Document) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO purchase_documents (job_id, type, supplier, reference, amount_excl_tax, document_date, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id`,
		doc.JobID, string(doc.Type), doc.Supplier, doc.Reference, doc.AmountExclTax, doc.DocumentDate).Scan(&id)
	return id, err
}

func (r *Repository) Update(ctx context.Context, doc Document) error {
	tag, err := r.pool.Exec(ctx, `UPDATE purchase_documents SET type=$2, supplier=$3, reference=$4, amount_excl_tax=$5, document_date=$6, updated_at=NOW() WHERE id=$1`,
		doc.ID, string(doc.Type), doc.Supplier, doc.Reference, doc.AmountExclTax, doc.DocumentDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM purchase_documents WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Document, error) {
	return scanDocument(r.pool.QueryRow(ctx, documentColumns+` WHERE id=$1`, id))
}

func (r *Repository) ListForJob(ctx context.Context, jobID int64) ([]Document, error) {
	rows, err := r.pool.Query(ctx, documentColumns+` WHERE job_id=$1 ORDER BY document_date DESC, id DESC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	documents := []Document{}
	for rows.Next() {
		var d Document
		var docType string
		if err := rows.Scan(&d.ID, &d.JobID, &docType, &d.Supplier, &d.Reference, &d.AmountExclTax, &d.DocumentDate, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Type = DocumentType(docType)
		documents = append(documents, d)
	}
	return documents, rows.Err()
}

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	var docType string
	err := row.Scan(&d.ID, &d.JobID, &docType, &d.Supplier, &d.Reference, &d.AmountExclTax, &d.DocumentDate, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	d.Type = DocumentType(docType)
	return d, nil
}
