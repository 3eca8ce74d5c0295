package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/charpente-erp/charpente/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateArticle(ctx context.Context, article Article) (int64, error)
	UpdateArticle(ctx context.Context, article Article) error
	SetArticleActive(ctx context.Context, articleID int64, active bool) error
	GetArticle(ctx context.Context, articleID int64) (Article, error)
	ListArticles(ctx context.Context, filter ArticleFilter) ([]Article, int, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error)
	GetMovement(ctx context.Context, movementID int64) (Movement, error)
	Stats(ctx context.Context, from, to time.Time) ([]TypeStat, error)
	LowStock(ctx context.Context) ([]Article, error)
}

// TxRepository exposes transactional operations used during a stock mutation.
type TxRepository interface {
	GetArticleForUpdate(ctx context.Context, articleID int64) (Article, error)
	InsertMovement(ctx context.Context, movement Movement) (int64, error)
	UpdateArticleStock(ctx context.Context, articleID int64, newStock float64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: func() time.Time { return time.Now().UTC() }}
}

// RecordMovement appends a ledger entry and updates the article stock as a
// single all-or-nothing unit. The article row is locked for the duration of
// the transaction so concurrent outbound movements serialize.
func (s *Service) RecordMovement(ctx context.Context, input MovementInput) (Movement, error) {
	if !input.Type.Valid() {
		return Movement{}, ErrInvalidType
	}
	if input.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	if input.UnitPrice != nil && *input.UnitPrice < 0 {
		return Movement{}, fmt.Errorf("inventory: unit price must be >= 0")
	}

	movement := Movement{
		ArticleID: input.ArticleID,
		Type:      input.Type,
		Quantity:  input.Quantity,
		UnitPrice: input.UnitPrice,
		Reason:    input.Reason,
		Reference: input.Reference,
		UserID:    input.ActorID,
		CreatedAt: s.now(),
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		article, err := tx.GetArticleForUpdate(ctx, input.ArticleID)
		if err != nil {
			return err
		}
		newStock, err := applyMovement(article.CurrentStock, input.Type, input.Quantity)
		if err != nil {
			return err
		}
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id
		return tx.UpdateArticleStock(ctx, article.ID, newStock)
	})
	if err != nil {
		return Movement{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("inventory:%s", input.Type),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", movement.ID),
			Meta: map[string]any{
				"article_id": input.ArticleID,
				"quantity":   input.Quantity,
				"reason":     input.Reason,
				"reference":  input.Reference,
			},
		})
	}
	return movement, nil
}

// applyMovement computes the resulting stock for a movement type.
func applyMovement(current float64, movementType MovementType, quantity float64) (float64, error) {
	switch movementType {
	case MovementIn, MovementAdjustment:
		return current + quantity, nil
	case MovementOut:
		newStock := current - quantity
		if newStock < 0 {
			return 0, ErrInsufficientStock
		}
		return newStock, nil
	case MovementInventoryCount:
		return quantity, nil
	default:
		return 0, ErrInvalidType
	}
}

// CreateArticle registers a new inventory item.
func (s *Service) CreateArticle(ctx context.Context, article Article) (Article, error) {
	if article.Code == "" || article.Designation == "" {
		return Article{}, fmt.Errorf("inventory: code and designation required")
	}
	article.Active = true
	id, err := s.repo.CreateArticle(ctx, article)
	if err != nil {
		return Article{}, err
	}
	return s.repo.GetArticle(ctx, id)
}

// UpdateArticle modifies descriptive fields. CurrentStock is not writable here.
func (s *Service) UpdateArticle(ctx context.Context, article Article) (Article, error) {
	existing, err := s.repo.GetArticle(ctx, article.ID)
	if err != nil {
		return Article{}, err
	}
	article.CurrentStock = existing.CurrentStock
	if err := s.repo.UpdateArticle(ctx, article); err != nil {
		return Article{}, err
	}
	return s.repo.GetArticle(ctx, article.ID)
}

// DeactivateArticle soft-deletes an article. Articles referenced by movements
// are never hard-deleted.
func (s *Service) DeactivateArticle(ctx context.Context, articleID int64) error {
	if _, err := s.repo.GetArticle(ctx, articleID); err != nil {
		return err
	}
	return s.repo.SetArticleActive(ctx, articleID, false)
}

// GetArticle fetches one article.
func (s *Service) GetArticle(ctx context.Context, articleID int64) (Article, error) {
	return s.repo.GetArticle(ctx, articleID)
}

// ListArticles lists articles ordered by designation using French collation.
func (s *Service) ListArticles(ctx context.Context, filter ArticleFilter) ([]Article, int, error) {
	articles, total, err := s.repo.ListArticles(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	collator := collate.New(language.French, collate.IgnoreCase)
	sort.Slice(articles, func(i, j int) bool {
		return collator.CompareString(articles[i].Designation, articles[j].Designation) < 0
	})
	return articles, total, nil
}

// ListMovements lists ledger entries newest-first.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	if filter.Take <= 0 {
		filter.Take = 50
	}
	return s.repo.ListMovements(ctx, filter)
}

// GetMovement fetches a single ledger entry.
func (s *Service) GetMovement(ctx context.Context, movementID int64) (Movement, error) {
	return s.repo.GetMovement(ctx, movementID)
}

// ArticleHistory lists the ledger for one article, newest-first.
func (s *Service) ArticleHistory(ctx context.Context, articleID int64, skip, take int) ([]Movement, int, error) {
	if _, err := s.repo.GetArticle(ctx, articleID); err != nil {
		return nil, 0, err
	}
	if take <= 0 {
		take = 50
	}
	return s.repo.ListMovements(ctx, MovementFilter{ArticleID: &articleID, Skip: skip, Take: take})
}

// Stats aggregates movement counts and quantities per type, optionally date-bounded.
func (s *Service) Stats(ctx context.Context, from, to time.Time) ([]TypeStat, error) {
	return s.repo.Stats(ctx, from, to)
}

// LowStock lists active articles at or below their minimum threshold.
func (s *Service) LowStock(ctx context.Context) ([]Article, error) {
	return s.repo.LowStock(ctx)
}
