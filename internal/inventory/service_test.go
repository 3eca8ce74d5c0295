package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type memoryRepo struct {
	articles  map[int64]Article
	movements []Movement
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{articles: make(map[int64]Article)}
}

func (r *memoryRepo) addArticle(a Article) Article {
	r.nextID++
	a.ID = r.nextID
	a.Active = true
	r.articles[a.ID] = a
	return a
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64]Article, len(r.articles))
	for id, a := range r.articles {
		snapshot[id] = a
	}
	movementCount := len(r.movements)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.articles = snapshot
		r.movements = r.movements[:movementCount]
		return err
	}
	return nil
}

func (r *memoryRepo) CreateArticle(ctx context.Context, article Article) (int64, error) {
	for _, a := range r.articles {
		if a.Code == article.Code {
			return 0, ErrDuplicateCode
		}
	}
	return r.addArticle(article).ID, nil
}

func (r *memoryRepo) UpdateArticle(ctx context.Context, article Article) error {
	existing, ok := r.articles[article.ID]
	if !ok {
		return ErrArticleNotFound
	}
	article.CurrentStock = existing.CurrentStock
	article.Active = existing.Active
	article.Code = existing.Code
	r.articles[article.ID] = article
	return nil
}

func (r *memoryRepo) SetArticleActive(ctx context.Context, articleID int64, active bool) error {
	a, ok := r.articles[articleID]
	if !ok {
		return ErrArticleNotFound
	}
	a.Active = active
	r.articles[articleID] = a
	return nil
}

func (r *memoryRepo) GetArticle(ctx context.Context, articleID int64) (Article, error) {
	a, ok := r.articles[articleID]
	if !ok {
		return Article{}, ErrArticleNotFound
	}
	return a, nil
}

func (r *memoryRepo) ListArticles(ctx context.Context, filter ArticleFilter) ([]Article, int, error) {
	out := []Article{}
	for _, a := range r.articles {
		if filter.ActiveOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	out := []Movement{}
	for i := len(r.movements) - 1; i >= 0; i-- {
		m := r.movements[i]
		if filter.ArticleID != nil && m.ArticleID != *filter.ArticleID {
			continue
		}
		if filter.Type != nil && m.Type != *filter.Type {
			continue
		}
		out = append(out, m)
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetMovement(ctx context.Context, movementID int64) (Movement, error) {
	for _, m := range r.movements {
		if m.ID == movementID {
			return m, nil
		}
	}
	return Movement{}, ErrMovementNotFound
}

func (r *memoryRepo) Stats(ctx context.Context, from, to time.Time) ([]TypeStat, error) {
	return nil, nil
}

func (r *memoryRepo) LowStock(ctx context.Context) ([]Article, error) {
	out := []Article{}
	for _, a := range r.articles {
		if a.Active && a.CurrentStock <= a.MinStock {
			out = append(out, a)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetArticleForUpdate(ctx context.Context, articleID int64) (Article, error) {
	return tx.repo.GetArticle(ctx, articleID)
}

func (tx *memoryTx) InsertMovement(ctx context.Context, movement Movement) (int64, error) {
	tx.repo.nextID++
	movement.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, movement)
	return movement.ID, nil
}

func (tx *memoryTx) UpdateArticleStock(ctx context.Context, articleID int64, newStock float64) error {
	a, ok := tx.repo.articles[articleID]
	if !ok {
		return ErrArticleNotFound
	}
	a.CurrentStock = newStock
	tx.repo.articles[articleID] = a
	return nil
}

func TestOutboundMovementReducesStock(t *testing.T) {
	repo := newMemoryRepo()
	article := repo.addArticle(Article{Code: "BOI-001", Designation: "Chêne massif", CurrentStock: 100, MinStock: 20})
	svc := NewService(repo, nil)
	ctx := context.Background()

	movement, err := svc.RecordMovement(ctx, MovementInput{ArticleID: article.ID, Type: MovementOut, Quantity: 30, ActorID: "u1"})
	require.NoError(t, err)
	require.Equal(t, MovementOut, movement.Type)
	require.InDelta(t, 30.0, movement.Quantity, 0.0001)

	updated, err := svc.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	require.InDelta(t, 70.0, updated.CurrentStock, 0.0001)
	require.Len(t, repo.movements, 1)
}

func TestInsufficientStockLeavesStateUnchanged(t *testing.T) {
	repo := newMemoryRepo()
	article := repo.addArticle(Article{Code: "BOI-001", Designation: "Chêne massif", CurrentStock: 70, MinStock: 20})
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{ArticleID: article.ID, Type: MovementOut, Quantity: 80, ActorID: "u1"})
	require.ErrorIs(t, err, ErrInsufficientStock)

	unchanged, err := svc.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	require.InDelta(t, 70.0, unchanged.CurrentStock, 0.0001)
	require.Empty(t, repo.movements)
}

func TestLedgerDeltasReconcileWithStock(t *testing.T) {
	repo := newMemoryRepo()
	article := repo.addArticle(Article{Code: "VIS-010", Designation: "Vis inox", CurrentStock: 50})
	svc := NewService(repo, nil)
	ctx := context.Background()

	inputs := []MovementInput{
		{ArticleID: article.ID, Type: MovementIn, Quantity: 25},
		{ArticleID: article.ID, Type: MovementOut, Quantity: 40},
		{ArticleID: article.ID, Type: MovementAdjustment, Quantity: 5},
		{ArticleID: article.ID, Type: MovementOut, Quantity: 10},
	}
	for _, in := range inputs {
		_, err := svc.RecordMovement(ctx, in)
		require.NoError(t, err)
	}

	var delta float64
	for _, m := range repo.movements {
		switch m.Type {
		case MovementIn, MovementAdjustment:
			delta += m.Quantity
		case MovementOut:
			delta -= m.Quantity
		}
	}
	current, err := svc.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	require.InDelta(t, 50.0+delta, current.CurrentStock, 0.0001)
}

func TestInventoryCountReplacesStock(t *testing.T) {
	repo := newMemoryRepo()
	article := repo.addArticle(Article{Code: "PAN-002", Designation: "Panneau OSB", CurrentStock: 37})
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{ArticleID: article.ID, Type: MovementInventoryCount, Quantity: 12})
	require.NoError(t, err)

	counted, err := svc.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	require.InDelta(t, 12.0, counted.CurrentStock, 0.0001)
}

func TestRecordMovementValidation(t *testing.T) {
	repo := newMemoryRepo()
	article := repo.addArticle(Article{Code: "BOI-002", Designation: "Sapin", CurrentStock: 10})
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{ArticleID: article.ID, Type: MovementIn, Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.RecordMovement(ctx, MovementInput{ArticleID: article.ID, Type: MovementType("TRANSFER"), Quantity: 1})
	require.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.RecordMovement(ctx, MovementInput{ArticleID: 999, Type: MovementIn, Quantity: 1})
	require.ErrorIs(t, err, ErrArticleNotFound)
}

func TestLowStockThresholdInclusive(t *testing.T) {
	repo := newMemoryRepo()
	repo.addArticle(Article{Code: "A", Designation: "A", CurrentStock: 20, MinStock: 20})
	repo.addArticle(Article{Code: "B", Designation: "B", CurrentStock: 21, MinStock: 20})
	svc := NewService(repo, nil)

	low, err := svc.LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, "A", low[0].Code)
}

func TestFrenchCollationOrdering(t *testing.T) {
	designations := []string{"Équerre", "Agglo", "étagère", "Zinc"}
	collator := collate.New(language.French, collate.IgnoreCase)
	collator.SortStrings(designations)
	require.Equal(t, []string{"Agglo", "Équerre", "étagère", "Zinc"}, designations)
}
