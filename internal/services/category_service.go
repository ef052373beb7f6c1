package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ledger/internal/category"
	"ledger/internal/core"
	ledgerlog "ledger/internal/log"
	"ledger/internal/storage"
)

// CategoryService keeps each user's categories an acyclic forest.
type CategoryService struct {
	storage *storage.SQLiteRepository
}

func NewCategoryService(storage *storage.SQLiteRepository) *CategoryService {
	return &CategoryService{storage: storage}
}

func (s *CategoryService) forest(ctx context.Context, userID string) (*category.Forest, error) {
	cats, err := s.storage.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	return category.NewForest(cats)
}

// CreateCategory stores c. A parent, when given, must be one of the user's
// categories.
func (s *CategoryService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if strings.TrimSpace(c.Name) == "" {
		return core.Category{}, fmt.Errorf("category name cannot be empty")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	f, err := s.forest(ctx, c.UserID)
	if err != nil {
		return core.Category{}, err
	}
	if err := f.Add(c); err != nil {
		return core.Category{}, err
	}
	if err := s.storage.CreateCategory(ctx, &c); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

// SetParent moves a category under parentID, or to the root when parentID is
// empty. Moves that would create a cycle fail with core.ErrCategoryCycle.
func (s *CategoryService) SetParent(ctx context.Context, userID, id, parentID string) error {
	f, err := s.forest(ctx, userID)
	if err != nil {
		return err
	}
	if err := f.SetParent(id, parentID); err != nil {
		return err
	}
	if err := s.storage.SetCategoryParent(ctx, id, parentID); err != nil {
		return err
	}

	ledgerlog.FromContext(ctx).WithComponent(ledgerlog.ComponentCategory).InfoContext(ctx, "Category moved",
		"category_id", id,
		"parent_id", parentID)
	return nil
}

// Path returns the ancestor chain of a category, nearest first.
func (s *CategoryService) Path(ctx context.Context, userID, id string) ([]string, error) {
	f, err := s.forest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := f.Get(id); !ok {
		return nil, fmt.Errorf("%w: %s", category.ErrUnknownCategory, id)
	}
	return f.Ancestors(id), nil
}

// Children returns the direct subcategories of id, sorted by ID.
func (s *CategoryService) Children(ctx context.Context, userID, id string) ([]string, error) {
	f, err := s.forest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := f.Get(id); !ok {
		return nil, fmt.Errorf("%w: %s", category.ErrUnknownCategory, id)
	}
	return f.Children(id), nil
}
