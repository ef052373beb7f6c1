package storage

import (
	"context"
	"fmt"

	"ledger/internal/core"
)

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c *core.Category) error {
	if c.ID == "" {
		c.ID = newID()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (id, user_id, name, parent_id) VALUES (?, ?, ?, ?)",
		c.ID, c.UserID, c.Name, c.ParentID,
	)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, user_id, name, parent_id FROM categories WHERE user_id = ? ORDER BY name, id", userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.ParentID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// SetCategoryParent stores a parent link. Callers validate it against the
// category forest first.
func (r *SQLiteRepository) SetCategoryParent(ctx context.Context, id, parentID string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE categories SET parent_id = ? WHERE id = ?", parentID, id)
	if err != nil {
		return fmt.Errorf("set category parent: %w", err)
	}
	return expectOne(res, "category", id)
}
