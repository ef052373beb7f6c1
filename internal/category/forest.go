// Package category keeps user categories as an acyclic forest.
package category

import (
	"errors"
	"fmt"
	"sort"

	"ledger/internal/core"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrDuplicateID     = errors.New("duplicate category id")
)

// Forest indexes categories by ID. Every parent link points at a category in
// the forest and following parent links always terminates.
type Forest struct {
	byID map[string]core.Category
}

// NewForest validates cats and builds the forest.
func NewForest(cats []core.Category) (*Forest, error) {
	f := &Forest{byID: make(map[string]core.Category, len(cats))}
	for _, c := range cats {
		if _, dup := f.byID[c.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, c.ID)
		}
		f.byID[c.ID] = c
	}
	for _, c := range cats {
		if c.ParentID == "" {
			continue
		}
		if _, ok := f.byID[c.ParentID]; !ok {
			return nil, fmt.Errorf("%w: parent %s of %s", ErrUnknownCategory, c.ParentID, c.ID)
		}
		if f.reaches(c.ParentID, c.ID) {
			return nil, fmt.Errorf("%w: %s", core.ErrCategoryCycle, c.ID)
		}
	}
	return f, nil
}

func (f *Forest) Get(id string) (core.Category, bool) {
	c, ok := f.byID[id]
	return c, ok
}

// Add inserts a new category. Its parent, if any, must already exist.
func (f *Forest) Add(c core.Category) error {
	if _, dup := f.byID[c.ID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateID, c.ID)
	}
	if c.ParentID != "" {
		if _, ok := f.byID[c.ParentID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCategory, c.ParentID)
		}
	}
	f.byID[c.ID] = c
	return nil
}

// CheckParent reports whether id may be re-parented under parentID without
// creating a cycle. An empty parentID makes id a root and is always allowed.
func (f *Forest) CheckParent(id, parentID string) error {
	if _, ok := f.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, id)
	}
	if parentID == "" {
		return nil
	}
	if _, ok := f.byID[parentID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, parentID)
	}
	if parentID == id || f.reaches(parentID, id) {
		return fmt.Errorf("%w: %s under %s", core.ErrCategoryCycle, id, parentID)
	}
	return nil
}

// SetParent applies CheckParent and updates the link.
func (f *Forest) SetParent(id, parentID string) error {
	if err := f.CheckParent(id, parentID); err != nil {
		return err
	}
	c := f.byID[id]
	c.ParentID = parentID
	f.byID[id] = c
	return nil
}

// Ancestors returns the parent chain of id, nearest first.
func (f *Forest) Ancestors(id string) []string {
	var out []string
	c, ok := f.byID[id]
	for ok && c.ParentID != "" && len(out) <= len(f.byID) {
		out = append(out, c.ParentID)
		c, ok = f.byID[c.ParentID]
	}
	return out
}

// Children returns the direct children of id sorted by ID.
func (f *Forest) Children(id string) []string {
	var out []string
	for _, c := range f.byID {
		if c.ParentID == id {
			out = append(out, c.ID)
		}
	}
	sort.Strings(out)
	return out
}

// reaches walks parent links from start and reports whether target is met.
// The walk is bounded by the forest size so a corrupted map cannot loop.
func (f *Forest) reaches(start, target string) bool {
	cur := start
	for i := 0; i <= len(f.byID) && cur != ""; i++ {
		if cur == target {
			return true
		}
		cur = f.byID[cur].ParentID
	}
	return false
}
