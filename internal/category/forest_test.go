package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func sample(t *testing.T) *Forest {
	t.Helper()
	f, err := NewForest([]core.Category{
		{ID: "home"},
		{ID: "rent", ParentID: "home"},
		{ID: "utilities", ParentID: "home"},
		{ID: "power", ParentID: "utilities"},
		{ID: "food"},
	})
	require.NoError(t, err)
	return f
}

func TestSetParentRejectsCycles(t *testing.T) {
	f := sample(t)

	assert.ErrorIs(t, f.SetParent("home", "power"), core.ErrCategoryCycle)
	assert.ErrorIs(t, f.SetParent("home", "home"), core.ErrCategoryCycle)
	assert.ErrorIs(t, f.SetParent("utilities", "power"), core.ErrCategoryCycle)

	require.NoError(t, f.SetParent("food", "home"))
	assert.Equal(t, []string{"home"}, f.Ancestors("food"))

	require.NoError(t, f.SetParent("power", ""))
	assert.Empty(t, f.Ancestors("power"))
}

func TestSetParentUnknown(t *testing.T) {
	f := sample(t)
	assert.ErrorIs(t, f.SetParent("food", "travel"), ErrUnknownCategory)
	assert.ErrorIs(t, f.SetParent("travel", "food"), ErrUnknownCategory)
}

func TestNewForestValidates(t *testing.T) {
	_, err := NewForest([]core.Category{{ID: "a", ParentID: "b"}, {ID: "b", ParentID: "a"}})
	assert.ErrorIs(t, err, core.ErrCategoryCycle)

	_, err = NewForest([]core.Category{{ID: "a", ParentID: "missing"}})
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = NewForest([]core.Category{{ID: "a"}, {ID: "a"}})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestAncestorsAndChildren(t *testing.T) {
	f := sample(t)
	assert.Equal(t, []string{"utilities", "home"}, f.Ancestors("power"))

	assert.Equal(t, []string{"rent", "utilities"}, f.Children("home"))

	require.NoError(t, f.Add(core.Category{ID: "water", ParentID: "utilities"}))
	assert.Equal(t, []string{"utilities", "home"}, f.Ancestors("water"))
	assert.ErrorIs(t, f.Add(core.Category{ID: "water"}), ErrDuplicateID)
	assert.ErrorIs(t, f.Add(core.Category{ID: "x", ParentID: "nope"}), ErrUnknownCategory)
}

func TestChildrenOrderIsStable(t *testing.T) {
	f, err := NewForest([]core.Category{
		{ID: "root"},
		{ID: "zeta", ParentID: "root"},
		{ID: "alpha", ParentID: "root"},
		{ID: "mu", ParentID: "root"},
		{ID: "beta", ParentID: "root"},
		{ID: "omega", ParentID: "root"},
	})
	require.NoError(t, err)

	want := []string{"alpha", "beta", "mu", "omega", "zeta"}
	for i := 0; i < 20; i++ {
		assert.Equal(t, want, f.Children("root"))
	}
	assert.Empty(t, f.Children("alpha"))
}
