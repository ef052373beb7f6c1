package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/storage"
)

var (
	ctx = context.Background()
	t0  = time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func try(cents int64) core.Money { return core.NewMoney(cents, "TRY") }

func personal(user, desc string, date core.Date, cents int64) core.Expense {
	return core.Expense{
		UserID:      user,
		Description: desc,
		Amount:      try(cents),
		Date:        date,
	}
}

func shareCents(shares []core.Share) []int64 {
	out := make([]int64, len(shares))
	for i, s := range shares {
		out[i] = s.Amount.Cents
	}
	return out
}
