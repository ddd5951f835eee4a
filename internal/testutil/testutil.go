package testutil

import (
	"path/filepath"
	"testing"

	"github.com/allaspectsdev/budgetd/internal/config"
	"github.com/allaspectsdev/budgetd/internal/store"
)

// NewTestStore creates a temporary SQLite store for testing.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// NewTestConfig returns a minimal valid config for testing.
func NewTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.DataDir = t.TempDir()
	return cfg
}

// SeedProject inserts the standard seed record used across tests,
// mirroring the original service's fixture data.
func SeedProject(t *testing.T, st *store.Store) *store.Project {
	t.Helper()
	p := &store.Project{
		ProjectID:                      1,
		ProjectName:                    "Initial Project",
		Year:                           2023,
		Currency:                       "USD",
		InitialBudgetLocal:             500000,
		BudgetUSD:                      500000,
		InitialScheduleEstimateMonths:  12,
		AdjustedScheduleEstimateMonths: 12,
		ContingencyRate:                0.1,
		EscalationRate:                 0.05,
		FinalBudgetUSD:                 550000,
	}
	if err := st.InsertProject(p); err != nil {
		t.Fatalf("failed to seed project: %v", err)
	}
	return p
}
