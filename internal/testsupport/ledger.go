package testsupport

import (
	"context"
	"testing"

	"romgrab/internal/config"
	"romgrab/internal/history"
)

// MustOpenLedger opens a history.Ledger for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *history.Ledger {
	t.Helper()

	ledger, err := history.OpenFromConfig(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = ledger.Close()
	})
	return ledger
}

// LedgerRecords returns every ledger row, most recent first.
func LedgerRecords(t testing.TB, ledger *history.Ledger) []history.Record {
	t.Helper()

	records, err := ledger.Collect(context.Background(), history.Filter{})
	if err != nil {
		t.Fatalf("history.Collect: %v", err)
	}
	return records
}
