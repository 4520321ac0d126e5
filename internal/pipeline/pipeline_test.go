package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmswen/paperdigest/internal/config"
	"github.com/jmswen/paperdigest/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testConfig deliberately leaves the mailbox and provider unset so no
// step reaches for the network.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Batch:         config.Batch{AcquireLimit: 5, AnalyzeLimit: 5, MaxRetries: 3},
		Summarization: config.Summarization{Provider: "none"},
		Output:        config.Output{DataDir: t.TempDir()},
	}
}

func ptr(s string) *string { return &s }

func TestDryRunCountsPendingWork(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.UpsertNew("fp1", nil, ptr("https://example.com/a.pdf"), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpsertNew("fp2", nil, ptr("https://example.com/b.pdf"), nil); err != nil {
		t.Fatal(err)
	}

	p := New(testConfig(t), db)
	r := p.DryRun("2026-08-23")

	if len(r.Steps) != 3 {
		t.Fatalf("expected 3 dry-run steps, got %d", len(r.Steps))
	}
	if !strings.Contains(r.Steps[0].Summary, "2 records") {
		t.Errorf("expected 2 pending acquisitions, got %q", r.Steps[0].Summary)
	}
}

func TestRunRecordsReport(t *testing.T) {
	db := openTestDB(t)
	p := New(testConfig(t), db)

	r := p.Run(context.Background(), "2026-08-23")
	if len(r.Steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(r.Steps))
	}
	if r.Steps[2].Err == nil {
		t.Error("expected the analyze step to fail without a provider")
	}
	if !strings.Contains(r.Steps[3].Summary, "Nothing to deliver") {
		t.Errorf("expected an empty delivery, got %q", r.Steps[3].Summary)
	}

	last, err := db.GetLastRunDate()
	if err != nil {
		t.Fatal(err)
	}
	if last != "2026-08-23" {
		t.Errorf("expected a run report for the period, got %q", last)
	}
}
