package database

import "testing"

func TestRunReports(t *testing.T) {
	db := openTestDB(t)

	last, err := db.GetLastRunDate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last != "" {
		t.Errorf("expected empty last run, got %q", last)
	}

	if err := db.InsertReport("2026-08-22", 12, 8, 7, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	db.InsertReport("2026-08-23", 4, 3, 3, 0)

	last, _ = db.GetLastRunDate()
	if last != "2026-08-23" {
		t.Errorf("expected '2026-08-23', got %q", last)
	}
}

func TestDeliveryLifecycle(t *testing.T) {
	db := openTestDB(t)

	id, err := db.InsertDelivery(&Delivery{
		PeriodID:   "2026-08-23",
		Part:       1,
		Parts:      2,
		BundlePath: ptr("/tmp/papers_part_1.zip"),
		ReportText: ptr("# Digest"),
		ReportHTML: ptr("<p>Digest</p>"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id2, _ := db.InsertDelivery(&Delivery{
		PeriodID:      "2026-08-23",
		Part:          2,
		Parts:         2,
		BundlePath:    ptr("/tmp/papers_part_2.zip"),
		ArtifactPaths: ptr("/tmp/a.pdf\n/tmp/b.pdf"),
	})

	pending, _ := db.PendingDeliveries()
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending deliveries, got %d", len(pending))
	}
	if pending[0].ReportText == nil || *pending[0].ReportText != "# Digest" {
		t.Error("expected the part-1 row to carry the report text")
	}
	if pending[1].ArtifactPaths == nil || *pending[1].ArtifactPaths != "/tmp/a.pdf\n/tmp/b.pdf" {
		t.Error("expected the artifact list to round-trip")
	}

	if err := db.MarkDeliverySent(id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.MarkDeliveryFailed(id2, "smtp timeout"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, _ = db.PendingDeliveries()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending delivery, got %d", len(pending))
	}
	if pending[0].Part != 2 {
		t.Errorf("expected part 2 pending, got %d", pending[0].Part)
	}
	if pending[0].LastError == nil || *pending[0].LastError != "smtp timeout" {
		t.Error("expected last_error to be recorded")
	}
}

func TestAbandonedDeliveryLeavesPendingSet(t *testing.T) {
	db := openTestDB(t)

	id, err := db.InsertDelivery(&Delivery{
		PeriodID:   "2026-08-22",
		Part:       1,
		Parts:      1,
		BundlePath: ptr("/tmp/gone.zip"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := db.MarkDeliveryAbandoned(id, "bundle and artifacts are gone"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, _ := db.PendingDeliveries()
	if len(pending) != 0 {
		t.Errorf("expected abandoned delivery to drop out of the pending set, got %d", len(pending))
	}

	stats, _ := db.GetStats()
	if stats.PendingDelivery != 0 {
		t.Errorf("expected 0 pending in stats, got %d", stats.PendingDelivery)
	}
}

func TestFormatPeriodDisplay(t *testing.T) {
	result := FormatPeriodDisplay("2026-08-23")
	if result != "Aug 23, 2026" {
		t.Errorf("expected 'Aug 23, 2026', got %q", result)
	}
	if FormatPeriodDisplay("garbage") != "garbage" {
		t.Error("expected unparseable period to pass through")
	}
}
