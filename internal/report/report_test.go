package report

import (
	"strings"
	"testing"

	"github.com/jmswen/paperdigest/internal/database"
)

func ptr(s string) *string { return &s }

func TestBuildFailuresLeadTheReport(t *testing.T) {
	analyzed := []database.Record{{
		Fingerprint:  "fp1",
		DisplayTitle: ptr("A Fine Paper"),
		ContentKind:  database.KindFullText,
		Analysis:     ptr("It argues something."),
	}}
	failed := []database.Record{{
		Fingerprint:   "10.1/x",
		ExternalID:    ptr("10.1/x"),
		URL:           ptr("https://doi.org/10.1/x"),
		FailureReason: ptr("all strategies exhausted"),
	}}

	md := Build("2026-08-23", analyzed, failed)

	failIdx := strings.Index(md, "Could not be processed")
	sumIdx := strings.Index(md, "Summaries")
	if failIdx < 0 || sumIdx < 0 {
		t.Fatalf("missing sections in report:\n%s", md)
	}
	if failIdx > sumIdx {
		t.Error("failure list must come before the summaries")
	}
	if !strings.Contains(md, "1 analyzed, 1 could not be processed") {
		t.Error("expected the count header")
	}
	if !strings.Contains(md, "https://doi.org/10.1/x") {
		t.Error("expected a follow-up link for the failed record")
	}
	if !strings.Contains(md, "all strategies exhausted") {
		t.Error("expected the failure reason")
	}
}

func TestBuildUsesTranslatedTitle(t *testing.T) {
	failed := []database.Record{{
		Fingerprint:     "fp1",
		DisplayTitle:    ptr("Über die Methode"),
		TranslatedTitle: ptr("On Method"),
		FailureReason:   ptr("http 404"),
	}}

	md := Build("2026-08-23", nil, failed)
	if !strings.Contains(md, "Über die Methode") || !strings.Contains(md, "(On Method)") {
		t.Errorf("expected original and translated titles:\n%s", md)
	}
}

func TestBuildLabelsDegradedSummaries(t *testing.T) {
	analyzed := []database.Record{{
		Fingerprint: "fp1",
		ContentKind: database.KindAbstractOnly,
		Analysis:    ptr("Summary from abstract."),
	}}

	md := Build("2026-08-23", analyzed, nil)
	if !strings.Contains(md, "Abstract only") {
		t.Errorf("expected a degraded-content label:\n%s", md)
	}
}

func TestBuildEmptyRun(t *testing.T) {
	md := Build("2026-08-23", nil, nil)
	if !strings.Contains(md, "0 analyzed, 0 could not be processed") {
		t.Errorf("expected an explicit empty digest:\n%s", md)
	}
	if strings.Contains(md, "##") {
		t.Error("expected no sections in an empty digest")
	}
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("# Paper digest\n\nSome *text*.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(html, "<h1") || !strings.Contains(html, "<em>text</em>") {
		t.Errorf("unexpected rendering:\n%s", html)
	}
	if !strings.Contains(html, "<!DOCTYPE html>") {
		t.Error("expected a complete document")
	}
}
