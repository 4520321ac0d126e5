// Package report assembles the per-run markdown digest and its HTML
// rendering.
package report

import (
	"fmt"
	"strings"

	"github.com/jmswen/paperdigest/internal/database"
)

// Build assembles the digest for one period. Failures lead the report so
// the reader sees what needs manual attention before the summaries.
func Build(periodID string, analyzed, failed []database.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Paper digest, %s\n\n", database.FormatPeriodDisplay(periodID))
	fmt.Fprintf(&b, "%d analyzed, %d could not be processed.\n\n", len(analyzed), len(failed))

	if len(failed) > 0 {
		b.WriteString("## Could not be processed\n\n")
		for i := range failed {
			b.WriteString("- " + failedLine(&failed[i]) + "\n")
		}
		b.WriteString("\n")
	}

	if len(analyzed) > 0 {
		b.WriteString("## Summaries\n\n")
		for i := range analyzed {
			r := &analyzed[i]
			fmt.Fprintf(&b, "### %s\n\n", displayName(r))
			if note := degradedNote(r.ContentKind); note != "" {
				b.WriteString("*" + note + "*\n\n")
			}
			if r.Analysis != nil {
				b.WriteString(strings.TrimSpace(*r.Analysis) + "\n\n")
			}
		}
	}

	return b.String()
}

// failedLine renders one entry of the failure list: name, translated
// title when one exists, a link for manual follow-up, and the reason.
func failedLine(r *database.Record) string {
	parts := []string{"**" + displayName(r) + "**"}
	if r.TranslatedTitle != nil && *r.TranslatedTitle != "" && !sameTitle(r) {
		parts = append(parts, "("+*r.TranslatedTitle+")")
	}
	if r.URL != nil && *r.URL != "" {
		parts = append(parts, "<"+*r.URL+">")
	}
	if r.FailureReason != nil && *r.FailureReason != "" {
		parts = append(parts, "failed: "+*r.FailureReason)
	}
	return strings.Join(parts, " ")
}

func sameTitle(r *database.Record) bool {
	return r.DisplayTitle != nil && r.TranslatedTitle != nil &&
		strings.EqualFold(strings.TrimSpace(*r.DisplayTitle), strings.TrimSpace(*r.TranslatedTitle))
}

// displayName picks the most human-readable handle a record has.
func displayName(r *database.Record) string {
	if r.DisplayTitle != nil && *r.DisplayTitle != "" {
		return *r.DisplayTitle
	}
	if r.ExternalID != nil && *r.ExternalID != "" {
		return *r.ExternalID
	}
	if r.URL != nil && *r.URL != "" {
		return *r.URL
	}
	return r.Fingerprint
}

// degradedNote labels summaries built from less than the full document.
func degradedNote(kind string) string {
	switch kind {
	case database.KindAbstractOnly:
		return "Abstract only: the full text could not be retrieved."
	case database.KindWebText:
		return "Summarized from the article's web page."
	default:
		return ""
	}
}
