// Package analyze runs LLM summarization over acquired records.
package analyze

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jmswen/paperdigest/internal/database"
)

// Options configures the analysis batch.
type Options struct {
	BatchLimit    int
	MaxRetries    int
	MaxTokens     int
	MaxInputChars int
}

// Analyzer drives the analysis step: select acquired records, summarize
// their stored text, persist the result.
type Analyzer struct {
	db       *database.DB
	provider Provider
	opts     Options
}

// New creates an Analyzer. provider may be nil, in which case Run fails
// fast and records stay where they are.
func New(db *database.DB, provider Provider, opts Options) *Analyzer {
	if opts.BatchLimit == 0 {
		opts.BatchLimit = 10
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1024
	}
	if opts.MaxInputChars == 0 {
		opts.MaxInputChars = 50000
	}
	return &Analyzer{db: db, provider: provider, opts: opts}
}

// Result summarizes one analysis batch. Fingerprints lists the records
// analyzed this batch; Exhausted the ones that used up their retry budget.
type Result struct {
	Attempted    int
	Analyzed     int
	Failed       int
	Fingerprints []string
	Exhausted    []string
}

// Run analyzes the next batch of acquired records. One record's failure
// never aborts its siblings.
func (a *Analyzer) Run(ctx context.Context) (*Result, error) {
	if a.provider == nil {
		return nil, fmt.Errorf("no LLM provider configured")
	}

	records, err := a.db.SelectForAnalysis(a.opts.BatchLimit, a.opts.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("selecting analysis batch: %w", err)
	}

	result := &Result{}
	for i := range records {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		rec := &records[i]
		result.Attempted++

		analysis, err := a.analyzeOne(ctx, rec)
		if err != nil {
			log.Printf("analyze: failed %s: %v", rec.Fingerprint, err)
			if dbErr := a.db.MarkAnalysisFailed(rec.Fingerprint, err.Error()); dbErr != nil {
				log.Printf("analyze: recording failure for %s: %v", rec.Fingerprint, dbErr)
			}
			result.Failed++
			if rec.RetryCount+1 >= a.opts.MaxRetries {
				result.Exhausted = append(result.Exhausted, rec.Fingerprint)
			}
			continue
		}
		if err := a.db.SetAnalyzed(rec.Fingerprint, analysis); err != nil {
			log.Printf("analyze: storing analysis for %s: %v", rec.Fingerprint, err)
			result.Failed++
			continue
		}
		result.Analyzed++
		result.Fingerprints = append(result.Fingerprints, rec.Fingerprint)
	}

	log.Printf("analyze: %d attempted, %d analyzed, %d failed",
		result.Attempted, result.Analyzed, result.Failed)
	return result, nil
}

func (a *Analyzer) analyzeOne(ctx context.Context, rec *database.Record) (string, error) {
	content := ""
	if rec.Content != nil {
		content = strings.TrimSpace(*rec.Content)
	}
	if content == "" {
		return "", fmt.Errorf("no stored text to analyze")
	}
	if len(content) > a.opts.MaxInputChars {
		content = strings.ToValidUTF8(content[:a.opts.MaxInputChars], "")
	}

	prompt := buildAnalysisPrompt(rec, content)
	out, err := a.provider.Generate(ctx, prompt, a.opts.MaxTokens)
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("llm returned an empty analysis")
	}
	return out, nil
}

// sourceLabel tells the model what it is actually looking at, so degraded
// material is never summarized as if it were the full document.
func sourceLabel(kind string) string {
	switch kind {
	case database.KindFullText:
		return "the full text of the document"
	case database.KindAbstractOnly:
		return "only the published abstract; the full text was not available"
	case database.KindWebText:
		return "text extracted from the article's web page; the original document was not available"
	default:
		return "partial material from the document"
	}
}

func buildAnalysisPrompt(rec *database.Record, content string) string {
	var b strings.Builder
	b.WriteString("You are a research assistant summarizing scholarly literature for a daily reading digest.\n")
	b.WriteString("The material below is " + sourceLabel(rec.ContentKind) + ".\n\n")
	b.WriteString("Write a concise summary covering: the research question, the main argument, ")
	b.WriteString("the evidence or sources used, and why the work might matter to the reader. ")
	b.WriteString("Plain prose, no markdown headings.\n\n")
	if rec.DisplayTitle != nil && *rec.DisplayTitle != "" {
		b.WriteString("Title: " + *rec.DisplayTitle + "\n")
	}
	if rec.ExternalID != nil && *rec.ExternalID != "" {
		b.WriteString("Identifier: " + *rec.ExternalID + "\n")
	}
	b.WriteString("\nMaterial:\n")
	b.WriteString(content)
	return b.String()
}
