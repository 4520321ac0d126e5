// Package pipeline orchestrates one discrete run: discover, acquire,
// analyze, deliver.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/jmswen/paperdigest/internal/analyze"
	"github.com/jmswen/paperdigest/internal/config"
	"github.com/jmswen/paperdigest/internal/database"
	"github.com/jmswen/paperdigest/internal/deliver"
	"github.com/jmswen/paperdigest/internal/discover"
	"github.com/jmswen/paperdigest/internal/fetch"
	"github.com/jmswen/paperdigest/internal/mailbox"
	"github.com/jmswen/paperdigest/internal/registry"
	"github.com/jmswen/paperdigest/internal/report"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	PeriodID string
	Steps    []StepResult
}

// Pipeline orchestrates the 4-step digest pipeline.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	provider analyze.Provider
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	summ := cfg.Summarization
	provider := analyze.CreateProvider(
		summ.Provider,
		summ.Model,
		summ.OllamaURL,
		summ.OpenAIModel,
		summ.APIKeyEnv,
	)
	return &Pipeline{cfg: cfg, db: db, provider: provider}
}

// Run executes the full pipeline for one period. Steps run in order and
// each later step works with whatever the earlier ones managed to do; a
// failing step is recorded, not fatal.
func (p *Pipeline) Run(ctx context.Context, periodID string) *Result {
	r := &Result{PeriodID: periodID}

	// Step 1: Discover
	step, discovered := p.runDiscover()
	r.Steps = append(r.Steps, step)

	// Step 2: Acquire
	step, acquired := p.runAcquire(ctx)
	r.Steps = append(r.Steps, step)

	// Step 3: Analyze
	step, analyzed := p.runAnalyze(ctx)
	r.Steps = append(r.Steps, step)

	// Step 4: Deliver
	step = p.runDeliver(ctx, periodID, acquired, analyzed)
	r.Steps = append(r.Steps, step)

	acquiredCount, failedCount := 0, 0
	if acquired != nil {
		acquiredCount = acquired.Downloaded + acquired.AbstractOnly
		failedCount += acquired.Failed
	}
	analyzedCount := 0
	if analyzed != nil {
		analyzedCount = analyzed.Analyzed
		failedCount += analyzed.Failed
	}
	if err := p.db.InsertReport(periodID, discovered, acquiredCount, analyzedCount, failedCount); err != nil {
		log.Printf("pipeline: recording run report: %v", err)
	}

	return r
}

// DryRun shows what a run would do without touching the network.
func (p *Pipeline) DryRun(periodID string) *Result {
	r := &Result{PeriodID: periodID}

	stats, err := p.db.GetStats()
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Status", Err: err})
		return r
	}

	pendingAcq, _ := p.db.SelectForAcquisition(p.cfg.Batch.AcquireLimit, p.cfg.Batch.MaxRetries)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Acquire",
		Summary: fmt.Sprintf("[dry-run] %d records in the next acquisition batch (%d pending overall)", len(pendingAcq), stats.Pending),
	})

	pendingAn, _ := p.db.SelectForAnalysis(p.cfg.Batch.AnalyzeLimit, p.cfg.Batch.MaxRetries)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Analyze",
		Summary: fmt.Sprintf("[dry-run] %d records in the next analysis batch", len(pendingAn)),
	})

	r.Steps = append(r.Steps, StepResult{
		Name:    "Deliver",
		Summary: fmt.Sprintf("[dry-run] %d bundles pending redelivery", stats.PendingDelivery),
	})

	return r
}

func (p *Pipeline) runDiscover() (StepResult, int) {
	log.Println("Step 1/4: Discovering references...")

	var sources []discover.MessageSource
	if p.cfg.Mailbox.Server != "" {
		sources = append(sources, mailbox.New(mailbox.Config{
			Server:   p.cfg.Mailbox.Server,
			UserEnv:  p.cfg.Mailbox.UserEnv,
			PassEnv:  p.cfg.Mailbox.PassEnv,
			Lookback: time.Duration(p.cfg.Mailbox.LookbackHours) * time.Hour,
			Subjects: p.cfg.Mailbox.Subjects,
		}))
	}

	var feeds *discover.FeedParser
	if len(p.cfg.Feeds) > 0 {
		var fcs []discover.FeedConfig
		for _, f := range p.cfg.Feeds {
			fcs = append(fcs, discover.FeedConfig{URL: f.URL, Name: f.Name})
		}
		feeds = discover.NewFeedParser(fcs)
	}

	result := discover.NewDiscoverer(p.db, sources, feeds).Run()
	return StepResult{
		Name: "Discover",
		Summary: fmt.Sprintf("Found %d references (%d new, %d duplicates)",
			result.TotalFound, result.NewRecords, result.Duplicates),
	}, result.NewRecords
}

func (p *Pipeline) runAcquire(ctx context.Context) (StepResult, *fetch.Result) {
	log.Println("Step 2/4: Acquiring documents...")

	fetcher := fetch.New(p.db,
		registry.NewCrossref(p.cfg.Registry.CrossrefMailto),
		registry.NewUnpaywall(p.cfg.Registry.UnpaywallEmail),
		fetch.Options{
			UserAgent:    p.cfg.Fetch.UserAgent,
			Timeout:      time.Duration(p.cfg.Fetch.TimeoutSeconds) * time.Second,
			MinPDFBytes:  p.cfg.Fetch.MinPDFBytes,
			SniffLabels:  p.cfg.Fetch.SniffLabels,
			DownloadDir:  p.cfg.DownloadDir(),
			HostInterval: time.Duration(p.cfg.Fetch.HostIntervalMS) * time.Millisecond,
			HostJitter:   time.Duration(p.cfg.Fetch.HostJitterMS) * time.Millisecond,
			BatchLimit:   p.cfg.Batch.AcquireLimit,
			MaxRetries:   p.cfg.Batch.MaxRetries,
		})

	result, err := fetcher.Run(ctx)
	if err != nil {
		return StepResult{Name: "Acquire", Err: err}, result
	}
	return StepResult{Name: "Acquire", Summary: result.String()}, result
}

func (p *Pipeline) runAnalyze(ctx context.Context) (StepResult, *analyze.Result) {
	log.Println("Step 3/4: Analyzing documents...")

	analyzer := p.newAnalyzer()
	result, err := analyzer.Run(ctx)
	if err != nil {
		return StepResult{Name: "Analyze", Err: err}, result
	}
	return StepResult{
		Name: "Analyze",
		Summary: fmt.Sprintf("Analyzed %d of %d records, %d failed",
			result.Analyzed, result.Attempted, result.Failed),
	}, result
}

func (p *Pipeline) runDeliver(ctx context.Context, periodID string, acquired *fetch.Result, analyzed *analyze.Result) StepResult {
	log.Println("Step 4/4: Delivering digest...")

	analyzedRecs := p.lookupRecords(analyzedFingerprints(analyzed))
	failedRecs := p.lookupRecords(exhaustedFingerprints(acquired, analyzed))

	if len(analyzedRecs) == 0 && len(failedRecs) == 0 {
		return StepResult{Name: "Deliver", Summary: "Nothing to deliver"}
	}

	// Best-effort title translations for the failure list.
	analyzer := p.newAnalyzer()
	for _, rec := range failedRecs {
		if rec.DisplayTitle != nil && rec.TranslatedTitle == nil && p.provider != nil {
			analyzer.TranslateTitle(ctx, rec.Fingerprint, *rec.DisplayTitle)
		}
	}
	failedRecs = p.lookupRecords(exhaustedFingerprints(acquired, analyzed))

	md := report.Build(periodID, analyzedRecs, failedRecs)
	html, err := report.RenderHTML(md)
	if err != nil {
		log.Printf("pipeline: rendering html report: %v", err)
		html = ""
	}

	var artifacts []string
	for _, rec := range analyzedRecs {
		if rec.ArtifactPath != nil {
			artifacts = append(artifacts, *rec.ArtifactPath)
		}
	}

	deliverer := deliver.New(p.db,
		deliver.NewMailer(deliver.SMTPConfig{
			Server:  p.cfg.Delivery.SMTPServer,
			Port:    p.cfg.Delivery.SMTPPort,
			UserEnv: p.cfg.Delivery.UserEnv,
			PassEnv: p.cfg.Delivery.PassEnv,
			To:      p.cfg.Delivery.To,
		}),
		deliver.Options{
			BundleDir:      filepath.Join(p.cfg.GetDataDir(), "bundles"),
			MaxBundleBytes: int64(p.cfg.Delivery.MaxBundleMB) << 20,
		})

	if retried, err := deliverer.RetryPending(); err != nil {
		log.Printf("pipeline: retrying pending deliveries: %v", err)
	} else if retried > 0 {
		log.Printf("pipeline: redelivered %d pending bundles", retried)
	}

	result, err := deliverer.Run(periodID, md, html, artifacts)
	if err != nil {
		return StepResult{Name: "Deliver", Err: err}
	}
	return StepResult{
		Name:    "Deliver",
		Summary: fmt.Sprintf("Sent %d of %d parts (%d records, %d failures reported)", result.Sent, result.Parts, len(analyzedRecs), len(failedRecs)),
	}
}

func (p *Pipeline) newAnalyzer() *analyze.Analyzer {
	return analyze.New(p.db, p.provider, analyze.Options{
		BatchLimit:    p.cfg.Batch.AnalyzeLimit,
		MaxRetries:    p.cfg.Batch.MaxRetries,
		MaxTokens:     p.cfg.Summarization.MaxTokens,
		MaxInputChars: p.cfg.Summarization.MaxInputChars,
	})
}

func (p *Pipeline) lookupRecords(fingerprints []string) []database.Record {
	var records []database.Record
	for _, fp := range fingerprints {
		rec, err := p.db.GetRecord(fp)
		if err != nil || rec == nil {
			continue
		}
		records = append(records, *rec)
	}
	return records
}

func analyzedFingerprints(analyzed *analyze.Result) []string {
	if analyzed == nil {
		return nil
	}
	return analyzed.Fingerprints
}

func exhaustedFingerprints(acquired *fetch.Result, analyzed *analyze.Result) []string {
	var fps []string
	if acquired != nil {
		fps = append(fps, acquired.Exhausted...)
	}
	if analyzed != nil {
		fps = append(fps, analyzed.Exhausted...)
	}
	return fps
}
