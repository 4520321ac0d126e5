package fetch

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jmswen/paperdigest/internal/database"
)

// Metadata is what a registry lookup yields for an external identifier.
type Metadata struct {
	Title    string
	Abstract string
}

// MetadataSource resolves an external identifier to bibliographic
// metadata. A nil result with nil error means the registry has no entry.
type MetadataSource interface {
	Lookup(ctx context.Context, externalID string) (*Metadata, error)
}

// OAResolver finds an open-access document URL for an external
// identifier. An empty result with nil error means no location is known.
type OAResolver interface {
	ResolvePDF(ctx context.Context, externalID string) (string, error)
}

// Options configures the acquisition cascade.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MinPDFBytes  int
	SniffLabels  []string
	DownloadDir  string
	HostInterval time.Duration
	HostJitter   time.Duration
	BatchLimit   int
	MaxRetries   int
}

// Fetcher runs the acquisition cascade over a batch of pending records.
type Fetcher struct {
	db      *database.DB
	meta    MetadataSource
	oa      OAResolver
	sniffer *Sniffer
	gate    *HostGate
	client  *http.Client
	opts    Options
}

// New creates a Fetcher. meta and oa may be nil, which disables the
// abstract fallback and open-access resolution respectively.
func New(db *database.DB, meta MetadataSource, oa OAResolver, opts Options) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MinPDFBytes == 0 {
		opts.MinPDFBytes = 1024
	}
	if len(opts.SniffLabels) == 0 {
		opts.SniffLabels = []string{"download", "full text", "pdf"}
	}
	if opts.BatchLimit == 0 {
		opts.BatchLimit = 25
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	return &Fetcher{
		db:      db,
		meta:    meta,
		oa:      oa,
		sniffer: NewSniffer(opts.SniffLabels),
		gate:    NewHostGate(opts.HostInterval, opts.HostJitter),
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
	}
}

// Result summarizes one acquisition batch. Exhausted lists the records
// that used up their retry budget during this batch.
type Result struct {
	Attempted    int
	Downloaded   int
	AbstractOnly int
	Deferred     int
	Failed       int
	Exhausted    []string
}

func (r *Result) String() string {
	return fmt.Sprintf("%d attempted, %d downloaded, %d abstract-only, %d deferred, %d failed",
		r.Attempted, r.Downloaded, r.AbstractOnly, r.Deferred, r.Failed)
}

// Run selects the next acquisition batch and works through it, one record
// at a time. One record's failure never aborts its siblings.
func (f *Fetcher) Run(ctx context.Context) (*Result, error) {
	records, err := f.db.SelectForAcquisition(f.opts.BatchLimit, f.opts.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("selecting acquisition batch: %w", err)
	}

	result := &Result{}
	for i := range records {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		rec := &records[i]
		result.Attempted++

		status, err := f.acquire(ctx, rec)
		switch {
		case err != nil && IsTransient(err):
			// Back off: the record keeps its status and is
			// re-offered on a later run.
			log.Printf("fetch: deferring %s: %v", rec.Fingerprint, err)
			if dbErr := f.db.BumpRetry(rec.Fingerprint, err.Error()); dbErr != nil {
				log.Printf("fetch: recording deferral for %s: %v", rec.Fingerprint, dbErr)
			}
			result.Deferred++
		case err != nil:
			log.Printf("fetch: failed %s: %v", rec.Fingerprint, err)
			if dbErr := f.db.MarkDownloadFailed(rec.Fingerprint, err.Error()); dbErr != nil {
				log.Printf("fetch: recording failure for %s: %v", rec.Fingerprint, dbErr)
			}
			result.Failed++
			if rec.RetryCount+1 >= f.opts.MaxRetries {
				result.Exhausted = append(result.Exhausted, rec.Fingerprint)
			}
		case status == database.StatusAbstractOnly:
			result.AbstractOnly++
		default:
			result.Downloaded++
		}
	}

	log.Printf("fetch: %s", result)
	return result, nil
}

// acquire runs the strategy cascade for one record and persists the first
// success. A transient error aborts the attempt; any other error means
// every strategy was exhausted.
func (f *Fetcher) acquire(ctx context.Context, rec *database.Record) (database.Status, error) {
	docURL := strValue(rec.URL)
	externalID := strValue(rec.ExternalID)
	doi := ""
	if strings.HasPrefix(externalID, "10.") {
		doi = externalID
	}

	// DOI-only records first ask the open-access resolver for a
	// concrete location.
	if docURL == "" && doi != "" && f.oa != nil {
		resolved, err := f.oa.ResolvePDF(ctx, doi)
		if err != nil {
			if IsTransient(err) {
				return "", err
			}
			log.Printf("fetch: oa lookup for %s: %v", doi, err)
		}
		if resolved != "" {
			if err := f.db.SetURL(rec.Fingerprint, resolved); err != nil {
				return "", err
			}
			docURL = resolved
		}
	}

	var skips []string
	var landing *page

	// Strategy 1: direct fetch.
	if docURL == "" {
		skips = append(skips, "no document url")
	} else {
		pg, err := f.get(ctx, docURL)
		switch {
		case err != nil && IsTransient(err):
			return "", err
		case err != nil:
			skips = append(skips, err.Error())
		case pg.status >= 400:
			skips = append(skips, fmt.Sprintf("http %d at %s", pg.status, docURL))
		case isPDFCandidate(pg):
			status, err := f.storePDF(rec, pg)
			if err == nil {
				return status, nil
			}
			skips = append(skips, err.Error())
		case isHTML(pg):
			landing = pg
		default:
			skips = append(skips, fmt.Sprintf("unusable content type %q", pg.contentType))
		}
	}

	// Strategy 2: sniff the landing page for the real document link,
	// following at most one intermediate page.
	current := landing
	for depth := 0; current != nil && depth < 2; depth++ {
		link := f.sniffer.FindDocumentLink(current.body, current.finalURL)
		if link == "" {
			if depth == 0 {
				skips = append(skips, "no document link on page")
			}
			break
		}
		pg, err := f.get(ctx, link)
		switch {
		case err != nil && IsTransient(err):
			return "", err
		case err != nil:
			skips = append(skips, err.Error())
			current = nil
		case pg.status >= 400:
			skips = append(skips, fmt.Sprintf("http %d at sniffed %s", pg.status, link))
			current = nil
		case isPDFCandidate(pg):
			status, err := f.storePDF(rec, pg)
			if err == nil {
				return status, nil
			}
			skips = append(skips, err.Error())
			current = nil
		case isHTML(pg):
			current = pg
		default:
			skips = append(skips, fmt.Sprintf("sniffed link has unusable content type %q", pg.contentType))
			current = nil
		}
	}

	// Strategy 3: registry abstract for identifier-bearing records.
	if doi != "" && f.meta != nil {
		md, err := f.meta.Lookup(ctx, doi)
		switch {
		case err != nil && IsTransient(err):
			return "", err
		case err != nil:
			skips = append(skips, err.Error())
		case md == nil:
			skips = append(skips, "identifier not in registry")
		case md.Abstract == "":
			skips = append(skips, "registry has no abstract")
		default:
			content := md.Abstract
			if md.Title != "" {
				content = md.Title + "\n\n" + md.Abstract
			}
			if err := f.db.SetAcquired(rec.Fingerprint, database.StatusAbstractOnly,
				database.KindAbstractOnly, content, nil); err != nil {
				return "", err
			}
			return database.StatusAbstractOnly, nil
		}
	}

	// Last resort: a landing page with substantial readable text is a
	// degraded full-text success.
	if landing != nil {
		if text := ExtractReadableText(landing.body, landing.finalURL.String()); text != "" {
			if err := f.db.SetAcquired(rec.Fingerprint, database.StatusDownloaded,
				database.KindWebText, text, nil); err != nil {
				return "", err
			}
			return database.StatusDownloaded, nil
		}
		skips = append(skips, "page has no readable text")
	}

	return "", fmt.Errorf("all strategies exhausted: %s", strings.Join(skips, "; "))
}

// storePDF materializes a PDF response and records the acquisition.
func (f *Fetcher) storePDF(rec *database.Record, pg *page) (database.Status, error) {
	path, text, err := f.acceptPDF(rec.Fingerprint, pg)
	if err != nil {
		return "", err
	}
	if err := f.db.SetAcquired(rec.Fingerprint, database.StatusDownloaded,
		database.KindFullText, text, &path); err != nil {
		return "", err
	}
	return database.StatusDownloaded, nil
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
