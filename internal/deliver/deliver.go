package deliver

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmswen/paperdigest/internal/database"
)

// Options configures bundling and delivery.
type Options struct {
	BundleDir      string
	MaxBundleBytes int64
}

// Deliverer turns a finished run into outgoing mail: the digest report
// plus size-capped zip bundles of the acquired documents.
type Deliverer struct {
	db        *database.DB
	transport Transport
	opts      Options
}

func New(db *database.DB, transport Transport, opts Options) *Deliverer {
	if opts.MaxBundleBytes == 0 {
		opts.MaxBundleBytes = 19 << 20
	}
	return &Deliverer{db: db, transport: transport, opts: opts}
}

// Result summarizes one delivery pass.
type Result struct {
	Parts  int
	Sent   int
	Failed int
}

// Run bundles the artifacts and sends one message per bundle. The first
// message carries the full report; continuations carry a short note. A
// run with no artifacts still sends the report as a single message.
// Transport failures are recorded for retry and never touch record state.
func (d *Deliverer) Run(periodID, reportMD, reportHTML string, artifacts []string) (*Result, error) {
	groups := Pack(d.collectItems(artifacts), d.opts.MaxBundleBytes)
	parts := len(groups)
	if parts == 0 {
		parts = 1
	}

	result := &Result{Parts: parts}
	for i := 1; i <= parts; i++ {
		del := &database.Delivery{PeriodID: periodID, Part: i, Parts: parts}
		if i <= len(groups) {
			path := filepath.Join(d.opts.BundleDir,
				fmt.Sprintf("papers_%s_part_%d.zip", periodID, i))
			joined := joinItemPaths(groups[i-1])
			del.BundlePath = &path
			del.ArtifactPaths = &joined
		}

		subject := "Paper digest " + periodID
		if parts > 1 {
			subject += fmt.Sprintf(" (part %d/%d)", i, parts)
		}
		text, html := reportMD, reportHTML
		if i == 1 {
			// The part-1 row keeps the report so a failed send can be
			// replayed verbatim on a later run.
			del.ReportText = &reportMD
			del.ReportHTML = &reportHTML
		} else {
			text = fmt.Sprintf("Attachment part %d of %d for the digest of %s. The report is in part 1.",
				i, parts, periodID)
			html = ""
		}

		id, err := d.db.InsertDelivery(del)
		if err != nil {
			return result, fmt.Errorf("registering delivery: %w", err)
		}

		var attachments []string
		if del.BundlePath != nil {
			if err := writeBundle(*del.BundlePath, groups[i-1]); err != nil {
				log.Printf("deliver: bundling part %d: %v", i, err)
				if dbErr := d.db.MarkDeliveryFailed(id, "bundling: "+err.Error()); dbErr != nil {
					log.Printf("deliver: recording bundle failure: %v", dbErr)
				}
				result.Failed++
				continue
			}
			attachments = []string{*del.BundlePath}
		}

		if err := d.transport.Send(subject, text, html, attachments); err != nil {
			log.Printf("deliver: sending part %d/%d: %v", i, parts, err)
			if dbErr := d.db.MarkDeliveryFailed(id, err.Error()); dbErr != nil {
				log.Printf("deliver: recording send failure: %v", dbErr)
			}
			result.Failed++
			continue
		}
		if err := d.db.MarkDeliverySent(id); err != nil {
			log.Printf("deliver: recording sent part %d/%d: %v", i, parts, err)
		}
		result.Sent++
	}

	log.Printf("deliver: %d parts, %d sent, %d failed", result.Parts, result.Sent, result.Failed)
	return result, nil
}

var errBundleGone = errors.New("bundle and artifacts are gone")

// RetryPending resends messages whose send failed on an earlier run. The
// stored report is replayed verbatim for the part that carried it; a
// missing bundle is rebuilt from its surviving artifacts. Returns the
// number successfully sent.
func (d *Deliverer) RetryPending() (int, error) {
	pending, err := d.db.PendingDeliveries()
	if err != nil {
		return 0, fmt.Errorf("listing pending deliveries: %w", err)
	}

	sent := 0
	for _, del := range pending {
		attachments, err := d.restoreBundle(&del)
		if errors.Is(err, errBundleGone) {
			log.Printf("deliver: %s part %d: %v, abandoning", del.PeriodID, del.Part, err)
			if dbErr := d.db.MarkDeliveryAbandoned(del.ID, err.Error()); dbErr != nil {
				log.Printf("deliver: recording abandoned delivery: %v", dbErr)
			}
			continue
		}
		if err != nil {
			log.Printf("deliver: %s part %d: %v", del.PeriodID, del.Part, err)
			if dbErr := d.db.MarkDeliveryFailed(del.ID, err.Error()); dbErr != nil {
				log.Printf("deliver: recording retry failure: %v", dbErr)
			}
			continue
		}

		subject := fmt.Sprintf("Paper digest %s (part %d/%d, redelivery)",
			del.PeriodID, del.Part, del.Parts)
		body := fmt.Sprintf("Redelivery of attachment part %d of %d for the digest of %s.",
			del.Part, del.Parts, del.PeriodID)
		html := ""
		if del.ReportText != nil {
			body = *del.ReportText
			if del.ReportHTML != nil {
				html = *del.ReportHTML
			}
		}

		if err := d.transport.Send(subject, body, html, attachments); err != nil {
			log.Printf("deliver: retrying %s part %d: %v", del.PeriodID, del.Part, err)
			if dbErr := d.db.MarkDeliveryFailed(del.ID, err.Error()); dbErr != nil {
				log.Printf("deliver: recording retry failure: %v", dbErr)
			}
			continue
		}
		if err := d.db.MarkDeliverySent(del.ID); err != nil {
			log.Printf("deliver: recording retried send: %v", err)
		}
		sent++
	}
	return sent, nil
}

// restoreBundle returns the attachment list for a pending delivery. A
// bundle file that disappeared between runs is rebuilt from whichever of
// its artifacts still exist; errBundleGone means nothing is left to
// attach.
func (d *Deliverer) restoreBundle(del *database.Delivery) ([]string, error) {
	if del.BundlePath == nil {
		return nil, nil
	}
	if _, err := os.Stat(*del.BundlePath); err == nil {
		return []string{*del.BundlePath}, nil
	}

	items := d.collectItems(splitArtifactPaths(del.ArtifactPaths))
	if len(items) == 0 {
		return nil, errBundleGone
	}
	if err := writeBundle(*del.BundlePath, items); err != nil {
		return nil, fmt.Errorf("rebuilding bundle: %w", err)
	}
	return []string{*del.BundlePath}, nil
}

func joinItemPaths(items []Item) string {
	paths := make([]string, len(items))
	for i, it := range items {
		paths[i] = it.Path
	}
	return strings.Join(paths, "\n")
}

func splitArtifactPaths(joined *string) []string {
	if joined == nil || *joined == "" {
		return nil
	}
	return strings.Split(*joined, "\n")
}

// collectItems stats the artifact files, dropping any that have gone
// missing since acquisition.
func (d *Deliverer) collectItems(artifacts []string) []Item {
	var items []Item
	for _, path := range artifacts {
		info, err := os.Stat(path)
		if err != nil {
			log.Printf("deliver: skipping missing artifact %s: %v", path, err)
			continue
		}
		items = append(items, Item{Path: path, Size: info.Size()})
	}
	return items
}
