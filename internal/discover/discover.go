package discover

import (
	"log"

	"github.com/jmswen/paperdigest/internal/database"
)

// Message is one raw notification consumed from a source: its body text
// plus any hyperlinks the source extracted separately (e.g. from HTML
// parts). Discovery is agnostic to how either was obtained.
type Message struct {
	Text string
	URLs []string
}

// MessageSource supplies raw notification messages.
type MessageSource interface {
	Name() string
	Fetch() ([]Message, error)
}

// Result holds the results of a discovery run.
type Result struct {
	Messages   int
	TotalFound int
	NewRecords int
	Duplicates int
}

// Discoverer converts notification messages and feed entries into records.
type Discoverer struct {
	db      *database.DB
	sources []MessageSource
	feeds   *FeedParser
}

// NewDiscoverer creates a discoverer over the given sources. Either part
// may be nil.
func NewDiscoverer(db *database.DB, sources []MessageSource, feeds *FeedParser) *Discoverer {
	return &Discoverer{db: db, sources: sources, feeds: feeds}
}

// Run pulls messages from every source, extracts candidates and upserts
// them into the record store. Re-discovering a known fingerprint is a
// no-op; a failing source never aborts the others.
func (d *Discoverer) Run() *Result {
	r := &Result{}

	for _, src := range d.sources {
		messages, err := src.Fetch()
		if err != nil {
			log.Printf("Source %s failed: %v", src.Name(), err)
			continue
		}
		r.Messages += len(messages)

		for _, msg := range messages {
			candidates := Extract(msg.Text)
			for _, raw := range msg.URLs {
				candidates = append(candidates, Candidate{Kind: KindLink, URL: raw})
			}
			d.upsertAll(candidates, r)
		}
	}

	if d.feeds != nil {
		d.upsertAll(d.feeds.ParseAll(), r)
	}

	log.Printf("Discovery complete: %d found, %d new, %d duplicates",
		r.TotalFound, r.NewRecords, r.Duplicates)
	return r
}

func (d *Discoverer) upsertAll(candidates []Candidate, r *Result) {
	for _, c := range candidates {
		r.TotalFound++

		var externalID, url, title *string
		if c.ExternalID != "" {
			externalID = &c.ExternalID
		}
		if c.URL != "" {
			url = &c.URL
		}
		if c.DisplayTitle != "" {
			title = &c.DisplayTitle
		}

		created, err := d.db.UpsertNew(c.Fingerprint(), externalID, url, title)
		if err != nil {
			log.Printf("Error upserting candidate %s: %v", c.Fingerprint(), err)
			continue
		}
		if created {
			r.NewRecords++
		} else {
			r.Duplicates++
		}
	}
}
