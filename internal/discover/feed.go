package discover

import (
	"log"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
)

const maxPerFeed = 50

var arxivAbsExpr = regexp.MustCompile(`arxiv\.org/abs/(\d{4}\.\d{4,5}(?:v\d+)?)`)

// FeedConfig represents a single alert feed configuration.
type FeedConfig struct {
	URL  string
	Name string
}

// FeedParser turns RSS/Atom alert feed entries into candidates.
type FeedParser struct {
	feeds []FeedConfig
}

// NewFeedParser creates a new FeedParser.
func NewFeedParser(feeds []FeedConfig) *FeedParser {
	return &FeedParser{feeds: feeds}
}

// ParseAll parses all configured feeds and returns their entries as
// candidates. arXiv abstract links are promoted to external-id candidates
// so they fingerprint by id rather than by URL.
func (fp *FeedParser) ParseAll() []Candidate {
	var all []Candidate

	parser := gofeed.NewParser()
	for _, fc := range fp.feeds {
		feed, err := parser.ParseURL(fc.URL)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			continue
		}

		count := 0
		for _, item := range feed.Items {
			if count >= maxPerFeed {
				break
			}
			c, ok := candidateFromItem(item)
			if !ok {
				continue
			}
			all = append(all, c)
			count++
		}
		log.Printf("Parsed %d entries from %s", count, fc.URL)
	}

	return all
}

func candidateFromItem(item *gofeed.Item) (Candidate, bool) {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	if link == "" {
		return Candidate{}, false
	}

	title := strings.TrimSpace(item.Title)

	if m := arxivAbsExpr.FindStringSubmatch(link); m != nil {
		id := m[1]
		return Candidate{
			Kind:         KindExternalID,
			ExternalID:   id,
			URL:          "https://arxiv.org/pdf/" + id + ".pdf",
			DisplayTitle: title,
		}, true
	}

	return Candidate{Kind: KindLink, URL: link, DisplayTitle: title}, true
}
