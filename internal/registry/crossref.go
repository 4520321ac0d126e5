// Package registry talks to the public bibliographic registries: Crossref
// for metadata and abstracts, Unpaywall for open-access locations.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jmswen/paperdigest/internal/fetch"
)

const defaultCrossrefBase = "https://api.crossref.org"

// Crossref looks up works metadata by DOI.
type Crossref struct {
	BaseURL string
	Mailto  string
	client  *http.Client
}

// NewCrossref creates a client. mailto joins Crossref's polite pool and
// should be set in any real deployment.
func NewCrossref(mailto string) *Crossref {
	return &Crossref{
		BaseURL: defaultCrossrefBase,
		Mailto:  mailto,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type crossrefResponse struct {
	Message struct {
		Title    []string `json:"title"`
		Abstract string   `json:"abstract"`
	} `json:"message"`
}

// Lookup fetches title and abstract for a DOI. An unknown DOI yields
// (nil, nil); rate limiting comes back as a transient error so the caller
// defers instead of burning a strategy.
func (c *Crossref) Lookup(ctx context.Context, doi string) (*fetch.Metadata, error) {
	endpoint := fmt.Sprintf("%s/works/%s", c.BaseURL, url.PathEscape(doi))
	if c.Mailto != "" {
		endpoint += "?mailto=" + url.QueryEscape(c.Mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building crossref request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent(c.Mailto))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crossref request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, &fetch.TransientError{Reason: fmt.Sprintf("crossref http %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("crossref http %d for %s", resp.StatusCode, doi)
	}

	var parsed crossrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding crossref response: %w", err)
	}

	md := &fetch.Metadata{Abstract: stripJATS(parsed.Message.Abstract)}
	if len(parsed.Message.Title) > 0 {
		md.Title = strings.TrimSpace(parsed.Message.Title[0])
	}
	return md, nil
}

var jatsTagExpr = regexp.MustCompile(`<[^>]+>`)

// stripJATS flattens the JATS XML markup Crossref embeds in abstracts
// down to plain text.
func stripJATS(s string) string {
	s = jatsTagExpr.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

func userAgent(mailto string) string {
	if mailto != "" {
		return fmt.Sprintf("paperdigest/1.0 (mailto:%s)", mailto)
	}
	return "paperdigest/1.0"
}
