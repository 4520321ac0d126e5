package fetch

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Sniffer scans a landing page for a link to the underlying document.
// Publisher sites rarely serve the PDF at the advertised URL; the real
// file sits behind a meta tag or a "Download PDF" anchor.
type Sniffer struct {
	labels []string
}

// NewSniffer builds a sniffer with the anchor labels that count as a
// download signal. Labels are matched case-insensitively against anchor
// text, title and class attributes.
func NewSniffer(labels []string) *Sniffer {
	lowered := make([]string, 0, len(labels))
	for _, l := range labels {
		lowered = append(lowered, strings.ToLower(l))
	}
	return &Sniffer{labels: lowered}
}

// FindDocumentLink returns the most likely document URL on the page,
// resolved against base, or "" when nothing qualifies. base must be the
// final URL after redirects so relative links resolve correctly.
func (s *Sniffer) FindDocumentLink(body []byte, base *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	// Machine-readable hints first: explicit alternate links, then the
	// citation meta tag most repositories emit for indexers.
	if href, ok := doc.Find(`link[rel="alternate"][type="application/pdf"]`).Attr("href"); ok {
		if resolved := resolveLink(base, href); resolved != "" {
			return resolved
		}
	}
	if content, ok := doc.Find(`meta[name="citation_pdf_url"]`).Attr("content"); ok {
		if resolved := resolveLink(base, content); resolved != "" {
			return resolved
		}
	}

	// Anchor heuristic: require a path signal and a label signal
	// together, so a bare "click here" or an unrelated .pdf asset link
	// does not win on its own.
	var best string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if !pathSignal(href) {
			return true
		}
		if !s.labelSignal(sel) {
			return true
		}
		if resolved := resolveLink(base, href); resolved != "" {
			best = resolved
			return false
		}
		return true
	})
	if best != "" {
		return best
	}

	// Last resort: any anchor whose path plainly names a pdf file.
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if !strings.HasSuffix(strings.ToLower(strippedPath(href)), ".pdf") {
			return true
		}
		if resolved := resolveLink(base, href); resolved != "" {
			best = resolved
			return false
		}
		return true
	})
	return best
}

func (s *Sniffer) labelSignal(sel *goquery.Selection) bool {
	text := strings.ToLower(strings.TrimSpace(sel.Text()))
	title, _ := sel.Attr("title")
	class, _ := sel.Attr("class")
	haystack := text + " " + strings.ToLower(title) + " " + strings.ToLower(class)
	for _, label := range s.labels {
		if strings.Contains(haystack, label) {
			return true
		}
	}
	return false
}

func pathSignal(href string) bool {
	lower := strings.ToLower(strippedPath(href))
	return strings.Contains(lower, ".pdf") || strings.Contains(lower, "/pdf")
}

// strippedPath drops the query and fragment so signals match on the path
// alone.
func strippedPath(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		return href[:i]
	}
	return href
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}
