package discover

import (
	"regexp"
	"strings"
)

var (
	arxivExpr = regexp.MustCompile(`(?i)arxiv(?:\s*id)?[:\s]\s*(\d{4}\.\d{4,5}(?:v\d+)?)`)
	doiExpr   = regexp.MustCompile(`(?i)doi[:\s]\s*(10\.\d{4,9}/[-._;()/:A-Za-z0-9]+)`)
	pdfExpr   = regexp.MustCompile(`https?://[^\s<>"')\]]+\.pdf`)
	urlExpr   = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
)

// Extract sweeps a message body for candidate references, in priority
// order: arXiv ids, DOIs, direct PDF links, then remaining hyperlinks.
// Every occurrence is returned, not just the first; duplicates within one
// message are collapsed here, cross-message dedup belongs to the store.
func Extract(text string) []Candidate {
	var candidates []Candidate
	seen := map[string]struct{}{}
	claimed := map[string]struct{}{}

	add := func(c Candidate) {
		fp := c.Fingerprint()
		if _, ok := seen[fp]; ok {
			return
		}
		seen[fp] = struct{}{}
		candidates = append(candidates, c)
	}

	for _, m := range arxivExpr.FindAllStringSubmatch(text, -1) {
		id := m[1]
		add(Candidate{
			Kind:         KindExternalID,
			ExternalID:   id,
			URL:          "https://arxiv.org/pdf/" + id + ".pdf",
			DisplayTitle: "arXiv:" + id,
		})
		claimed["https://arxiv.org/pdf/"+id+".pdf"] = struct{}{}
	}

	for _, m := range doiExpr.FindAllStringSubmatch(text, -1) {
		doi := strings.TrimRight(m[1], ".,;")
		add(Candidate{
			Kind:         KindExternalID,
			ExternalID:   doi,
			DisplayTitle: doi,
		})
		claimed["https://doi.org/"+doi] = struct{}{}
		claimed["http://dx.doi.org/"+doi] = struct{}{}
	}

	for _, link := range pdfExpr.FindAllString(text, -1) {
		if _, ok := claimed[link]; ok {
			continue
		}
		add(Candidate{Kind: KindLink, URL: link})
		claimed[link] = struct{}{}
	}

	for _, link := range urlExpr.FindAllString(text, -1) {
		link = strings.TrimRight(link, ".,;")
		if _, ok := claimed[link]; ok {
			continue
		}
		if strings.Contains(link, "arxiv.org/pdf/") {
			continue // already synthesized from the arXiv id
		}
		add(Candidate{Kind: KindLink, URL: link})
	}

	return candidates
}
