package fetch

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

func defaultSniffer() *Sniffer {
	return NewSniffer([]string{"download", "full text", "pdf"})
}

func TestSniffAlternateLink(t *testing.T) {
	body := []byte(`<html><head>
		<link rel="alternate" type="application/pdf" href="/content/paper.pdf">
	</head><body></body></html>`)
	got := defaultSniffer().FindDocumentLink(body, mustParse(t, "https://journal.example.org/article/42"))
	if got != "https://journal.example.org/content/paper.pdf" {
		t.Errorf("unexpected link %q", got)
	}
}

func TestSniffCitationMeta(t *testing.T) {
	body := []byte(`<html><head>
		<meta name="citation_pdf_url" content="https://cdn.example.org/files/paper.pdf">
	</head><body><a href="/unrelated.pdf">something</a></body></html>`)
	got := defaultSniffer().FindDocumentLink(body, mustParse(t, "https://journal.example.org/article/42"))
	if got != "https://cdn.example.org/files/paper.pdf" {
		t.Errorf("expected the citation meta to win, got %q", got)
	}
}

func TestSniffAnchorHeuristic(t *testing.T) {
	body := []byte(`<html><body>
		<a href="/about">About</a>
		<a href="/files/smith2026.pdf">Download PDF</a>
	</body></html>`)
	got := defaultSniffer().FindDocumentLink(body, mustParse(t, "https://press.example.com/article"))
	if got != "https://press.example.com/files/smith2026.pdf" {
		t.Errorf("unexpected link %q", got)
	}
}

func TestSniffLabelWithoutPathSignalLoses(t *testing.T) {
	body := []byte(`<html><body>
		<a href="/subscribe">Download our app</a>
	</body></html>`)
	if got := defaultSniffer().FindDocumentLink(body, mustParse(t, "https://press.example.com/article")); got != "" {
		t.Errorf("expected no link, got %q", got)
	}
}

func TestSniffBarePDFAnchorFallback(t *testing.T) {
	body := []byte(`<html><body>
		<a href="chapter3.pdf">ch. 3</a>
	</body></html>`)
	got := defaultSniffer().FindDocumentLink(body, mustParse(t, "https://press.example.com/books/"))
	if got != "https://press.example.com/books/chapter3.pdf" {
		t.Errorf("unexpected link %q", got)
	}
}

func TestSniffIgnoresNonHTTPSchemes(t *testing.T) {
	body := []byte(`<html><body>
		<a href="ftp://old.example.org/paper.pdf">Download PDF</a>
	</body></html>`)
	if got := defaultSniffer().FindDocumentLink(body, mustParse(t, "https://press.example.com/article")); got != "" {
		t.Errorf("expected no link, got %q", got)
	}
}

func TestSniffNothing(t *testing.T) {
	body := []byte(`<html><body><p>No links here.</p></body></html>`)
	if got := defaultSniffer().FindDocumentLink(body, mustParse(t, "https://press.example.com/article")); got != "" {
		t.Errorf("expected no link, got %q", got)
	}
}
