package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// maxBodyBytes caps how much of a response we buffer. Scanned monographs
// can be large but anything past this is not worth mailing anyway.
const maxBodyBytes = 64 << 20

// page is one fetched response. finalURL is the URL after redirects, which
// is what relative links on the page must resolve against.
type page struct {
	status      int
	body        []byte
	contentType string
	finalURL    *url.URL
}

// get performs one politeness-gated GET. Network-level failures and
// back-off statuses come back as transient errors; HTTP error statuses are
// returned in the page for the caller to classify.
func (f *Fetcher) get(ctx context.Context, rawURL string) (*page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	if err := f.gate.Wait(ctx, u.Host); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %q: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/pdf,text/html;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyNetError(err)
	}
	defer resp.Body.Close()

	if transientStatus(resp.StatusCode) {
		return nil, &TransientError{Reason: fmt.Sprintf("http %d from %s", resp.StatusCode, u.Host)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyNetError(err)
	}

	return &page{
		status:      resp.StatusCode,
		body:        body,
		contentType: resp.Header.Get("Content-Type"),
		finalURL:    resp.Request.URL,
	}, nil
}

// isPDFCandidate reports whether the response claims to be a PDF, by
// declared type, by URL extension, or by magic bytes.
func isPDFCandidate(p *page) bool {
	if strings.Contains(strings.ToLower(p.contentType), "application/pdf") {
		return true
	}
	if strings.HasSuffix(strings.ToLower(p.finalURL.Path), ".pdf") {
		return true
	}
	return looksLikePDF(p.body)
}

// isHTML reports whether the response is markup worth sniffing.
func isHTML(p *page) bool {
	ct := strings.ToLower(p.contentType)
	if strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml") {
		return true
	}
	trimmed := strings.TrimSpace(strings.ToLower(string(firstBytes(p.body, 256))))
	return strings.HasPrefix(trimmed, "<!doctype html") || strings.HasPrefix(trimmed, "<html")
}

func firstBytes(b []byte, n int) []byte {
	if len(b) < n {
		return b
	}
	return b[:n]
}

// acceptPDF validates a PDF-shaped response and materializes it: size
// check, magic check, text extraction, artifact on disk. Any failure is a
// content-shape skip described by the returned error.
func (f *Fetcher) acceptPDF(fingerprint string, p *page) (artifactPath, text string, err error) {
	if len(p.body) < f.opts.MinPDFBytes {
		return "", "", fmt.Errorf("response too small to be a document (%d bytes)", len(p.body))
	}
	if !looksLikePDF(p.body) {
		return "", "", fmt.Errorf("response is not a pdf despite its name")
	}

	path := filepath.Join(f.opts.DownloadDir, artifactName(fingerprint))
	if err := os.MkdirAll(f.opts.DownloadDir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating download dir: %w", err)
	}
	if err := os.WriteFile(path, p.body, 0o644); err != nil {
		return "", "", fmt.Errorf("writing artifact: %w", err)
	}

	text, err = ExtractPDFText(path)
	if err != nil {
		os.Remove(path)
		return "", "", err
	}
	return path, text, nil
}

// artifactName maps a fingerprint to a filesystem-safe file name. DOIs
// contain slashes; everything else passes through.
func artifactName(fingerprint string) string {
	safe := strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(fingerprint)
	return safe + ".pdf"
}
