package mailbox

import (
	"bytes"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// extractBody flattens a MIME message to plain text plus the hyperlinks
// found in HTML parts. Forwarded .eml attachments are descended, since
// alert services often wrap the actual notification in a forward.
func extractBody(r io.Reader) (string, []string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", nil, err
	}

	var parts []string
	var urls []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep what decoded so far; a trailing malformed part
			// should not discard the whole message.
			break
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			switch {
			case strings.HasPrefix(ct, "text/plain"):
				data, _ := io.ReadAll(p.Body)
				parts = append(parts, string(data))
			case strings.HasPrefix(ct, "text/html"):
				data, _ := io.ReadAll(p.Body)
				text, links := flattenHTML(data)
				parts = append(parts, text)
				urls = append(urls, links...)
			case strings.HasPrefix(ct, "message/rfc822"):
				text, links, err := extractBody(p.Body)
				if err == nil {
					parts = append(parts, text)
					urls = append(urls, links...)
				}
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			if strings.HasSuffix(strings.ToLower(filename), ".eml") {
				text, links, err := extractBody(p.Body)
				if err == nil {
					parts = append(parts, text)
					urls = append(urls, links...)
				}
			}
		}
	}

	return strings.TrimSpace(strings.Join(parts, "\n")), urls, nil
}

// flattenHTML strips an HTML part to its visible text and collects the
// http(s) links, which often carry the document URL that never appears in
// the visible text.
func flattenHTML(data []byte) (string, []string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return string(data), nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
			links = append(links, href)
		}
	})

	return strings.TrimSpace(doc.Text()), links
}
