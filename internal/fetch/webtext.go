package fetch

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

// minReadableChars filters out error pages and cookie walls that
// technically parse but carry no article.
const minReadableChars = 200

// ExtractReadableText runs readability extraction over an HTML page and
// returns the main article text, or "" when the page has no substantial
// readable content.
func ExtractReadableText(body []byte, pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return ""
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) < minReadableChars {
		return ""
	}
	if article.Title != "" {
		return article.Title + "\n\n" + text
	}
	return text
}
