package discover

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Kind distinguishes how a candidate reference was identified.
type Kind string

const (
	// KindExternalID marks candidates carrying a registry identifier
	// (DOI or arXiv id).
	KindExternalID Kind = "external_id"
	// KindLink marks candidates identified only by a hyperlink.
	KindLink Kind = "link"
)

// Candidate is an ephemeral reference discovered in a notification message
// or feed entry. It is never persisted directly; discovery converts it to a
// record keyed by its fingerprint.
type Candidate struct {
	Kind         Kind
	ExternalID   string
	URL          string
	DisplayTitle string
}

// Fingerprint derives the stable deduplication key: the external identifier
// verbatim when present, otherwise a SHA-256 digest of the normalized URL.
// Unkeyed and deterministic, so the same candidate collapses to the same
// record across runs.
func (c Candidate) Fingerprint() string {
	if c.ExternalID != "" {
		return c.ExternalID
	}
	sum := sha256.Sum256([]byte(NormalizeURL(c.URL)))
	return hex.EncodeToString(sum[:])
}

// NormalizeURL canonicalizes a URL for fingerprinting: scheme and host are
// lowercased and the fragment dropped. Unparseable input is returned as-is.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String()
}
