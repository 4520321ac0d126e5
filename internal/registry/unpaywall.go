package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jmswen/paperdigest/internal/fetch"
)

const defaultUnpaywallBase = "https://api.unpaywall.org"

// Unpaywall resolves DOIs to open-access document locations. The API
// requires a contact email on every request.
type Unpaywall struct {
	BaseURL string
	Email   string
	client  *http.Client
}

func NewUnpaywall(email string) *Unpaywall {
	return &Unpaywall{
		BaseURL: defaultUnpaywallBase,
		Email:   email,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type unpaywallResponse struct {
	BestOALocation *struct {
		URLForPDF *string `json:"url_for_pdf"`
		URL       string  `json:"url"`
	} `json:"best_oa_location"`
}

// ResolvePDF returns the best open-access URL for a DOI, preferring a
// direct PDF location over the landing page. No known location yields
// ("", nil).
func (u *Unpaywall) ResolvePDF(ctx context.Context, doi string) (string, error) {
	if u.Email == "" {
		return "", nil
	}

	endpoint := fmt.Sprintf("%s/v2/%s?email=%s",
		u.BaseURL, url.PathEscape(doi), url.QueryEscape(u.Email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("building unpaywall request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent(u.Email))

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("unpaywall request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return "", &fetch.TransientError{Reason: fmt.Sprintf("unpaywall http %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("unpaywall http %d for %s", resp.StatusCode, doi)
	}

	var parsed unpaywallResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding unpaywall response: %w", err)
	}

	loc := parsed.BestOALocation
	if loc == nil {
		return "", nil
	}
	if loc.URLForPDF != nil && *loc.URLForPDF != "" {
		return *loc.URLForPDF, nil
	}
	return loc.URL, nil
}
