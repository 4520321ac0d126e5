package mailbox

import (
	"strings"
	"testing"
)

const multipartAlert = "From: alerts@scholar.example.org\r\n" +
	"To: reader@example.org\r\n" +
	"Subject: New citation alert\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=BOUND\r\n" +
	"\r\n" +
	"--BOUND\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"New result for your alert.\r\ndoi: 10.1093/pastj/gtab002\r\n" +
	"--BOUND\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><p>New result.</p>" +
	"<a href=\"https://repo.example.edu/files/123.pdf\">Download PDF</a>" +
	"<a href=\"mailto:alerts@scholar.example.org\">contact</a>" +
	"</body></html>\r\n" +
	"--BOUND--\r\n"

func TestExtractBodyMultipart(t *testing.T) {
	text, urls, err := extractBody(strings.NewReader(multipartAlert))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "doi: 10.1093/pastj/gtab002") {
		t.Errorf("expected the plain part in the text, got %q", text)
	}
	if !strings.Contains(text, "Download PDF") {
		t.Errorf("expected the html part flattened into the text, got %q", text)
	}
	if len(urls) != 1 || urls[0] != "https://repo.example.edu/files/123.pdf" {
		t.Errorf("expected only the http link collected, got %v", urls)
	}
}

func TestExtractBodyPlainOnly(t *testing.T) {
	raw := "From: a@example.org\r\n" +
		"To: b@example.org\r\n" +
		"Subject: Alert\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"arXiv: 2501.00001\r\n"

	text, urls, err := extractBody(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "arXiv: 2501.00001") {
		t.Errorf("unexpected text %q", text)
	}
	if len(urls) != 0 {
		t.Errorf("expected no urls, got %v", urls)
	}
}

func TestSubjectMatches(t *testing.T) {
	s := New(Config{Subjects: []string{"citation alert", "new results"}})

	cases := []struct {
		subject string
		want    bool
	}{
		{"Google Scholar Citation Alert", true},
		{"NEW RESULTS for your query", true},
		{"Weekly newsletter", false},
		{"", false},
	}
	for _, c := range cases {
		if got := s.subjectMatches(c.subject); got != c.want {
			t.Errorf("subjectMatches(%q) = %v, want %v", c.subject, got, c.want)
		}
	}
}

func TestSubjectMatchesEmptyFilterAcceptsAll(t *testing.T) {
	s := New(Config{})
	if !s.subjectMatches("anything at all") {
		t.Error("an empty keyword list should accept every subject")
	}
}
