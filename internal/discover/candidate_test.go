package discover

import "testing"

func TestFingerprintExternalIDVerbatim(t *testing.T) {
	c := Candidate{Kind: KindExternalID, ExternalID: "10.1093/PastJ/Gtab002"}
	if c.Fingerprint() != "10.1093/PastJ/Gtab002" {
		t.Errorf("expected case-preserved id, got %q", c.Fingerprint())
	}
}

func TestFingerprintHashesURL(t *testing.T) {
	a := Candidate{Kind: KindLink, URL: "https://example.com/paper.pdf"}
	b := Candidate{Kind: KindLink, URL: "HTTPS://EXAMPLE.COM/paper.pdf#page=2"}

	if a.Fingerprint() == "" || a.Fingerprint() == a.URL {
		t.Error("expected hashed fingerprint for link candidates")
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("expected normalized URLs to share a fingerprint")
	}

	c := Candidate{Kind: KindLink, URL: "https://example.com/other.pdf"}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("expected distinct URLs to fingerprint differently")
	}
}

func TestFingerprintStableAcrossCalls(t *testing.T) {
	c := Candidate{Kind: KindLink, URL: "https://example.com/paper.pdf"}
	if c.Fingerprint() != c.Fingerprint() {
		t.Error("fingerprint must be deterministic")
	}
}

func TestNormalizeURL(t *testing.T) {
	got := NormalizeURL("HTTPS://Example.COM/Path/Paper.PDF#frag")
	want := "https://example.com/Path/Paper.PDF"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
