package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmswen/paperdigest/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Timeout:      5 * time.Second,
		MinPDFBytes:  64,
		DownloadDir:  t.TempDir(),
		HostInterval: time.Millisecond,
		BatchLimit:   10,
		MaxRetries:   3,
	}
}

// minimalPDF assembles a one-page PDF with correct xref offsets so the
// text extractor accepts it.
func minimalPDF(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	var offsets []int
	add := func(obj string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(obj)
	}

	stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	add("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	add("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	add("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
		"/Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>\nendobj\n")
	add("4 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")
	add(fmt.Sprintf("5 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
		len(stream), stream))

	xref := buf.Len()
	buf.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	buf.WriteString("trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n")
	fmt.Fprintf(&buf, "%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

func servePDF(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/pdf")
	w.Write(minimalPDF(t, text))
}

func TestAcquireDirectPDF(t *testing.T) {
	db := openTestDB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		servePDF(t, w, "Hello paper")
	}))
	defer srv.Close()

	if _, err := db.UpsertNew("fp1", nil, ptr(srv.URL+"/paper.pdf"), nil); err != nil {
		t.Fatal(err)
	}

	f := New(db, nil, nil, testOptions(t))
	result, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Downloaded != 1 {
		t.Fatalf("expected 1 download, got %+v", result)
	}

	rec, _ := db.GetRecord("fp1")
	if rec.Status != database.StatusDownloaded {
		t.Errorf("expected DOWNLOADED, got %s", rec.Status)
	}
	if rec.ContentKind != database.KindFullText {
		t.Errorf("expected full_text, got %s", rec.ContentKind)
	}
	if rec.Content == nil || !strings.Contains(*rec.Content, "Hello") {
		t.Error("expected extracted text on the record")
	}
	if rec.ArtifactPath == nil {
		t.Fatal("expected an artifact path")
	}
	if _, err := os.Stat(*rec.ArtifactPath); err != nil {
		t.Errorf("expected artifact on disk: %v", err)
	}
}

func TestAcquireTinyErrorPageFails(t *testing.T) {
	db := openTestDB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte(strings.Repeat("x", 129)))
	}))
	defer srv.Close()

	if _, err := db.UpsertNew("fp1", nil, ptr(srv.URL+"/paper.pdf"), nil); err != nil {
		t.Fatal(err)
	}

	opts := testOptions(t)
	opts.MinPDFBytes = 1024
	result, err := New(db, nil, nil, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected 1 failure, got %+v", result)
	}

	rec, _ := db.GetRecord("fp1")
	if rec.Status != database.StatusDownloadFailed {
		t.Errorf("expected DOWNLOAD_FAILED, got %s", rec.Status)
	}
	if rec.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", rec.RetryCount)
	}
	if rec.FailureReason == nil {
		t.Error("expected a failure reason")
	}
}

func TestAcquireRateLimitedDefers(t *testing.T) {
	db := openTestDB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := db.UpsertNew("fp1", nil, ptr(srv.URL+"/paper.pdf"), nil); err != nil {
		t.Fatal(err)
	}

	result, err := New(db, nil, nil, testOptions(t)).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Deferred != 1 {
		t.Fatalf("expected 1 deferral, got %+v", result)
	}

	rec, _ := db.GetRecord("fp1")
	if rec.Status != database.StatusNew {
		t.Errorf("transient signal must not change status, got %s", rec.Status)
	}
	if rec.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", rec.RetryCount)
	}
}

func TestAcquireSniffedCitationLink(t *testing.T) {
	db := openTestDB(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head>
			<meta name="citation_pdf_url" content="/files/paper.pdf">
		</head><body><p>Landing page.</p></body></html>`)
	})
	mux.HandleFunc("/files/paper.pdf", func(w http.ResponseWriter, r *http.Request) {
		servePDF(t, w, "Sniffed text")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	if _, err := db.UpsertNew("fp1", nil, ptr(srv.URL+"/article"), nil); err != nil {
		t.Fatal(err)
	}

	result, err := New(db, nil, nil, testOptions(t)).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Downloaded != 1 {
		t.Fatalf("expected 1 download via sniffing, got %+v", result)
	}

	rec, _ := db.GetRecord("fp1")
	if rec.Status != database.StatusDownloaded || rec.ContentKind != database.KindFullText {
		t.Errorf("expected full-text download, got %s/%s", rec.Status, rec.ContentKind)
	}
}

type fakeMeta struct {
	md  *Metadata
	err error
}

func (f *fakeMeta) Lookup(ctx context.Context, externalID string) (*Metadata, error) {
	return f.md, f.err
}

type fakeOA struct {
	url string
	err error
}

func (f *fakeOA) ResolvePDF(ctx context.Context, externalID string) (string, error) {
	return f.url, f.err
}

func TestAcquireAbstractFallback(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.UpsertNew("10.1093/test/abc", ptr("10.1093/test/abc"), nil, nil); err != nil {
		t.Fatal(err)
	}

	meta := &fakeMeta{md: &Metadata{Title: "On Testing", Abstract: "A study of tests."}}
	result, err := New(db, meta, &fakeOA{}, testOptions(t)).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AbstractOnly != 1 {
		t.Fatalf("expected 1 abstract-only, got %+v", result)
	}

	rec, _ := db.GetRecord("10.1093/test/abc")
	if rec.Status != database.StatusAbstractOnly {
		t.Errorf("expected ABSTRACT_ONLY, got %s", rec.Status)
	}
	if rec.ContentKind != database.KindAbstractOnly {
		t.Errorf("expected abstract_only kind, got %s", rec.ContentKind)
	}
	if rec.Content == nil || !strings.Contains(*rec.Content, "On Testing") {
		t.Error("expected title and abstract in the content")
	}
	if rec.ArtifactPath != nil {
		t.Error("abstract-only records carry no artifact")
	}
}

func TestAcquireOAResolvedURL(t *testing.T) {
	db := openTestDB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		servePDF(t, w, "Open access text")
	}))
	defer srv.Close()

	if _, err := db.UpsertNew("10.5555/oa", ptr("10.5555/oa"), nil, nil); err != nil {
		t.Fatal(err)
	}

	oa := &fakeOA{url: srv.URL + "/oa.pdf"}
	result, err := New(db, &fakeMeta{}, oa, testOptions(t)).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Downloaded != 1 {
		t.Fatalf("expected 1 download via oa resolution, got %+v", result)
	}

	rec, _ := db.GetRecord("10.5555/oa")
	if rec.URL == nil || *rec.URL != srv.URL+"/oa.pdf" {
		t.Error("expected the resolved url persisted on the record")
	}
}

func TestAcquireWebTextFallback(t *testing.T) {
	db := openTestDB(t)
	para := strings.Repeat("The committee reviewed the archival evidence in detail. ", 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><head><title>Field Notes</title></head><body>
			<article><h1>Field Notes</h1>
			<p>%s</p><p>%s</p><p>%s</p></article>
		</body></html>`, para, para, para)
	}))
	defer srv.Close()

	if _, err := db.UpsertNew("fp1", nil, ptr(srv.URL+"/article"), nil); err != nil {
		t.Fatal(err)
	}

	result, err := New(db, nil, nil, testOptions(t)).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Downloaded != 1 {
		t.Fatalf("expected 1 web-text download, got %+v", result)
	}

	rec, _ := db.GetRecord("fp1")
	if rec.ContentKind != database.KindWebText {
		t.Errorf("expected web_text kind, got %s", rec.ContentKind)
	}
	if rec.ArtifactPath != nil {
		t.Error("web-text records carry no artifact")
	}
}

func TestAcquireNotFoundExhausts(t *testing.T) {
	db := openTestDB(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := db.UpsertNew("fp1", nil, ptr(srv.URL+"/gone.pdf"), nil); err != nil {
		t.Fatal(err)
	}

	result, err := New(db, nil, nil, testOptions(t)).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected 1 failure, got %+v", result)
	}

	rec, _ := db.GetRecord("fp1")
	if rec.Status != database.StatusDownloadFailed {
		t.Errorf("expected DOWNLOAD_FAILED, got %s", rec.Status)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	db := openTestDB(t)
	result, err := New(db, nil, nil, testOptions(t)).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Attempted != 0 {
		t.Errorf("expected empty batch, got %+v", result)
	}
}
