package fetch

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFText pulls the plain text out of a PDF file on disk. An error
// means the file is not a readable document, which callers treat as a
// content-shape failure rather than a transient one.
func ExtractPDFText(path string) (text string, err error) {
	// The parser panics on some malformed xref tables instead of
	// returning an error.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to parse pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	result := strings.TrimSpace(buf.String())
	if result == "" {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return result, nil
}

// looksLikePDF checks the leading bytes for the PDF magic number. Some
// servers mislabel content types, so the body is the authority.
func looksLikePDF(body []byte) bool {
	return bytes.HasPrefix(body, []byte("%PDF-"))
}
