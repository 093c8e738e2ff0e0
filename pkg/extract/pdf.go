package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PageText is the extracted text of one source page. Pages with no
// extractable text are skipped entirely.
type PageText struct {
	Page int
	Text string
}

type Result struct {
	Pages     []PageText
	PageCount int
}

// ProgressFunc receives (current, total) page counters during extraction.
type ProgressFunc func(current, total int)

// MinExtractableChars is the floor below which a PDF is treated as
// scanned/image-only and rejected before chunking.
const MinExtractableChars = 50

// PDFExtractor is the interface-shaped form of FromPDF for callers
// that inject their extraction backend.
type PDFExtractor struct{}

func NewPDFExtractor() PDFExtractor {
	return PDFExtractor{}
}

func (PDFExtractor) Extract(content []byte, onProgress ProgressFunc) (*Result, error) {
	return FromPDF(content, onProgress)
}

// FromPDF extracts per-page plain text from raw PDF bytes.
func FromPDF(content []byte, onProgress ProgressFunc) (*Result, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	numPages := r.NumPage()
	result := &Result{PageCount: numPages}

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		if strings.TrimSpace(text) != "" {
			result.Pages = append(result.Pages, PageText{Page: i, Text: text})
		}
		if onProgress != nil {
			onProgress(i, numPages)
		}
	}

	return result, nil
}

// IsScanned reports whether the extraction yielded too little text to index.
func IsScanned(res *Result) bool {
	total := 0
	for _, p := range res.Pages {
		total += len(strings.TrimSpace(p.Text))
	}
	return total < MinExtractableChars
}
