package artifacts

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFPageCount validates that the file is a readable PDF and returns its
// page count. The portal occasionally serves an HTML error page with a
// .pdf name; this catches that before the artifact is reported back.
func PDFPageCount(path string) (int, error) {
	pages, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("not a valid PDF: %w", err)
	}
	if pages < 1 {
		return 0, fmt.Errorf("PDF has no pages")
	}
	return pages, nil
}
