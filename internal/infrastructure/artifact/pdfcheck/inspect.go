package pdfcheck

import (
	"bytes"
	"fmt"

	pdf "github.com/ledongthuc/pdf"

	"github.com/kirillkom/kpi-benchmark/internal/core/ports"
)

// Inspector verifies that a rendered export is a readable PDF.
type Inspector struct{}

func New() Inspector {
	return Inspector{}
}

// Inspect parses data and returns its page count. A document without pages
// is rejected.
func (Inspector) Inspect(data []byte) (pages int, err error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return 0, fmt.Errorf("inspect pdf: missing %%PDF header")
	}
	// The parser panics on some truncated inputs.
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("inspect pdf: malformed document: %v", r)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("inspect pdf: %w", err)
	}
	total := doc.NumPage()
	if total == 0 {
		return 0, fmt.Errorf("inspect pdf: document has no pages")
	}
	return total, nil
}

var _ ports.ArtifactInspector = Inspector{}
