package extractor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
)

// PDFTextExtractor pulls the text layer out of a PDF. Per SPEC_FULL.md §1
// the concrete PDF library is out of core scope; the default implementation
// shells out to poppler's `pdftotext`.
type PDFTextExtractor interface {
	ExtractText(pdfBytes []byte) (string, error)
}

// PopplerTextExtractor runs `pdftotext <in> -`.
type PopplerTextExtractor struct {
	// Binary defaults to "pdftotext" when empty.
	Binary string
}

// ExtractText writes pdfBytes to a temp file and runs pdftotext against it.
func (e PopplerTextExtractor) ExtractText(pdfBytes []byte) (string, error) {
	bin := e.Binary
	if bin == "" {
		bin = "pdftotext"
	}

	tmp, err := os.CreateTemp("", "dox-pdftext-*.pdf")
	if err != nil {
		return "", fmt.Errorf("pdftext: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(pdfBytes); err != nil {
		tmp.Close()
		return "", fmt.Errorf("pdftext: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("pdftext: close temp file: %w", err)
	}

	cmd := exec.Command(bin, tmp.Name(), "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftext: %s: %w: %s", bin, err, stderr.String())
	}
	return stdout.String(), nil
}
