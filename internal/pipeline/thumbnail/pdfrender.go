package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
)

// PDFRenderer rasterizes the first page of a PDF document. It is the one
// place a concrete PDF library would be wired in; per SPEC_FULL.md §1 the
// concrete library is out of core scope, so the default implementation
// below shells out to poppler's `pdftoppm`, the common real-world way to
// get a PDF page onto a raster without binding a PDF parser into the
// process.
type PDFRenderer interface {
	RenderFirstPage(pdfBytes []byte) (image.Image, error)
}

// PopplerRenderer renders via the `pdftoppm` binary. It is the default
// PDFRenderer wired into the Thumbnailer factory in cmd/server.
type PopplerRenderer struct {
	// Binary is the pdftoppm executable name or path. Defaults to
	// "pdftoppm" when empty.
	Binary string
}

// RenderFirstPage writes pdfBytes to a temp file, invokes pdftoppm to
// rasterize page 1 to PNG, and decodes the result.
func (r PopplerRenderer) RenderFirstPage(pdfBytes []byte) (image.Image, error) {
	bin := r.Binary
	if bin == "" {
		bin = "pdftoppm"
	}

	dir, err := os.MkdirTemp("", "dox-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("pdfrender: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(src, pdfBytes, 0o600); err != nil {
		return nil, fmt.Errorf("pdfrender: write temp pdf: %w", err)
	}
	outPrefix := filepath.Join(dir, "page")

	// -f 1 -l 1: first page only. -png: PNG output.
	cmd := exec.Command(bin, "-f", "1", "-l", "1", "-png", src, outPrefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdfrender: %s: %w: %s", bin, err, stderr.String())
	}

	rendered, err := os.ReadFile(outPrefix + "-1.png")
	if err != nil {
		return nil, fmt.Errorf("pdfrender: read rendered page: %w", err)
	}
	img, err := decodePNG(rendered)
	if err != nil {
		return nil, fmt.Errorf("pdfrender: decode rendered page: %w", err)
	}
	return img, nil
}

func decodePNG(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
