// Package extractor implements the Extractor Service pipeline stage (spec
// §4.8): per-extension text extraction feeding the search index.
package extractor

import (
	"fmt"
	"sync"

	"github.com/devzbysiu/dox-sub000/internal/entity"
	"github.com/devzbysiu/dox-sub000/internal/fs"
)

// ErrInvalidExtension mirrors thumbnail.ErrInvalidExtension for the
// extraction side of the factory.
var ErrInvalidExtension = fmt.Errorf("extractor: invalid extension")

// Extractor extracts text for every path in a Location. A path that yields
// no text is silently dropped from the result, per spec §4.8.
type Extractor interface {
	ExtractText(loc entity.Location) ([]entity.DocDetails, error)
}

// Factory selects an Extractor by Extension.
type Factory struct {
	filesystem fs.Filesystem
	ocr        OCREngine
	pdfText    PDFTextExtractor
}

// NewFactory builds a Factory.
func NewFactory(filesystem fs.Filesystem, ocr OCREngine, pdfText PDFTextExtractor) *Factory {
	return &Factory{filesystem: filesystem, ocr: ocr, pdfText: pdfText}
}

// From returns the Extractor for ext.
func (f *Factory) From(ext entity.Extension) (Extractor, error) {
	if ext == entity.Pdf {
		return &pdfExtractor{filesystem: f.filesystem, extractor: f.pdfText}, nil
	}
	if ext.IsImage() {
		return &imageExtractor{filesystem: f.filesystem, ocr: f.ocr}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
}

// imageExtractor OCRs every path, using the image's own filename as the
// thumbnail name (image thumbnails are a byte-identical copy, so they share
// the source filename).
type imageExtractor struct {
	filesystem fs.Filesystem
	ocr        OCREngine
}

func (e *imageExtractor) ExtractText(loc entity.Location) ([]entity.DocDetails, error) {
	return extractParallel(loc, func(path entity.SafePath) (entity.DocDetails, bool, error) {
		data, err := e.filesystem.Load(path)
		if err != nil {
			return entity.DocDetails{}, false, err
		}
		ext, err := path.Extension()
		if err != nil {
			return entity.DocDetails{}, false, err
		}
		text, err := e.ocr.Recognize(data, ext.String())
		if err != nil {
			return entity.DocDetails{}, false, err
		}
		if text == "" {
			return entity.DocDetails{}, false, nil
		}
		return entity.NewDocDetails(path.Filename(), text, path.Filename()), true, nil
	})
}

// pdfExtractor pulls the text layer out of each PDF; its thumbnail name is
// always `<stem>.png`, matching the PDF thumbnailer's output filename.
type pdfExtractor struct {
	filesystem fs.Filesystem
	extractor  PDFTextExtractor
}

func (e *pdfExtractor) ExtractText(loc entity.Location) ([]entity.DocDetails, error) {
	return extractParallel(loc, func(path entity.SafePath) (entity.DocDetails, bool, error) {
		data, err := e.filesystem.Load(path)
		if err != nil {
			return entity.DocDetails{}, false, err
		}
		text, err := e.extractor.ExtractText(data)
		if err != nil {
			return entity.DocDetails{}, false, err
		}
		if text == "" {
			return entity.DocDetails{}, false, nil
		}
		return entity.NewDocDetails(path.Filename(), text, path.Filestem()+".png"), true, nil
	})
}

// extractParallel runs extractOne over every path in loc concurrently and
// collects the successful, non-empty results. Per-path errors are dropped
// here without being logged or returned — a single bad file must not drop
// the rest of the batch, matching the reference implementation's
// filter_map(Result::ok) semantics.
func extractParallel(loc entity.Location, extractOne func(entity.SafePath) (entity.DocDetails, bool, error)) ([]entity.DocDetails, error) {
	paths := loc.Paths()
	results := make([]entity.DocDetails, len(paths))
	ok := make([]bool, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path entity.SafePath) {
			defer wg.Done()
			details, found, err := extractOne(path)
			if err != nil || !found {
				return
			}
			results[i] = details
			ok[i] = true
		}(i, path)
	}
	wg.Wait()

	out := make([]entity.DocDetails, 0, len(paths))
	for i, found := range ok {
		if found {
			out = append(out, results[i])
		}
	}
	return out, nil
}
