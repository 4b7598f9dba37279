// Package thumbnail implements the Thumbnail Service pipeline stage (spec
// §4.7): per-extension thumbnail generation plus cleanup of partially
// encrypted thumbnails.
package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/webp"

	"github.com/devzbysiu/dox-sub000/internal/entity"
	"github.com/devzbysiu/dox-sub000/internal/fs"
)

// ErrInvalidExtension is returned when a thumbnailer is asked to handle a
// Location whose extension it does not support, per spec §4.7.
var ErrInvalidExtension = fmt.Errorf("thumbnail: invalid extension")

// Thumbnailer generates thumbnails for every path in a Location, writing
// them under outDir while preserving the user-subdirectory structure, and
// returns the Location of the generated thumbnails.
type Thumbnailer interface {
	MkThumbnail(loc entity.Location, outDir string) (entity.Location, error)
}

// Factory selects a Thumbnailer by Extension, the polymorphism point named
// in SPEC_FULL.md §9: adding a format means adding one case here.
type Factory struct {
	filesystem fs.Filesystem
	renderer   PDFRenderer
}

// NewFactory builds a Factory. renderer backs the PDF thumbnailer's
// page-to-raster step.
func NewFactory(filesystem fs.Filesystem, renderer PDFRenderer) *Factory {
	return &Factory{filesystem: filesystem, renderer: renderer}
}

// From returns the Thumbnailer for ext.
func (f *Factory) From(ext entity.Extension) (Thumbnailer, error) {
	if ext == entity.Pdf {
		return &pdfThumbnailer{filesystem: f.filesystem, renderer: f.renderer}, nil
	}
	if ext.IsImage() {
		return &imageThumbnailer{filesystem: f.filesystem}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
}

// imageThumbnailer copies the source image byte-for-byte into the
// thumbnails directory, after decoding it once to reject corrupt input.
type imageThumbnailer struct {
	filesystem fs.Filesystem
}

func (t *imageThumbnailer) MkThumbnail(loc entity.Location, outDir string) (entity.Location, error) {
	if !loc.Extension().IsImage() {
		return entity.Location{}, fmt.Errorf("%w: %q", ErrInvalidExtension, loc.Extension())
	}

	var out []entity.SafePath
	for _, path := range loc.Paths() {
		data, err := t.filesystem.Load(path)
		if err != nil {
			return entity.Location{}, fmt.Errorf("thumbnail: load %q: %w", path, err)
		}
		if err := validateImage(loc.Extension(), data); err != nil {
			return entity.Location{}, fmt.Errorf("thumbnail: decode %q: %w", path, err)
		}

		dst := filepath.Join(outDir, path.ParentName(), path.Filename())
		dstPath, err := entity.NewSafePath(dst)
		if err != nil {
			return entity.Location{}, err
		}
		if err := t.filesystem.Save(dstPath, data); err != nil {
			return entity.Location{}, fmt.Errorf("thumbnail: save %q: %w", dstPath, err)
		}
		out = append(out, dstPath)
	}
	return entity.NewLocation(out...)
}

func validateImage(ext entity.Extension, data []byte) error {
	if ext == entity.Webp {
		_, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
		return err
	}
	_, _, err := image.Decode(bytes.NewReader(data))
	return err
}

// pdfThumbnailer renders page 0 of a PDF to a white-background raster and
// encodes it as PNG.
type pdfThumbnailer struct {
	filesystem fs.Filesystem
	renderer   PDFRenderer
}

func (t *pdfThumbnailer) MkThumbnail(loc entity.Location, outDir string) (entity.Location, error) {
	if loc.Extension() != entity.Pdf {
		return entity.Location{}, fmt.Errorf("%w: %q", ErrInvalidExtension, loc.Extension())
	}

	var out []entity.SafePath
	for _, path := range loc.Paths() {
		data, err := t.filesystem.Load(path)
		if err != nil {
			return entity.Location{}, fmt.Errorf("thumbnail: load %q: %w", path, err)
		}

		page, err := t.renderer.RenderFirstPage(data)
		if err != nil {
			return entity.Location{}, fmt.Errorf("thumbnail: render %q: %w", path, err)
		}

		raster := flattenOnWhite(page)
		var buf bytes.Buffer
		if err := png.Encode(&buf, raster); err != nil {
			return entity.Location{}, fmt.Errorf("thumbnail: encode %q: %w", path, err)
		}

		dst := filepath.Join(outDir, path.ParentName(), path.Filestem()+".png")
		dstPath, err := entity.NewSafePath(dst)
		if err != nil {
			return entity.Location{}, err
		}
		if err := t.filesystem.Save(dstPath, buf.Bytes()); err != nil {
			return entity.Location{}, fmt.Errorf("thumbnail: save %q: %w", dstPath, err)
		}
		out = append(out, dstPath)
	}
	return entity.NewLocation(out...)
}

// flattenOnWhite composes page over an opaque white canvas at its native
// size, producing the 24-bit RGB raster the spec requires (no alpha
// channel survives into the thumbnail).
func flattenOnWhite(page image.Image) image.Image {
	bounds := page.Bounds()
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), image.White)
	return imaging.Overlay(canvas, page, image.Point{}, 1.0)
}
