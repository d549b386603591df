package report

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ThumbSize is the edge of an embedded thumbnail in pixels.
const ThumbSize = 100

var imageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"}

var errNoImage = errors.New("image not found")

// thumbnails resolves, scales and caches product images for one workbook.
type thumbnails struct {
	dir   string
	cache map[string][]byte
}

func newThumbnails(dir string) *thumbnails {
	return &thumbnails{dir: dir, cache: map[string][]byte{}}
}

// resolve returns the file for a product: the image field taken verbatim,
// else {id}.{ext} for the known extensions.
func (t *thumbnails) resolve(id, name string) (string, bool) {
	if t.dir == "" {
		return "", false
	}
	var candidates []string
	if name != "" {
		candidates = append(candidates, filepath.Join(t.dir, filepath.Clean("/"+name)))
	} else if id != "" {
		for _, ext := range imageExts {
			candidates = append(candidates, filepath.Join(t.dir, id+ext))
		}
	}
	for _, c := range candidates {
		if fi, err := os.Stat(c); err == nil && fi.Mode().IsRegular() {
			return c, true
		}
	}
	return "", false
}

// png returns a ThumbSize square PNG of the product image.
func (t *thumbnails) png(id, name string) ([]byte, error) {
	path, ok := t.resolve(id, name)
	if !ok {
		return nil, errNoImage
	}
	if b, ok := t.cache[path]; ok {
		return b, nil
	}
	b, err := scaleImage(path, ThumbSize)
	if err != nil {
		return nil, err
	}
	t.cache[path] = b
	return b, nil
}

func scaleImage(path string, size int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode thumbnail %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

func (t *thumbnails) embed(f *excelize.File, sheet, cell, id, name string) error {
	b, err := t.png(id, name)
	if err != nil {
		return err
	}
	return f.AddPictureFromBytes(sheet, cell, &excelize.Picture{
		Extension: ".png",
		File:      b,
		Format: &excelize.GraphicOptions{
			AltText: id,
			OffsetX: 2,
			OffsetY: 2,
		},
	})
}
