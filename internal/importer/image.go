package importer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/risengine/ris/internal/asset"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImportImage decodes any registered image format and re-encodes it as
// <stem>.qoi.
func ImportImage(src, dstDir string) ([]string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", src, err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", src, err)
	}
	qoi, err := asset.EncodeQOI(img)
	if err != nil {
		return nil, fmt.Errorf("encode %s image %s: %w", format, src, err)
	}
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	out := filepath.Join(dstDir, stem+".qoi")
	if err := writeOutput(out, qoi); err != nil {
		return nil, err
	}
	return []string{out}, nil
}
