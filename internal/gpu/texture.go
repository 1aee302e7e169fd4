package gpu

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
)

// TextureFormat is the format every imported texture is uploaded in.
const TextureFormat = gputypes.TextureFormatRGBA8UnormSrgb

// Texture is a sampled 2D texture.
type Texture struct {
	ID     TextureID
	Size   gputypes.Extent3D
	Format gputypes.TextureFormat
}

// UploadTexture creates an sRGB RGBA8 texture holding img.
func UploadTexture(d Device, label string, img *image.NRGBA) (*Texture, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("upload texture %q: empty image %dx%d", label, w, h)
	}
	size := gputypes.NewExtent2D(uint32(w), uint32(h))
	id, err := d.CreateTexture(gputypes.TextureDescriptor{
		Label:         label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        TextureFormat,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("upload texture %q: %w", label, err)
	}

	pix := img.Pix
	if img.Stride != 4*w || len(pix) != 4*w*h {
		pix = make([]byte, 0, 4*w*h)
		for y := range h {
			off := img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			pix = append(pix, img.Pix[off:off+4*w]...)
		}
	}
	if err := d.WriteTexture(id, pix); err != nil {
		d.DestroyTexture(id)
		return nil, fmt.Errorf("upload texture %q: %w", label, err)
	}
	return &Texture{ID: id, Size: size, Format: TextureFormat}, nil
}

func (t *Texture) Free(d Device) {
	if t.ID != 0 {
		d.DestroyTexture(t.ID)
		t.ID = 0
	}
}
