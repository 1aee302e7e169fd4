package asset

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"golang.org/x/image/draw"
)

// QOI ("Quite OK Image") is the texture format of the engine. Sources are
// re-encoded to it on import so the runtime needs a single decoder.

var ErrInvalidQOI = errors.New("invalid qoi image")

const (
	qoiMagic      = "qoif"
	qoiHeaderSize = 14
	qoiMaxPixels  = 400_000_000

	qoiOpIndex = 0x00
	qoiOpDiff  = 0x40
	qoiOpLuma  = 0x80
	qoiOpRun   = 0xc0
	qoiOpRGB   = 0xfe
	qoiOpRGBA  = 0xff
	qoiMask2   = 0xc0
)

var qoiPadding = [8]byte{0, 0, 0, 0, 0, 0, 0, 1}

func init() {
	image.RegisterFormat("qoi", qoiMagic, DecodeQOI, DecodeQOIConfig)
}

type qoiPixel struct{ r, g, b, a uint8 }

func (p qoiPixel) hash() int {
	return (int(p.r)*3 + int(p.g)*5 + int(p.b)*7 + int(p.a)*11) % 64
}

// EncodeQOI encodes img as four channel sRGB QOI.
func EncodeQOI(img image.Image) ([]byte, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || w*h > qoiMaxPixels {
		return nil, fmt.Errorf("%w: cannot encode %dx%d", ErrInvalidQOI, w, h)
	}
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) || nrgba.Stride != 4*w {
		nrgba = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(nrgba, nrgba.Rect, img, bounds.Min, draw.Src)
	}

	out := bytes.NewBuffer(make([]byte, 0, qoiHeaderSize+w*h+len(qoiPadding)))
	out.WriteString(qoiMagic)
	_ = binary.Write(out, binary.BigEndian, uint32(w))
	_ = binary.Write(out, binary.BigEndian, uint32(h))
	out.WriteByte(4)
	out.WriteByte(0)

	var index [64]qoiPixel
	prev := qoiPixel{a: 255}
	run := 0
	pix := nrgba.Pix[:4*w*h]
	for i := 0; i < len(pix); i += 4 {
		px := qoiPixel{pix[i], pix[i+1], pix[i+2], pix[i+3]}
		if px == prev {
			run++
			if run == 62 || i+4 == len(pix) {
				out.WriteByte(qoiOpRun | byte(run-1))
				run = 0
			}
			continue
		}
		if run > 0 {
			out.WriteByte(qoiOpRun | byte(run-1))
			run = 0
		}

		slot := px.hash()
		if index[slot] == px {
			out.WriteByte(qoiOpIndex | byte(slot))
			prev = px
			continue
		}
		index[slot] = px

		if px.a != prev.a {
			out.Write([]byte{qoiOpRGBA, px.r, px.g, px.b, px.a})
			prev = px
			continue
		}
		vr := int8(px.r - prev.r)
		vg := int8(px.g - prev.g)
		vb := int8(px.b - prev.b)
		vgr := vr - vg
		vgb := vb - vg
		switch {
		case vr > -3 && vr < 2 && vg > -3 && vg < 2 && vb > -3 && vb < 2:
			out.WriteByte(qoiOpDiff | byte(vr+2)<<4 | byte(vg+2)<<2 | byte(vb+2))
		case vgr > -9 && vgr < 8 && vg > -33 && vg < 32 && vgb > -9 && vgb < 8:
			out.WriteByte(qoiOpLuma | byte(vg+32))
			out.WriteByte(byte(vgr+8)<<4 | byte(vgb+8))
		default:
			out.Write([]byte{qoiOpRGB, px.r, px.g, px.b})
		}
		prev = px
	}
	out.Write(qoiPadding[:])
	return out.Bytes(), nil
}

func readQOIHeader(b []byte) (w, h int, err error) {
	if len(b) < qoiHeaderSize+len(qoiPadding) || string(b[:4]) != qoiMagic {
		return 0, 0, fmt.Errorf("%w: bad header", ErrInvalidQOI)
	}
	w = int(binary.BigEndian.Uint32(b[4:]))
	h = int(binary.BigEndian.Uint32(b[8:]))
	channels, colorspace := b[12], b[13]
	if w == 0 || h == 0 || channels < 3 || channels > 4 || colorspace > 1 || h >= qoiMaxPixels/w {
		return 0, 0, fmt.Errorf("%w: %dx%d, %d channels, colorspace %d", ErrInvalidQOI, w, h, channels, colorspace)
	}
	return w, h, nil
}

// DecodeQOIConfig reads only the header.
func DecodeQOIConfig(r io.Reader) (image.Config, error) {
	b := make([]byte, qoiHeaderSize+len(qoiPadding))
	if _, err := io.ReadFull(r, b); err != nil {
		return image.Config{}, fmt.Errorf("%w: %w", ErrInvalidQOI, err)
	}
	w, h, err := readQOIHeader(b)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: color.NRGBAModel, Width: w, Height: h}, nil
}

// DecodeQOI matches the image.Decode signature so QOI is registered as a
// standard image format.
func DecodeQOI(r io.Reader) (image.Image, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read qoi: %w", err)
	}
	return DecodeQOIBytes(b)
}

func DecodeQOIBytes(b []byte) (*image.NRGBA, error) {
	w, h, err := readQOIHeader(b)
	if err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	chunks := b[:len(b)-len(qoiPadding)]

	var index [64]qoiPixel
	px := qoiPixel{a: 255}
	run := 0
	p := qoiHeaderSize
	truncated := func(need int) error {
		if p+need > len(chunks) {
			return fmt.Errorf("%w: truncated at byte %d", ErrInvalidQOI, p)
		}
		return nil
	}
	for i := 0; i < len(img.Pix); i += 4 {
		if run > 0 {
			run--
		} else {
			if err := truncated(1); err != nil {
				return nil, err
			}
			b1 := chunks[p]
			p++
			switch {
			case b1 == qoiOpRGB:
				if err := truncated(3); err != nil {
					return nil, err
				}
				px.r, px.g, px.b = chunks[p], chunks[p+1], chunks[p+2]
				p += 3
			case b1 == qoiOpRGBA:
				if err := truncated(4); err != nil {
					return nil, err
				}
				px = qoiPixel{chunks[p], chunks[p+1], chunks[p+2], chunks[p+3]}
				p += 4
			case b1&qoiMask2 == qoiOpIndex:
				px = index[b1]
			case b1&qoiMask2 == qoiOpDiff:
				px.r += (b1>>4)&0x03 - 2
				px.g += (b1>>2)&0x03 - 2
				px.b += b1&0x03 - 2
			case b1&qoiMask2 == qoiOpLuma:
				if err := truncated(1); err != nil {
					return nil, err
				}
				b2 := chunks[p]
				p++
				vg := b1&0x3f - 32
				px.r += vg - 8 + (b2>>4)&0x0f
				px.g += vg
				px.b += vg - 8 + b2&0x0f
			default:
				run = int(b1 & 0x3f)
			}
			index[px.hash()] = px
		}
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = px.r, px.g, px.b, px.a
	}
	if !bytes.Equal(b[len(chunks):], qoiPadding[:]) {
		return nil, fmt.Errorf("%w: missing end marker", ErrInvalidQOI)
	}
	return img, nil
}
