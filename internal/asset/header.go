package asset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/risengine/ris/internal/binio"
)

var (
	ErrNotRisAsset = errors.New("not a ris asset")
	ErrBadMagic    = errors.New("magic mismatch")
)

// Magic pads name with zeros to the 16 byte magic of a ris file.
func Magic(name string) [16]byte {
	var m [16]byte
	if len(name) > len(m) || !strings.HasPrefix(name, "ris_") {
		panic(fmt.Sprintf("invalid ris magic %q", name))
	}
	copy(m[:], name)
	return m
}

// Header is the envelope of every engine-native asset file:
//
//	[16]u8  magic, always starting with "ris_"
//	u32     reference count
//	        references, each a tagged AssetID; all of the same kind
//	[]u8    content
type Header struct {
	Magic      [16]byte
	References []AssetID
}

func (h *Header) Serialize(content []byte) ([]byte, error) {
	if string(h.Magic[:4]) != "ris_" {
		return nil, ErrNotRisAsset
	}
	for i, ref := range h.References {
		if ref.Kind != h.References[0].Kind {
			return nil, fmt.Errorf("serialize header: reference %d is %s, but all references must be of the same kind", i, ref)
		}
	}

	s := binio.NewBuffer(make([]byte, 0, 32+len(content)))
	if err := binio.WriteBytes(s, h.Magic[:]); err != nil {
		return nil, err
	}
	if err := binio.WriteUint(s, len(h.References)); err != nil {
		return nil, fmt.Errorf("serialize header: %w", err)
	}
	for _, ref := range h.References {
		if ref.Kind == KindPath {
			ref = PathID(Sanitize(ref.Path))
		}
		if err := WriteAssetID(s, ref); err != nil {
			return nil, fmt.Errorf("serialize header: %w", err)
		}
	}
	if err := binio.WriteBytes(s, content); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// DeserializeHeader splits b into its header and content. Files that do not
// start with "ris_" yield ErrNotRisAsset.
func DeserializeHeader(b []byte) (*Header, []byte, error) {
	if len(b) < 16 || string(b[:4]) != "ris_" {
		return nil, nil, ErrNotRisAsset
	}
	h := &Header{}
	copy(h.Magic[:], b)

	s := binio.NewBuffer(b)
	if err := binio.SeekTo(s, 16); err != nil {
		return nil, nil, err
	}
	count, err := binio.ReadUint(s)
	if err != nil {
		return nil, nil, fmt.Errorf("deserialize header: %w", err)
	}
	if count > len(b) {
		return nil, nil, fmt.Errorf("deserialize header: %d references in a %d byte file", count, len(b))
	}
	h.References = make([]AssetID, 0, count)
	for range count {
		ref, err := ReadAssetID(s)
		if err != nil {
			return nil, nil, fmt.Errorf("deserialize header: %w", err)
		}
		h.References = append(h.References, ref)
	}
	pos, err := binio.Pos(s)
	if err != nil {
		return nil, nil, err
	}
	return h, b[pos:], nil
}

func (h *Header) AssertMagic(magic [16]byte) error {
	if h.Magic == magic {
		return nil
	}
	return fmt.Errorf("%w: expected %s but was %s", ErrBadMagic, FormatMagic(magic), FormatMagic(h.Magic))
}

func FormatMagic(magic [16]byte) string {
	parts := make([]string, len(magic))
	for i, b := range magic {
		parts[i] = fmt.Sprintf("0x%02X", b)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Sanitize replaces characters that are invalid in paths with '_' and
// backslashes with forward slashes.
func Sanitize(path string) string {
	var sb strings.Builder
	sb.Grow(len(path))
	for _, r := range path {
		switch r {
		case ':', '*', '?', '"', '<', '>', '|':
			sb.WriteRune('_')
		case '\\':
			sb.WriteRune('/')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
