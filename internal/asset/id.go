// Package asset implements the engine's asset formats: ids, the RisHeader
// envelope, the compiled archive and its loaders, and the mesh, terrain,
// texture and god-asset files.
package asset

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/risengine/ris/internal/binio"
	"golang.org/x/text/unicode/norm"
)

type IDKind uint8

const (
	KindIndex IDKind = iota
	KindPath
)

// AssetID names an asset either by its index in a compiled archive or by its
// path relative to an asset directory. Paths are stored NFC-normalised with
// forward slashes so equal paths compare equal.
type AssetID struct {
	Kind  IDKind
	Index uint32
	Path  string
}

func IndexID(index uint32) AssetID {
	return AssetID{Kind: KindIndex, Index: index}
}

func PathID(path string) AssetID {
	return AssetID{Kind: KindPath, Path: NormalizePath(path)}
}

// NormalizePath converts path to the canonical form used as an archive key.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(filepath.ToSlash(path), "\\", "/")
	return norm.NFC.String(strings.TrimPrefix(path, "./"))
}

// ParseAssetID reads "123" as an index and anything else as a path.
func ParseAssetID(s string) AssetID {
	if v, err := strconv.ParseUint(s, 10, 32); err == nil {
		return IndexID(uint32(v))
	}
	return PathID(s)
}

func (id AssetID) String() string {
	if id.Kind == KindIndex {
		return fmt.Sprintf("index:%d", id.Index)
	}
	return "path:" + id.Path
}

// WriteAssetID writes a tag byte (0 index, 1 path) and the payload.
func WriteAssetID(w io.Writer, id AssetID) error {
	if err := binio.WriteU8(w, uint8(id.Kind)); err != nil {
		return fmt.Errorf("write asset id tag: %w", err)
	}
	switch id.Kind {
	case KindIndex:
		return binio.WriteU32(w, id.Index)
	case KindPath:
		return binio.WriteString(w, id.Path)
	default:
		return fmt.Errorf("write asset id: unknown kind %d", id.Kind)
	}
}

func ReadAssetID(r io.Reader) (AssetID, error) {
	tag, err := binio.ReadU8(r)
	if err != nil {
		return AssetID{}, fmt.Errorf("read asset id tag: %w", err)
	}
	switch IDKind(tag) {
	case KindIndex:
		v, err := binio.ReadU32(r)
		if err != nil {
			return AssetID{}, fmt.Errorf("read asset index: %w", err)
		}
		return IndexID(v), nil
	case KindPath:
		s, err := binio.ReadString(r)
		if err != nil {
			return AssetID{}, fmt.Errorf("read asset path: %w", err)
		}
		return PathID(s), nil
	default:
		return AssetID{}, fmt.Errorf("read asset id: unknown tag %d", tag)
	}
}

func (id AssetID) Equal(other AssetID) bool {
	return id == other
}
