package asset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/risengine/ris/internal/binio"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Compiled archive layout, little-endian:
//
//	[16]u8   magic "ris_assets"
//	u64      address of the path trailer, 0 when absent
//	u64      asset count N
//	[N]u64   absolute address of each asset
//	         asset blobs
//	         trailer: N nul-separated relative paths
var ArchiveMagic = Magic("ris_assets")

const archiveTableOffset = 16 + 8 + 8

// CompileOptions controls what goes into an archive.
type CompileOptions struct {
	// IncludePaths writes the path trailer. Without it the archive can only
	// be decompiled by index.
	IncludePaths bool
}

// Discover lists every file below root in a deterministic order: entries of
// each directory sorted by name, depth first. The result holds normalised
// relative paths.
func Discover(root string) ([]string, error) {
	var files []string
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read dir %s: %w", dir, err)
		}
		for _, e := range entries {
			full := filepath.Join(dir, e.Name())
			if e.IsDir() {
				if err := walk(full); err != nil {
					return err
				}
				continue
			}
			rel, err := filepath.Rel(root, full)
			if err != nil {
				return fmt.Errorf("relative path of %s: %w", full, err)
			}
			files = append(files, NormalizePath(rel))
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return files, nil
}

// Compile packs every file below src into the archive dst. Header references
// by path are rewritten to indices.
func Compile(src, dst string, opts CompileOptions, log *zap.Logger) error {
	files, err := Discover(src)
	if err != nil {
		return fmt.Errorf("compile %s: %w", src, err)
	}
	lookup := make(map[string]uint32, len(files))
	for i, f := range files {
		lookup[f] = uint32(i)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", dst, err)
	}
	defer out.Close()

	if err := binio.WriteBytes(out, ArchiveMagic[:]); err != nil {
		return fmt.Errorf("write archive magic: %w", err)
	}
	if err := binio.WriteU64(out, 0); err != nil {
		return fmt.Errorf("write trailer placeholder: %w", err)
	}
	if err := binio.WriteU64(out, uint64(len(files))); err != nil {
		return fmt.Errorf("write asset count: %w", err)
	}
	if err := binio.WriteBytes(out, make([]byte, 8*len(files))); err != nil {
		return fmt.Errorf("write lookup placeholder: %w", err)
	}

	addrs := make([]uint64, len(files))
	for i, f := range files {
		data, err := os.ReadFile(filepath.Join(src, filepath.FromSlash(f)))
		if err != nil {
			return fmt.Errorf("read asset %s: %w", f, err)
		}
		data, err = rewriteReferences(f, data, lookup)
		if err != nil {
			return err
		}
		p, err := binio.WriteUnsized(out, data)
		if err != nil {
			return fmt.Errorf("write asset %s: %w", f, err)
		}
		addrs[i] = p.Addr
		log.Debug("compiled asset", zap.Int("index", i), zap.String("path", f), zap.Uint64("len", p.Len))
	}

	var trailer uint64
	if opts.IncludePaths {
		p, err := binio.WriteStrings(out, files)
		if err != nil {
			return fmt.Errorf("write path trailer: %w", err)
		}
		trailer = p.Addr
	}

	if err := binio.SeekTo(out, 16); err != nil {
		return err
	}
	if err := binio.WriteU64(out, trailer); err != nil {
		return fmt.Errorf("patch trailer address: %w", err)
	}
	if err := binio.SeekTo(out, archiveTableOffset); err != nil {
		return err
	}
	for _, a := range addrs {
		if err := binio.WriteU64(out, a); err != nil {
			return fmt.Errorf("patch lookup table: %w", err)
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close archive %s: %w", dst, err)
	}

	log.Info("compiled assets",
		zap.String("source", src),
		zap.String("target", dst),
		zap.Int("count", len(files)),
		zap.Bool("paths", opts.IncludePaths))
	return nil
}

func rewriteReferences(name string, data []byte, lookup map[string]uint32) ([]byte, error) {
	header, content, err := DeserializeHeader(data)
	if errors.Is(err, ErrNotRisAsset) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", name, err)
	}
	changed := false
	for i, ref := range header.References {
		if ref.Kind != KindPath {
			continue
		}
		index, ok := lookup[NormalizePath(ref.Path)]
		if !ok {
			return nil, fmt.Errorf("asset %s references unknown asset %s", name, ref.Path)
		}
		header.References[i] = IndexID(index)
		changed = true
	}
	if !changed {
		return data, nil
	}
	return header.Serialize(content)
}

type archiveHeader struct {
	trailer uint64
	lookup  []uint64
	size    uint64
}

func readArchiveHeader(r io.ReadSeeker) (*archiveHeader, error) {
	size, err := binio.Size(r)
	if err != nil {
		return nil, err
	}
	if err := binio.SeekTo(r, 0); err != nil {
		return nil, err
	}
	magic, err := binio.ReadBytes(r, 16)
	if err != nil {
		return nil, fmt.Errorf("read archive magic: %w", err)
	}
	if string(magic) != string(ArchiveMagic[:]) {
		return nil, fmt.Errorf("%w: not a compiled asset archive", ErrBadMagic)
	}
	trailer, err := binio.ReadU64(r)
	if err != nil {
		return nil, fmt.Errorf("read trailer address: %w", err)
	}
	count, err := binio.ReadU64(r)
	if err != nil {
		return nil, fmt.Errorf("read asset count: %w", err)
	}
	if count > (size-archiveTableOffset)/8 {
		return nil, fmt.Errorf("asset count %d does not fit into a %d byte archive", count, size)
	}
	h := &archiveHeader{trailer: trailer, size: size, lookup: make([]uint64, count)}
	for i := range h.lookup {
		if h.lookup[i], err = binio.ReadU64(r); err != nil {
			return nil, fmt.Errorf("read lookup entry %d: %w", i, err)
		}
	}
	return h, nil
}

// span returns the byte range of asset i. The last asset ends where the
// trailer begins, or at the end of the file without a trailer.
func (h *archiveHeader) span(i int) (binio.FatPtr, error) {
	if i < 0 || i >= len(h.lookup) {
		return binio.FatPtr{}, fmt.Errorf("%w: index %d, archive has %d assets", ErrNotFound, i, len(h.lookup))
	}
	addr := h.lookup[i]
	var next uint64
	switch {
	case i+1 < len(h.lookup):
		next = h.lookup[i+1]
	case h.trailer != 0:
		next = h.trailer
	default:
		next = h.size
	}
	if next > h.size {
		return binio.FatPtr{}, fmt.Errorf("asset %d ends at %d, past the end of the archive (%d)", i, next, h.size)
	}
	p, err := binio.BeginEnd(addr, next)
	if err != nil {
		return binio.FatPtr{}, fmt.Errorf("asset %d: %w", i, err)
	}
	return p, nil
}

func (h *archiveHeader) paths(r io.ReadSeeker) ([]string, error) {
	if h.trailer == 0 {
		return nil, nil
	}
	p, err := binio.BeginEnd(h.trailer, h.size)
	if err != nil {
		return nil, fmt.Errorf("trailer: %w", err)
	}
	paths, err := binio.ReadStrings(r, p)
	if err != nil {
		return nil, fmt.Errorf("read trailer: %w", err)
	}
	if len(paths) != len(h.lookup) {
		return nil, fmt.Errorf("trailer holds %d paths for %d assets", len(paths), len(h.lookup))
	}
	return paths, nil
}

// Decompile unpacks the archive src into the directory dst. Without a path
// trailer the assets are written as 000.bin, 001.bin and so on.
func Decompile(src, dst string, log *zap.Logger) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", src, err)
	}
	defer in.Close()

	h, err := readArchiveHeader(in)
	if err != nil {
		return fmt.Errorf("decompile %s: %w", src, err)
	}
	paths, err := h.paths(in)
	if err != nil {
		return fmt.Errorf("decompile %s: %w", src, err)
	}
	if paths == nil {
		paths = make([]string, len(h.lookup))
		for i := range paths {
			paths[i] = fmt.Sprintf("%03d.bin", i)
		}
	}

	seen := make(map[string]int, len(paths))
	for i, p := range paths {
		clean := path.Clean(p)
		if clean == "." || strings.HasPrefix(clean, "../") || clean == ".." || path.IsAbs(clean) {
			return fmt.Errorf("decompile %s: asset %d has unsafe path %q", src, i, p)
		}
		if prev, ok := seen[clean]; ok {
			return fmt.Errorf("decompile %s: assets %d and %d collide on path %q", src, prev, i, p)
		}
		seen[clean] = i
		paths[i] = clean
	}

	var errs error
	for i, p := range paths {
		span, err := h.span(i)
		if err != nil {
			return fmt.Errorf("decompile %s: %w", src, err)
		}
		data, err := binio.ReadUnsized(in, span)
		if err != nil {
			return fmt.Errorf("decompile %s: asset %d: %w", src, i, err)
		}
		target := filepath.Join(dst, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("create dir for %s: %w", p, err))
			continue
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("write %s: %w", p, err))
			continue
		}
		log.Debug("decompiled asset", zap.Int("index", i), zap.String("path", p), zap.Int("len", len(data)))
	}
	if errs != nil {
		return fmt.Errorf("decompile %s: %w", src, errs)
	}

	log.Info("decompiled assets", zap.String("source", src), zap.String("target", dst), zap.Int("count", len(paths)))
	return nil
}
