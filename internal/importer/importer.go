// Package importer converts source files (glTF binaries, GLSL and WGSL
// shaders, images) into engine-native assets ready to be compiled into an
// archive.
package importer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/risengine/ris/internal/asset"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

type Options struct {
	// Compiler compiles preprocessed GLSL. Defaults to glslc on PATH.
	Compiler ShaderCompiler
	// Parallelism bounds concurrent imports; 0 means unbounded.
	Parallelism int
	// CacheFile is the digest manifest, relative to the target directory.
	// Empty disables skipping unchanged sources.
	CacheFile string
	// Force re-imports every source regardless of the manifest.
	Force bool
	// Debug keeps debug info in compiled shaders.
	Debug bool
}

// Stats summarises one Import run.
type Stats struct {
	Imported int
	Skipped  int
	Failed   int
}

type manifestEntry struct {
	Digest  string   `yaml:"digest"`
	Outputs []string `yaml:"outputs"`
}

type manifest struct {
	Sources map[string]manifestEntry `yaml:"sources"`
}

func loadManifest(path string) (*manifest, error) {
	m := &manifest{Sources: map[string]manifestEntry{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read import manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse import manifest %s: %w", path, err)
	}
	if m.Sources == nil {
		m.Sources = map[string]manifestEntry{}
	}
	return m, nil
}

func (m *manifest) save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal import manifest: %w", err)
	}
	return writeOutput(path, data)
}

// upToDate reports whether rel was imported from identical bytes and all of
// its outputs still exist below dst.
func (m *manifest) upToDate(dst, rel, digest string) bool {
	entry, ok := m.Sources[rel]
	if !ok || entry.Digest != digest {
		return false
	}
	for _, out := range entry.Outputs {
		if _, err := os.Stat(filepath.Join(dst, filepath.FromSlash(out))); err != nil {
			return false
		}
	}
	return true
}

// Import converts every file below src into dst, mirroring the directory
// structure. Files of unknown type are copied verbatim. Failures of single
// files are collected and returned together after the whole batch ran.
func Import(ctx context.Context, src, dst string, opts Options, log *zap.Logger) (Stats, error) {
	files, err := asset.Discover(src)
	if err != nil {
		return Stats{}, fmt.Errorf("import %s: %w", src, err)
	}
	if opts.Compiler == nil {
		opts.Compiler = Glslc{}
	}

	m := &manifest{Sources: map[string]manifestEntry{}}
	cachePath := ""
	if opts.CacheFile != "" {
		cachePath = filepath.Join(dst, opts.CacheFile)
		if m, err = loadManifest(cachePath); err != nil {
			return Stats{}, err
		}
	}

	var (
		mu    sync.Mutex
		errs  error
		stats Stats
	)
	g, ctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	}
	for _, rel := range files {
		if rel == filepath.ToSlash(opts.CacheFile) {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(src, filepath.FromSlash(rel))
			data, err := os.ReadFile(path)
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("read %s: %w", rel, err))
				stats.Failed++
				mu.Unlock()
				return nil
			}
			sum := blake2b.Sum256(data)
			digest := hex.EncodeToString(sum[:])

			mu.Lock()
			skip := !opts.Force && cachePath != "" && m.upToDate(dst, rel, digest)
			if skip {
				stats.Skipped++
			}
			mu.Unlock()
			if skip {
				log.Debug("import skipped, source unchanged", zap.String("source", rel))
				return nil
			}

			outDir := filepath.Join(dst, filepath.Dir(filepath.FromSlash(rel)))
			outputs, err := ImportFile(ctx, path, outDir, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, err)
				stats.Failed++
				log.Warn("import failed", zap.String("source", rel), zap.Error(err))
				return nil
			}
			relOutputs := make([]string, 0, len(outputs))
			for _, out := range outputs {
				r, err := filepath.Rel(dst, out)
				if err != nil {
					r = out
				}
				relOutputs = append(relOutputs, filepath.ToSlash(r))
			}
			m.Sources[rel] = manifestEntry{Digest: digest, Outputs: relOutputs}
			stats.Imported++
			log.Debug("imported", zap.String("source", rel), zap.Strings("outputs", relOutputs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, fmt.Errorf("import %s: %w", src, err)
	}

	if cachePath != "" {
		if err := m.save(cachePath); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	log.Info("import finished",
		zap.String("source", src),
		zap.String("target", dst),
		zap.Int("imported", stats.Imported),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
	if errs != nil {
		return stats, fmt.Errorf("import %s: %w", src, errs)
	}
	return stats, nil
}

// ImportFile converts a single source into dstDir based on its extension and
// returns the written files.
func ImportFile(ctx context.Context, src, dstDir string, opts Options) ([]string, error) {
	switch strings.ToLower(filepath.Ext(src)) {
	case ".glb":
		return ImportGLB(src, dstDir)
	case ".glsl":
		compiler := opts.Compiler
		if compiler == nil {
			compiler = Glslc{}
		}
		return ImportGLSL(ctx, compiler, src, dstDir)
	case ".wgsl":
		return ImportWGSL(src, dstDir, opts.Debug)
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return ImportImage(src, dstDir)
	default:
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src, err)
		}
		out := filepath.Join(dstDir, filepath.Base(src))
		if err := writeOutput(out, data); err != nil {
			return nil, err
		}
		return []string{out}, nil
	}
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
