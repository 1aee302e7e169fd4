package asset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/risengine/ris/internal/jobs"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("asset not found")

// Loader resolves an AssetID to its bytes. Implementations are safe for
// concurrent use.
type Loader interface {
	Load(id AssetID) ([]byte, error)
}

// CompiledLoader reads assets out of a compiled archive. Path ids resolve
// through the trailer when the archive has one.
type CompiledLoader struct {
	file   *os.File
	header *archiveHeader
	byPath map[string]int
}

func OpenCompiled(path string) (*CompiledLoader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	h, err := readArchiveHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	paths, err := h.paths(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	l := &CompiledLoader{file: f, header: h}
	if paths != nil {
		l.byPath = make(map[string]int, len(paths))
		for i, p := range paths {
			l.byPath[p] = i
		}
	}
	return l, nil
}

func (l *CompiledLoader) Len() int {
	return len(l.header.lookup)
}

func (l *CompiledLoader) Load(id AssetID) ([]byte, error) {
	index := int(id.Index)
	if id.Kind == KindPath {
		i, ok := l.byPath[id.Path]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		index = i
	}
	span, err := l.header.span(index)
	if err != nil {
		return nil, err
	}
	data := make([]byte, span.Len)
	if _, err := l.file.ReadAt(data, int64(span.Addr)); err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	return data, nil
}

func (l *CompiledLoader) Close() error {
	return l.file.Close()
}

// DirectoryLoader reads loose files below a root directory by path id.
type DirectoryLoader struct {
	root string
}

func NewDirectoryLoader(root string) *DirectoryLoader {
	return &DirectoryLoader{root: root}
}

func (l *DirectoryLoader) Load(id AssetID) ([]byte, error) {
	if id.Kind != KindPath {
		return nil, fmt.Errorf("%w: %s cannot be loaded from a directory", ErrNotFound, id)
	}
	data, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(id.Path)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	return data, nil
}

// SwappableLoader forwards to a loader that can be replaced at runtime, which
// is how a hot reload points the engine at freshly imported assets.
type SwappableLoader struct {
	mu    sync.RWMutex
	inner Loader
}

func NewSwappableLoader(inner Loader) *SwappableLoader {
	return &SwappableLoader{inner: inner}
}

func (l *SwappableLoader) Swap(inner Loader) Loader {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.inner
	l.inner = inner
	return prev
}

func (l *SwappableLoader) Load(id AssetID) ([]byte, error) {
	l.mu.RLock()
	inner := l.inner
	l.mu.RUnlock()
	return inner.Load(id)
}

// Result carries the outcome of an asynchronous load.
type Result[T any] struct {
	Value T
	Err   error
}

// LoadAsync loads id on the job system, maps the bytes with mapBytes and
// delivers the outcome through the returned receiver. Without a worker the
// request is reported to the global logger and the receiver is closed.
func LoadAsync[T any](w *jobs.Worker, l Loader, id AssetID, mapBytes func([]byte) (T, error)) *jobs.OneshotReceiver[Result[T]] {
	tx, rx := jobs.NewOneshot[Result[T]]()
	if w == nil {
		zap.L().Error("asset load requested outside the job system", zap.Stringer("id", id))
		tx.Close()
		return rx
	}
	jobs.Submit(w, func(*jobs.Worker) struct{} {
		data, err := l.Load(id)
		if err != nil {
			tx.Send(Result[T]{Err: fmt.Errorf("load %s: %w", id, err)})
			return struct{}{}
		}
		v, err := mapBytes(data)
		if err != nil {
			err = fmt.Errorf("map %s: %w", id, err)
		}
		tx.Send(Result[T]{Value: v, Err: err})
		return struct{}{}
	})
	return rx
}
