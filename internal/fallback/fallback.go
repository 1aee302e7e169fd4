// Package fallback keeps the previous versions of a file. The live file is
// <dir>/current<ext>; each rotation moves it to <dir>/old/<stamp><ext>, where
// stamp is the RFC 3339 time written on its first line, and prunes the old
// directory down to the configured count.
package fallback

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const uniqueNameAttempts = 100

var filenameReplacer = strings.NewReplacer(
	`\`, "_", "/", "_", ":", "_", "*", "_", "?", "_", `"`, "_", "<", "_", ">", "_", "|", "_",
)

type paths struct {
	current string
	old     string
	ext     string
	keep    int
}

func newPaths(dir, ext string, oldFileCount int) paths {
	return paths{
		current: filepath.Join(dir, "current"+ext),
		old:     filepath.Join(dir, "old"),
		ext:     ext,
		keep:    max(oldFileCount, 1),
	}
}

// rotate moves the current file into the old directory, making room for it
// first.
func (p paths) rotate(now func() time.Time) error {
	if err := os.MkdirAll(p.old, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", p.old, err)
	}
	if err := p.deleteExpired(); err != nil {
		return err
	}

	stamp, err := firstLine(p.current)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if stamp == "" {
		stamp = now().Format(time.RFC3339Nano)
	}
	target := filepath.Join(p.old, filenameReplacer.Replace(stamp)+p.ext)
	for range uniqueNameAttempts {
		if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
			if err := os.Rename(p.current, target); err != nil {
				return fmt.Errorf("rotate %s: %w", p.current, err)
			}
			return nil
		}
		time.Sleep(time.Millisecond)
		target = filepath.Join(p.old, filenameReplacer.Replace(now().Format(time.RFC3339Nano))+p.ext)
	}
	return fmt.Errorf("rotate %s: no unique name in %s", p.current, p.old)
}

func (p paths) deleteExpired() error {
	entries, err := sortedEntries(p.old)
	if err != nil {
		return err
	}
	if len(entries) < p.keep {
		return nil
	}
	for _, e := range entries[p.keep-1:] {
		if err := os.RemoveAll(e); err != nil {
			return fmt.Errorf("delete expired %s: %w", e, err)
		}
	}
	return nil
}

// sortedEntries lists dir newest first. Stamped names sort by time.
func sortedEntries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	result := make([]string, 0, len(entries))
	for _, e := range entries {
		result = append(result, filepath.Join(dir, e.Name()))
	}
	slices.Sort(result)
	slices.Reverse(result)
	return result, nil
}

func firstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	if s.Scan() {
		return strings.TrimSpace(s.Text()), nil
	}
	return "", s.Err()
}

func createCurrent(path string, now time.Time) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := fmt.Fprintf(f, "%s\n\n", now.Format(time.RFC3339Nano)); err != nil {
		f.Close()
		return nil, fmt.Errorf("write timestamp to %s: %w", path, err)
	}
	return f, nil
}

// stripStamp removes the timestamp line and the blank line after it, when
// both are present.
func stripStamp(b []byte) []byte {
	first := bytes.IndexByte(b, '\n')
	if first < 0 || first+1 >= len(b) || b[first+1] != '\n' {
		return b
	}
	if _, err := time.Parse(time.RFC3339Nano, string(b[:first])); err != nil {
		return b
	}
	return b[first+2:]
}

// Append rotates once on open and then appends to the fresh current file,
// the way log files are kept.
type Append struct {
	*os.File
}

func NewAppend(dir, ext string, oldFileCount int) (*Append, error) {
	p := newPaths(dir, ext, oldFileCount)
	if err := p.rotate(time.Now); err != nil {
		return nil, err
	}
	f, err := createCurrent(p.current, time.Now())
	if err != nil {
		return nil, err
	}
	return &Append{File: f}, nil
}

// Overwrite rotates on every write, the way settings are kept. Nothing
// touches the disk before the first write.
type Overwrite struct {
	paths
	now func() time.Time
}

func NewOverwrite(dir, ext string, oldFileCount int) *Overwrite {
	return &Overwrite{paths: newPaths(dir, ext, oldFileCount), now: time.Now}
}

func (o *Overwrite) CurrentPath() string { return o.current }

func (o *Overwrite) OverwriteCurrent(b []byte) error {
	if err := o.rotate(o.now); err != nil {
		return err
	}
	f, err := createCurrent(o.current, o.now())
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", o.current, err)
	}
	return f.Close()
}

// AvailablePaths lists the current file, then the old ones newest first.
func (o *Overwrite) AvailablePaths() []string {
	var result []string
	if _, err := os.Stat(o.current); err == nil {
		result = append(result, o.current)
	}
	if old, err := sortedEntries(o.old); err == nil {
		result = append(result, old...)
	}
	return result
}

// GetByPath reads path without its timestamp header.
func (o *Overwrite) GetByPath(path string) ([]byte, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return stripStamp(b), true
}

// GetByIndex reads the i-th of AvailablePaths.
func (o *Overwrite) GetByIndex(i int) ([]byte, bool) {
	available := o.AvailablePaths()
	if i < 0 || i >= len(available) {
		return nil, false
	}
	return o.GetByPath(available[i])
}
