// Package jarx provides container access for class files: plain .class
// files on disk and jar/zip archives.
package jarx

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"mokair/internal/classfile"
)

var (
	ErrNotArchive = errors.New("jarx: not a zip archive")
	ErrNoClasses  = errors.New("jarx: archive contains no class files")
)

// ClassEntry is one class file found in a container.
type ClassEntry struct {
	// Path is the entry path inside the archive, or the file path for a
	// bare .class file.
	Path string
	Data []byte
}

// BinaryName derives the binary class name from the entry path:
// com/example/Foo.class becomes com/example/Foo.
func (e *ClassEntry) BinaryName() string {
	return strings.TrimSuffix(strings.TrimPrefix(e.Path, "/"), ".class")
}

// Load reads class files from p: a .class file yields one entry, anything
// else is opened as a jar/zip archive. Entries come back sorted by path.
func Load(p string) ([]ClassEntry, error) {
	if strings.HasSuffix(p, ".class") {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("jarx: read: %w", err)
		}
		return []ClassEntry{{Path: p, Data: data}}, nil
	}
	r, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotArchive, err)
	}
	defer r.Close()
	return readArchive(&r.Reader)
}

// LoadReader reads every class file from an in-memory jar/zip archive.
func LoadReader(ra io.ReaderAt, size int64) ([]ClassEntry, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotArchive, err)
	}
	return readArchive(zr)
}

func readArchive(zr *zip.Reader) ([]ClassEntry, error) {
	var out []ClassEntry
	for _, zf := range zr.File {
		if !strings.HasSuffix(zf.Name, ".class") || strings.HasPrefix(path.Base(zf.Name), ".") {
			continue
		}
		// Multi-release jars duplicate classes under META-INF/versions;
		// keep the base copies only.
		if strings.HasPrefix(zf.Name, "META-INF/") {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("jarx: open %s: %w", zf.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("jarx: read %s: %w", zf.Name, err)
		}
		out = append(out, ClassEntry{Path: zf.Name, Data: data})
	}
	if len(out) == 0 {
		return nil, ErrNoClasses
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// ParseResult pairs a container entry with its parse outcome.
type ParseResult struct {
	Entry ClassEntry
	Class *classfile.Class
	Err   error
}

// ParseAll parses every loaded entry. Parse failures are returned per entry
// so one bad class does not sink the archive.
func ParseAll(entries []ClassEntry) []ParseResult {
	out := make([]ParseResult, 0, len(entries))
	for _, e := range entries {
		c, err := classfile.ParseBytes(e.Data)
		out = append(out, ParseResult{Entry: e, Class: c, Err: err})
	}
	return out
}
