// Package loader finds knowledge-base files on disk and reduces them to the
// plain text the chunker expects.
package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultMaxFileSize is the largest file Discover returns (2 MB).
const DefaultMaxFileSize int64 = 2 << 20

// Format is the source format of a loaded file.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

var extensions = map[string]Format{
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".mdown":    FormatMarkdown,
	".txt":      FormatText,
	".text":     FormatText,
}

// DefaultExcludes are directories never descended into.
var DefaultExcludes = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/.hostkb/**",
	"**/vendor/**",
}

// Options controls Discover.
type Options struct {
	Exclude     []string // extra doublestar patterns to skip
	MaxFileSize int64    // 0 means DefaultMaxFileSize
}

// File is one discovered file.
type File struct {
	Path   string
	Size   int64
	Format Format
}

// Document is a loaded file reduced to plain text.
type Document struct {
	Path   string
	Title  string
	Text   string
	Format Format
	Hash   string // sha256 of the raw file
}

// Discover expands the given doublestar patterns and returns the matching
// supported files, sorted and without duplicates. A pattern naming an
// existing file is taken as-is. Oversized and binary files are skipped.
func Discover(patterns []string, opts Options) ([]File, error) {
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	excludes := append(append([]string{}, DefaultExcludes...), opts.Exclude...)

	seen := make(map[string]bool)
	var files []File
	for _, pattern := range patterns {
		if !doublestar.ValidatePathPattern(pattern) {
			return nil, fmt.Errorf("loader: invalid pattern %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
		if err != nil {
			return nil, fmt.Errorf("loader: expanding %q: %w", pattern, err)
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil || seen[abs] {
				continue
			}
			seen[abs] = true

			format, ok := FormatOf(abs)
			if !ok || excluded(abs, excludes) {
				continue
			}
			info, err := os.Stat(abs)
			if err != nil || !info.Mode().IsRegular() || info.Size() > maxSize {
				continue
			}
			if isBinary(abs) {
				continue
			}
			files = append(files, File{Path: abs, Size: info.Size(), Format: format})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// FormatOf reports the format implied by the file extension.
func FormatOf(path string) (Format, bool) {
	f, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// Load reads the file at path and normalizes it. Markdown is reduced to
// text with its headings kept as "#" lines; plain text is only cleaned of
// carriage returns and trailing spaces.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", path, err)
	}
	format, ok := FormatOf(path)
	if !ok {
		format = FormatText
	}

	sum := sha256.Sum256(raw)
	doc := &Document{
		Path:   path,
		Format: format,
		Hash:   hex.EncodeToString(sum[:]),
	}
	switch format {
	case FormatMarkdown:
		doc.Text, doc.Title = MarkdownToText(raw)
	default:
		doc.Text = cleanText(string(raw))
	}
	if doc.Title == "" {
		doc.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return doc, nil
}

// excluded matches path, without its root, and its base name against patterns.
func excluded(path string, patterns []string) bool {
	slashed := strings.TrimPrefix(filepath.ToSlash(strings.TrimPrefix(path, filepath.VolumeName(path))), "/")
	for _, p := range patterns {
		if ok, err := doublestar.PathMatch(filepath.ToSlash(p), slashed); err == nil && ok {
			return true
		}
		if ok, err := doublestar.PathMatch(filepath.ToSlash(p), filepath.Base(slashed)); err == nil && ok {
			return true
		}
	}
	return false
}

// isBinary checks the first 512 bytes for NUL.
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return true
	}
	for _, b := range buf[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
