// Package scanner walks a project tree for the Smart Ranker and other
// candidate-hungry consumers, honoring .craceignore patterns, the same
// directory blocklist the indexer skips, and an optional extension filter
// and file cap.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileInfo describes one discovered file.
type FileInfo struct {
	Path     string // slash-separated path relative to the scan root
	FullPath string // absolute path
	Language string // label from DetectLanguage
	Size     int64
}

// Options configures a Scanner.
type Options struct {
	// SkipHidden drops dot-files and dot-directories.
	SkipHidden bool
	// MaxFiles caps how many files Scan returns; 0 means unbounded.
	MaxFiles int
	// Extensions, when non-empty, restricts results to these extensions
	// (lowercase, with leading dot).
	Extensions []string
	// IgnoreFileName names the per-directory ignore file. Defaults to
	// .craceignore.
	IgnoreFileName string
	// ExcludeDirs are directory names never descended into. Defaults to the
	// indexer's blocklist.
	ExcludeDirs []string
}

// DefaultOptions returns the options every CRACE walk shares: hidden files
// skipped, the indexer's directory blocklist, .craceignore support.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		IgnoreFileName: ".craceignore",
		ExcludeDirs: []string{
			"node_modules",
			"__pycache__",
			".git",
			".venv",
			"venv",
			"dist",
			"build",
			".next",
			".cache",
			"coverage",
		},
	}
}

// Scanner walks directory trees under the configured Options.
type Scanner struct {
	opts    Options
	exclude map[string]bool
	exts    map[string]bool
}

// New builds a Scanner; zero-value option fields fall back to
// DefaultOptions' values.
func New(opts Options) *Scanner {
	defaults := DefaultOptions()
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = defaults.IgnoreFileName
	}
	if opts.ExcludeDirs == nil {
		opts.ExcludeDirs = defaults.ExcludeDirs
	}

	s := &Scanner{
		opts:    opts,
		exclude: make(map[string]bool, len(opts.ExcludeDirs)),
		exts:    make(map[string]bool, len(opts.Extensions)),
	}
	for _, d := range opts.ExcludeDirs {
		s.exclude[d] = true
	}
	for _, e := range opts.Extensions {
		s.exts[strings.ToLower(e)] = true
	}
	return s
}

// Scan walks root and returns every file that survives the hidden/blocklist/
// ignore/extension filters, in walk order, up to MaxFiles.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("scanner: resolving root: %w", err)
	}

	ignores := newIgnoreSet(s.opts.IgnoreFileName)
	s.loadIgnoreFile(ignores, absRoot, ".")

	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if s.opts.MaxFiles > 0 && len(files) >= s.opts.MaxFiles {
			return filepath.SkipAll
		}

		rel, rerr := filepath.Rel(absRoot, path)
		if rerr != nil || rel == "." {
			return nil
		}

		name := d.Name()
		if s.opts.SkipHidden && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relSlash := filepath.ToSlash(rel)
		if d.IsDir() {
			if s.exclude[name] {
				return filepath.SkipDir
			}
			s.loadIgnoreFile(ignores, absRoot, relSlash)
			return nil
		}

		if ignores.Ignored(relSlash) {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(name))
		if len(s.exts) > 0 && !s.exts[ext] {
			return nil
		}

		info, ierr := d.Info()
		if ierr != nil {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}

		files = append(files, FileInfo{
			Path:     relSlash,
			FullPath: path,
			Language: DetectLanguage(ext),
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: walking %s: %w", root, err)
	}
	return files, nil
}

func (s *Scanner) loadIgnoreFile(ignores *ignoreSet, absRoot, relDir string) {
	p := filepath.Join(absRoot, filepath.FromSlash(relDir), s.opts.IgnoreFileName)
	data, err := os.ReadFile(p)
	if err != nil {
		return
	}
	ignores.add(relDir, strings.Split(string(data), "\n"))
}

// Scan walks root with DefaultOptions.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}

// ScanWithOptions walks root with the given options.
func ScanWithOptions(root string, opts Options) ([]FileInfo, error) {
	return New(opts).Scan(root)
}
