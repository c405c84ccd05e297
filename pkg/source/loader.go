// Package source enumerates, reads and writes the files of a migration.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"github.com/src-d/enry/v2"
)

// Sentinel errors for file operations.
var (
	ErrRead        = errors.New("read failed")
	ErrWrite       = errors.New("write failed")
	ErrTooLarge    = errors.New("file exceeds max size")
	ErrOutsideRoot = errors.New("path is outside the input root")
	ErrList        = errors.New("listing failed")
)

// languageJavaScript is the enry name of the only language migrated.
const languageJavaScript = "JavaScript"

// Options selects the files a Loader returns.
type Options struct {
	Root    string
	Pattern string
	// Exclude lists base names that are never returned.
	Exclude []string
	// MaxFileSize rejects larger files on Read. Zero disables the check.
	MaxFileSize uint64
	SkipVendor  bool
}

// Loader lists and reads source files from a file system.
type Loader struct {
	fs     afero.Fs
	logger *slog.Logger
	opts   Options
}

// NewLoader creates a Loader over fsys.
func NewLoader(fsys afero.Fs, opts Options, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{fs: fsys, opts: opts, logger: logger}
}

// List returns the paths under the root matching the pattern, in lexical order.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	var paths []string

	walkErr := afero.Walk(l.fs, l.opts.Root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(l.opts.Root, path)
		if relErr != nil {
			return relErr
		}

		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel != "." && l.opts.SkipVendor && enry.IsVendor(rel+"/") {
				l.logger.DebugContext(ctx, "skipping vendor directory", "path", path)

				return filepath.SkipDir
			}

			return nil
		}

		if !l.accept(rel) {
			return nil
		}

		paths = append(paths, path)

		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrList, l.opts.Root, walkErr)
	}

	return paths, nil
}

func (l *Loader) accept(rel string) bool {
	if slices.Contains(l.opts.Exclude, filepath.Base(rel)) {
		return false
	}

	if l.opts.SkipVendor && enry.IsVendor(rel) {
		return false
	}

	return MatchGlob(l.opts.Pattern, rel)
}

// Read returns the content of path, enforcing the size limit.
func (l *Loader) Read(path string) ([]byte, error) {
	info, err := l.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrRead, path)
	}

	if l.opts.MaxFileSize > 0 && uint64(info.Size()) > l.opts.MaxFileSize { //nolint:gosec // file sizes are non-negative
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrTooLarge, path, info.Size())
	}

	content, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	return content, nil
}

// IsJavaScript reports whether enry classifies the file as JavaScript.
func IsJavaScript(path string, content []byte) bool {
	return enry.GetLanguage(filepath.Base(path), content) == languageJavaScript
}

// Writer mirrors files from the input root into the output root.
type Writer struct {
	fs         afero.Fs
	inputRoot  string
	outputRoot string
}

// NewWriter creates a Writer over fsys.
func NewWriter(fsys afero.Fs, inputRoot, outputRoot string) *Writer {
	return &Writer{fs: fsys, inputRoot: inputRoot, outputRoot: outputRoot}
}

// Target returns where the file at path is written.
func (w *Writer) Target(path string) (string, error) {
	rel, err := filepath.Rel(w.inputRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	return filepath.Join(w.outputRoot, rel), nil
}

// Clean removes the output root and everything below it.
func (w *Writer) Clean() error {
	err := w.fs.RemoveAll(w.outputRoot)
	if err != nil {
		return fmt.Errorf("%w: clean %s: %w", ErrWrite, w.outputRoot, err)
	}

	return nil
}

// Write stores content at the mirrored location of path and returns that location.
// Parent directories are created as needed; concurrent writers may race on them safely.
func (w *Writer) Write(path, content string) (string, error) {
	target, err := w.Target(path)
	if err != nil {
		return "", err
	}

	err = w.fs.MkdirAll(filepath.Dir(target), 0o755)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}

	err = afero.WriteFile(w.fs, target, []byte(content), 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}

	return target, nil
}
