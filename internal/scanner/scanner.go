// Package scanner implements the discovery worker's filesystem walk
// (spec.md §4.3 "Scanner contract"), adapted from the teacher's
// fs/walk.go: godirwalk driving a callback, with an error-counting
// wrapper that halts only once a threshold of soft errors is exceeded
// rather than aborting on the first one.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/karrick/godirwalk"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/cmn"
)

// errThreshold bounds how many per-entry I/O errors the scanner tolerates
// before halting the walk outright (spec.md §4.3: "counts but does not
// abort" — up to this point).
const errThreshold = 1000

// Descriptor is what the scanner yields per file, per spec.md §4.3:
// "(absolutePath, basename, extension, size, modifiedUtc)".
type Descriptor struct {
	AbsolutePath string
	Basename     string
	Extension    string
	SizeBytes    int64
	ModifiedUTC  int64 // unix seconds, UTC
}

// Options configures one walk. Defaults mirror spec.md §6.5 ScannerOptions.
type Options struct {
	Root           string
	Extensions     map[string]bool // lowercase, with leading dot
	ExcludedDirs   map[string]bool // basenames, e.g. "@eaDir"
	SkipHidden     bool
	FollowSymlinks bool
	MaxDepth       int
	Sorted         bool
}

type Callback func(ctx context.Context, d Descriptor) error

// Stats accumulates per-walk counters for the status record (spec.md §4.3).
type Stats struct {
	FilesYielded int64
	IOErrors     int64
}

// Walk performs the recursive depth-first traversal described in spec.md
// §4.3. It stops (returning an *cmn.Error of kind Io) once the error count
// exceeds errThreshold, or immediately on ctx cancellation.
func Walk(ctx context.Context, opts Options, cb Callback, log *zap.Logger) (*Stats, error) {
	stats := &Stats{}
	rootDepth := strings.Count(filepath.Clean(opts.Root), string(os.PathSeparator))

	var errCount int64
	errCallback := func(path string, err error) godirwalk.ErrorAction {
		if ctx.Err() != nil {
			return godirwalk.Halt
		}
		n := atomic.AddInt64(&errCount, 1)
		atomic.AddInt64(&stats.IOErrors, 1)
		log.Warn("scanner io error", zap.String("path", path), zap.Error(err))
		if n > errThreshold {
			return godirwalk.Halt
		}
		return godirwalk.SkipNode
	}

	walkCb := func(fqn string, de *godirwalk.Dirent) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if de.IsDir() {
			base := filepath.Base(fqn)
			if fqn != opts.Root && opts.ExcludedDirs[base] {
				return filepath.SkipDir
			}
			if opts.SkipHidden && fqn != opts.Root && strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 {
				depth := strings.Count(filepath.Clean(fqn), string(os.PathSeparator)) - rootDepth
				if depth > opts.MaxDepth {
					return filepath.SkipDir
				}
			}
			return nil
		}

		isSymlink, err := de.IsSymlinkOrDevice()
		if err == nil && isSymlink && !opts.FollowSymlinks {
			return nil
		}

		base := filepath.Base(fqn)
		if opts.SkipHidden && strings.HasPrefix(base, ".") {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(base))
		if len(opts.Extensions) > 0 && !opts.Extensions[ext] {
			return nil
		}

		info, err := os.Lstat(fqn)
		if err != nil {
			return errIfDeleted(err)
		}

		d := Descriptor{
			AbsolutePath: fqn,
			Basename:     base,
			Extension:    ext,
			SizeBytes:    info.Size(),
			ModifiedUTC:  info.ModTime().UTC().Unix(),
		}
		if err := cb(ctx, d); err != nil {
			return err
		}
		atomic.AddInt64(&stats.FilesYielded, 1)
		return nil
	}

	err := godirwalk.Walk(opts.Root, &godirwalk.Options{
		Callback:      walkCb,
		ErrorCallback: errCallback,
		Unsorted:      !opts.Sorted,
	})
	if err == context.Canceled {
		return stats, cmn.NewCancelled("scan_cancelled", "scan cancelled")
	}
	if err != nil {
		return stats, cmn.NewIO("scan_failed", "filesystem walk failed", err)
	}
	return stats, nil
}

func errIfDeleted(err error) error {
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// SortedExtensions is a small helper for log/debug output; stable sort of
// a map's keys.
func SortedExtensions(exts map[string]bool) []string {
	out := make([]string, 0, len(exts))
	for e := range exts {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
