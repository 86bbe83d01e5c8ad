// Package discovery supplies the input files to transcode, either from a
// fixed list, an archive directory scan, or by watching a directory.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/banshee-data/gamic2iwrf/internal/fsutil"
	"github.com/banshee-data/gamic2iwrf/internal/timeutil"
)

// ErrWaitTimeout is returned by a realtime source when no file arrived
// within its MaxWait.
var ErrWaitTimeout = errors.New("no new input within wait timeout")

// Source yields input paths in processing order. Next returns io.EOF when a
// finite source is exhausted.
type Source interface {
	Next(ctx context.Context) (string, error)
}

// Liveness is called on every realtime wait cycle.
type Liveness func(status string)

// List replays a fixed set of paths in the given order.
type List struct {
	paths []string
	i     int
}

// NewList returns a source over paths.
func NewList(paths []string) *List {
	return &List{paths: append([]string(nil), paths...)}
}

// Next returns the next path.
func (l *List) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if l.i >= len(l.paths) {
		return "", io.EOF
	}
	p := l.paths[l.i]
	l.i++
	return p, nil
}

// Len returns the number of paths in the list.
func (l *List) Len() int {
	return len(l.paths)
}

// Candidate is a file found by a directory scan.
type Candidate struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Scan walks dir recursively and returns the regular files whose name ends
// with ext (any name when ext is empty), sorted by path. Names starting with
// "." or "_" are skipped, which keeps index and temporary files out, and so
// are the subdirectories listed in exclude.
func Scan(fsys fsutil.FileSystem, dir, ext string, exclude ...string) ([]Candidate, error) {
	var out []Candidate
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		if e != "" {
			skip[canonical(e)] = true
		}
	}
	if err := scan(fsys, dir, ext, skip, &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// canonical returns p as an absolute clean path when it can be resolved.
func canonical(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func scan(fsys fsutil.FileSystem, dir, ext string, skip map[string]bool, out *[]Candidate) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", dir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		p := filepath.Join(dir, name)
		if e.IsDir() {
			if skip[canonical(p)] {
				continue
			}
			if err := scan(fsys, p, ext, skip, out); err != nil {
				return err
			}
			continue
		}
		if ext != "" && !strings.HasSuffix(name, ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		*out = append(*out, Candidate{Path: p, ModTime: info.ModTime(), Size: info.Size()})
	}
	return nil
}

// ArchiveOptions selects files for an archive run.
type ArchiveOptions struct {
	Dir string
	Ext string
	// Exclude lists subdirectories to leave out, typically the output root.
	Exclude []string
	// Start and End bound the file modification time when non-zero.
	Start time.Time
	End   time.Time
}

// NewArchive scans the archive directory once and returns the matching files
// as a List.
func NewArchive(fsys fsutil.FileSystem, opts ArchiveOptions) (*List, error) {
	found, err := Scan(fsys, opts.Dir, opts.Ext, opts.Exclude...)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, c := range found {
		if !opts.Start.IsZero() && c.ModTime.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && c.ModTime.After(opts.End) {
			continue
		}
		paths = append(paths, c.Path)
	}
	return NewList(paths), nil
}

// RealtimeOptions configures a Realtime source.
type RealtimeOptions struct {
	Dir string
	Ext string
	// Exclude lists subdirectories to leave out, typically the output root.
	Exclude []string
	// PollInterval is the wait between directory scans.
	PollInterval time.Duration
	// Quiescence is how long a file must go unmodified before it is
	// considered complete.
	Quiescence time.Duration
	// MaxWait, when positive, bounds how long Next waits for a new file.
	MaxWait time.Duration
	// Lookback admits files modified up to this long before the source was
	// created. Zero processes only files that appear after start.
	Lookback time.Duration
}

// Realtime watches a directory for new, quiescent files.
type Realtime struct {
	fs       fsutil.FileSystem
	clock    timeutil.Clock
	opts     RealtimeOptions
	liveness Liveness
	since    time.Time
	seen     map[string]time.Time
}

// NewRealtime returns a watcher over opts.Dir. liveness may be nil.
func NewRealtime(fsys fsutil.FileSystem, clock timeutil.Clock, opts RealtimeOptions, liveness Liveness) *Realtime {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if liveness == nil {
		liveness = func(string) {}
	}
	return &Realtime{
		fs:       fsys,
		clock:    clock,
		opts:     opts,
		liveness: liveness,
		since:    clock.Now().Add(-opts.Lookback),
		seen:     make(map[string]time.Time),
	}
}

// Next blocks until a new file is ready, ctx is done, or MaxWait elapses.
// Files are returned oldest modification first.
func (r *Realtime) Next(ctx context.Context) (string, error) {
	start := r.clock.Now()
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if p, ok, err := r.poll(); err != nil {
			return "", err
		} else if ok {
			return p, nil
		}

		waited := r.clock.Since(start)
		if r.opts.MaxWait > 0 && waited >= r.opts.MaxWait {
			return "", ErrWaitTimeout
		}
		r.liveness(fmt.Sprintf("waiting for data in %s (%s)", r.opts.Dir, waited.Truncate(time.Second)))
		if err := r.clock.Sleep(ctx, r.opts.PollInterval); err != nil {
			return "", err
		}
	}
}

// poll scans once and returns the oldest ready file not yet returned.
// A missing directory counts as empty.
func (r *Realtime) poll() (string, bool, error) {
	found, err := Scan(r.fs, r.opts.Dir, r.opts.Ext, r.opts.Exclude...)
	if err != nil {
		if _, statErr := r.fs.Stat(r.opts.Dir); statErr != nil {
			return "", false, nil
		}
		return "", false, err
	}
	now := r.clock.Now()
	var best *Candidate
	for i := range found {
		c := &found[i]
		if c.ModTime.Before(r.since) {
			continue
		}
		if prev, ok := r.seen[c.Path]; ok && !c.ModTime.After(prev) {
			continue
		}
		if now.Sub(c.ModTime) < r.opts.Quiescence {
			continue
		}
		if best == nil || c.ModTime.Before(best.ModTime) {
			best = c
		}
	}
	if best == nil {
		return "", false, nil
	}
	r.seen[best.Path] = best.ModTime
	return best.Path, true, nil
}
