package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/kirillkom/docsearch/internal/core/ports"
)

var _ ports.FileSource = (*Source)(nil)

// Source lists files under a root directory that match any include glob.
// Paths are slash-separated and relative to the root. Hidden files and directories are skipped.
type Source struct {
	root     string
	includes []string

	// Debounce coalesces bursts of write events for one file.
	Debounce time.Duration
}

func New(root string, includes []string) (*Source, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve source root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", abs)
	}

	cleaned := make([]string, 0, len(includes))
	for _, p := range includes {
		if p = strings.TrimSpace(p); p != "" {
			if !doublestar.ValidatePattern(p) {
				return nil, fmt.Errorf("invalid include pattern %q", p)
			}
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []string{"**/*"}
	}
	return &Source{root: abs, includes: cleaned, Debounce: 500 * time.Millisecond}, nil
}

func (s *Source) Root() string {
	return s.root
}

func (s *Source) List(ctx context.Context) ([]string, error) {
	var out []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == s.root {
			return nil
		}
		if isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := s.rel(path)
		if err != nil {
			return err
		}
		if s.matches(rel) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}
	return out, nil
}

func (s *Source) Open(_ context.Context, path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Watch calls onChange with the relative path of every matching file created or
// written under the root until ctx ends. New subdirectories are watched as they appear.
func (s *Source) Watch(ctx context.Context, onChange func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := s.addTree(watcher, s.root); err != nil {
		return err
	}

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
	}()

	schedule := func(rel string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[rel]; ok {
			t.Reset(s.Debounce)
			return
		}
		pending[rel] = time.AfterFunc(s.Debounce, func() {
			mu.Lock()
			delete(pending, rel)
			mu.Unlock()
			if ctx.Err() == nil {
				onChange(rel)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("source_watch_error", "root", s.root, "error", err)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if isHidden(filepath.Base(ev.Name)) {
				continue
			}
			info, err := os.Stat(ev.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if ev.Has(fsnotify.Create) {
					if err := s.addTree(watcher, ev.Name); err != nil {
						slog.Warn("source_watch_error", "path", ev.Name, "error", err)
					}
				}
				continue
			}
			rel, err := s.rel(ev.Name)
			if err != nil || !s.matches(rel) {
				continue
			}
			schedule(rel)
		}
	}
}

func (s *Source) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (s *Source) matches(rel string) bool {
	for _, pattern := range s.includes {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func (s *Source) rel(path string) (string, error) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func (s *Source) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.New("path escapes source root: " + rel)
	}
	return filepath.Join(s.root, clean), nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
