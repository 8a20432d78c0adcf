// © 2022 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package site

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.astrophena.name/articles/internal/config"
	"go.astrophena.name/articles/internal/plugin"

	"github.com/fsnotify/fsnotify"
	"go.astrophena.name/base/logger"
)

var serveReadyHook func() // used in tests, called when Serve started serving the site

// debouncer delays execution of a function until a specified duration has
// passed without any new events.
type debouncer struct {
	d  time.Duration
	mu sync.Mutex
	f  func()
	t  *time.Timer

	stopped bool
}

// newDebouncer creates a new debouncer.
func newDebouncer(d time.Duration, f func()) *debouncer {
	return &debouncer{
		d: d,
		f: f,
	}
}

// Do schedules a function to be executed.
func (d *debouncer) Do() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.t != nil {
		d.t.Stop()
	}

	d.t = time.AfterFunc(d.d, d.f)
}

// Stop cancels a scheduled execution. Later calls to Do do nothing.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.t != nil {
		d.t.Stop()
	}
}

// Serve builds the site in development mode and starts serving it on a
// provided host:port. The site is rebuilt when files in the project root
// change; new article directories are picked up on rebuild.
func Serve(ctx context.Context, c *config.Config, addr string) error {
	outDir := c.Path(c.Build.OutDir)

	var mu sync.Mutex // serializes builds
	rebuild := func() {
		mu.Lock()
		defer mu.Unlock()

		cc := c.Clone()
		err := cc.DiscoverEntries()
		if err == nil {
			err = build(ctx, cc, plugin.Serve)
		}
		if err != nil {
			logger.Error(ctx, "build failed", slog.Any("err", err))
		}
	}

	logger.Info(ctx, "performing an initial build")
	rebuild()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	skip := func(dir string) bool {
		if dir == c.Root {
			return false
		}
		base := filepath.Base(dir)
		return dir == outDir || strings.HasPrefix(base, ".") || base == "node_modules"
	}
	if err := watchRecursive(watcher, c.Root, skip); err != nil {
		return err
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer l.Close()
	logger.Info(ctx, "listening for HTTP requests", slog.String("addr", "http://"+l.Addr().String()))

	httpSrv := &http.Server{Handler: &staticHandler{fs: os.DirFS(outDir)}}
	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				errCh <- err
			}
		}
	}()

	// It's better to have a bit of delay, so that we don't start building
	// the site on each keystroke.
	debouncer := newDebouncer(250*time.Millisecond, func() {
		logger.Info(ctx, "triggering build")
		rebuild()
	})
	defer func() {
		debouncer.Stop()
		// Wait for a build that has already started.
		mu.Lock()
		defer mu.Unlock()
	}()

	go func() {
		logger.Info(ctx, "started watching for new changes")

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name == outDir || strings.HasPrefix(event.Name, outDir+string(filepath.Separator)) {
					continue
				}
				if !shouldRebuild(event.Name, event.Op) {
					continue
				}
				// Watch directories of new articles.
				if event.Op&fsnotify.Create != 0 {
					if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() && !skip(event.Name) {
						if err := watchRecursive(watcher, event.Name, skip); err != nil {
							logger.Error(ctx, "failed to watch directory", slog.String("dir", event.Name), slog.Any("err", err))
						}
					}
				}
				logger.Info(ctx, "detected change, scheduling build",
					slog.String("name", event.Name),
					slog.Any("op", event.Op),
				)
				debouncer.Do()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error(ctx, "watcher error", slog.Any("err", err))
			case <-ctx.Done():
				return
			}
		}
	}()

	if serveReadyHook != nil {
		serveReadyHook()
	}

	select {
	case <-ctx.Done():
		logger.Info(ctx, "gracefully shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return httpSrv.Shutdown(shutdownCtx)
}

func watchRecursive(w *fsnotify.Watcher, dir string, skip func(dir string) bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if skip(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// Copied from
// https://github.com/brandur/modulir/blob/1ff912fdc45a79cb4d8d9f199d213ae9c3598cbd/watch.go#L201.
func shouldRebuild(path string, op fsnotify.Op) bool {
	base := filepath.Base(path)

	// Mac OS' worst mistake.
	if base == ".DS_Store" {
		return false
	}

	// Vim creates this temporary file to see whether it can write into a target
	// directory. It screws up our watching algorithm, so ignore it.
	if base == "4913" {
		return false
	}

	// A special case, but ignore creates on files that look like Vim backups.
	if strings.HasSuffix(base, "~") {
		return false
	}

	if op&fsnotify.Create != 0 {
		return true
	}

	if op&fsnotify.Remove != 0 {
		return true
	}

	if op&fsnotify.Write != 0 {
		return true
	}

	/*
		Ignore everything else. Rationale:

		* chmod: we don't really care about these as they won't affect build
		output (unless potentially we no longer can read the file, but we'll go
		down that path if it ever becomes a problem).

		* rename: will produce a following create event as well, so just listen
		for that instead.
	*/
	return false
}

type staticHandler struct {
	fs fs.FS
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if p == "" {
		p = "index.html"
	}

	// Special case: /foo will serve content from foo.html, if it exists.
	if _, err := fs.Stat(h.fs, p+".html"); err == nil {
		p += ".html"
	}

	d, err := fs.Stat(h.fs, p)
	if errors.Is(err, fs.ErrNotExist) {
		h.serveNotFound(w, r)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Articles are served from their directories.
	if d.IsDir() {
		p = path.Join(p, "index.html")
		if d, err = fs.Stat(h.fs, p); err != nil {
			h.serveNotFound(w, r)
			return
		}
	}

	b, err := fs.ReadFile(h.fs, p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.ServeContent(w, r, d.Name(), d.ModTime(), bytes.NewReader(b))
}

func (h *staticHandler) serveNotFound(w http.ResponseWriter, r *http.Request) {
	f, err := h.fs.Open("404.html")
	if errors.Is(err, fs.ErrNotExist) {
		http.NotFound(w, r)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	w.WriteHeader(http.StatusNotFound)
	io.Copy(w, f)
}
