// © 2022 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package site builds the articles site.

# Directory Structure

	index.html    The root entry, built as the "main" entry.
	src/articles  One directory per article, each with an index.html entry.
	src           Scripts, styles and assets imported by entries.
	public        Files in this directory are copied verbatim to the
	              built site.
	dist          This is where the built site is placed by default.

# Entries

Each entry is an HTML document. Module scripts (<script type="module" src>)
and stylesheets (<link rel="stylesheet" href>) referencing local files are
bundled together into one script per entry, named after the entry, and the
document is rewritten to load the bundle. Paths starting with a slash are
resolved against the project root, other paths against the directory of the
entry. Remote URLs are left alone.

After rewriting, entries are piped through the configured plugins (see
[config.Config]) and written to the output directory under the same path
they have in the project.
*/
package site

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.astrophena.name/articles/internal/config"
	"go.astrophena.name/articles/internal/plugin"

	"go.astrophena.name/base/logger"
	"golang.org/x/sync/errgroup"
)

var errOutDirIsRoot = errors.New("output directory must not be the project root")

// Build builds a site based on the provided [config.Config] in production
// mode.
func Build(ctx context.Context, c *config.Config) error {
	return build(ctx, c, plugin.Build)
}

func build(ctx context.Context, c *config.Config, mode plugin.Mode) error {
	outDir := c.Path(c.Build.OutDir)
	if outDir == c.Root {
		return errOutDirIsRoot
	}

	pages, err := parsePages(c)
	if err != nil {
		return err
	}

	// Clean up after previous build.
	if c.Build.EmptyOutDir {
		if err := os.RemoveAll(outDir); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	outputs, err := bundle(ctx, c, mode, pages)
	if err != nil {
		return err
	}
	for _, p := range pages {
		p.inject(c, outputs[p.name])
	}

	if err := finalize(ctx, c, mode, pages); err != nil {
		return err
	}
	if err := copyPublic(c); err != nil {
		return err
	}
	if err := buildFeed(c, pages); err != nil {
		return err
	}

	if mode == plugin.Build && c.Build.ReportCompressedSize {
		return report(ctx, outDir)
	}
	return nil
}

// finalize runs plugins on every page and writes the results. Pages are
// independent, so they are processed in parallel.
func finalize(ctx context.Context, c *config.Config, mode plugin.Mode, pages []*page) error {
	outDir := c.Path(c.Build.OutDir)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, p := range pages {
		g.Go(func() error {
			html, err := p.doc.Html()
			if err != nil {
				return fmt.Errorf("%s: %w", p.rel, err)
			}
			html, err = plugin.TransformIndexHTML(gctx, c.Plugins, mode, html)
			if err != nil {
				return fmt.Errorf("%s: %w", p.rel, err)
			}

			dst := filepath.Join(outDir, filepath.FromSlash(p.rel))
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return err
			}
			return os.WriteFile(dst, []byte(html), 0o644)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "built entries", slog.Int("count", len(pages)), slog.String("mode", string(mode)))
	return nil
}

func copyPublic(c *config.Config) error {
	src := c.Path(c.PublicDir)
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	outDir := c.Path(c.Build.OutDir)

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || isIgnorable(path) {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		buf, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		dst := filepath.Join(outDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return os.WriteFile(dst, buf, 0o644)
	})
}

func isIgnorable(path string) bool {
	// Ignore files that look like Vim backups.
	if strings.HasSuffix(path, "~") {
		return true
	}

	// Ignore .gitignore files.
	if strings.Contains(path, ".gitignore") {
		return true
	}

	return false
}
