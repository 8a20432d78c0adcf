// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.astrophena.name/articles/internal/entry"
	"go.astrophena.name/articles/internal/htmlmin"
	"go.astrophena.name/articles/internal/plugin"

	"go.astrophena.name/base/testutil"
)

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDefault(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "src/articles/first", "src/articles/second")

	c, err := Default(root)
	if err != nil {
		t.Fatal(err)
	}

	testutil.AssertEqual(t, c.Build.Target, "esnext")
	testutil.AssertEqual(t, c.Build.Minify, "esbuild")
	testutil.AssertEqual(t, c.Build.AssetsInlineLimit, int64(0))
	testutil.AssertEqual(t, c.Build.RollupOptions.Output.EntryFileNames, "[name].mjs")
	testutil.AssertEqual(t, c.Build.ModulePreload.Polyfill, false)
	testutil.AssertEqual(t, c.Resolve.Alias, map[string]string{
		"@constant": filepath.Join("src", "constant.ts"),
		"@util":     filepath.Join("src", "util.ts"),
	})
	testutil.AssertEqual(t, c.Build.RollupOptions.Input, entry.Map{
		entry.Main: filepath.Join(root, "index.html"),
		"first":    filepath.Join(root, "src", "articles", "first", "index.html"),
		"second":   filepath.Join(root, "src", "articles", "second", "index.html"),
	})

	if len(c.Plugins) != 1 {
		t.Fatalf("want one plugin, got %d", len(c.Plugins))
	}
	p := c.Plugins[0]
	testutil.AssertEqual(t, p.Name, htmlmin.PluginName)
	testutil.AssertEqual(t, p.Enforce, plugin.Post)
	testutil.AssertEqual(t, p.Apply, plugin.Build)
}

func TestDefaultMissingArticles(t *testing.T) {
	_, err := Default(t.TempDir())
	var fsErr *entry.FilesystemError
	if !errors.As(err, &fsErr) {
		t.Fatalf("want *entry.FilesystemError, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "pages/hello")

	const file = `
articlesDir: pages
build:
  outDir: out
  target: es2020
  assetsInlineLimit: 4096
  rollupOptions:
    output:
      entryFileNames: "[name]-[hash].js"
  modulePreload:
    polyfill: true
resolve:
  alias:
    "@lib": src/lib.ts
htmlMinify:
  removeComments: false
feed:
  title: Articles
  baseURL: https://example.com
`
	path := filepath.Join(root, "site.yaml")
	if err := os.WriteFile(path, []byte(file), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(root, path)
	if err != nil {
		t.Fatal(err)
	}

	testutil.AssertEqual(t, c.Build.OutDir, "out")
	testutil.AssertEqual(t, c.Build.Target, "es2020")
	testutil.AssertEqual(t, c.Build.Minify, "esbuild")
	testutil.AssertEqual(t, c.Build.AssetsInlineLimit, int64(4096))
	testutil.AssertEqual(t, c.Build.RollupOptions.Output.EntryFileNames, "[name]-[hash].js")
	testutil.AssertEqual(t, c.Build.RollupOptions.Output.ChunkFileNames, "assets/[name]-[hash]")
	testutil.AssertEqual(t, c.Build.ModulePreload.Polyfill, true)
	testutil.AssertEqual(t, c.Resolve.Alias["@lib"], "src/lib.ts")
	testutil.AssertEqual(t, c.HTMLMinify.RemoveComments, false)
	testutil.AssertEqual(t, c.HTMLMinify.CollapseWhitespace, true)
	testutil.AssertEqual(t, c.Feed.Title, "Articles")
	testutil.AssertEqual(t, c.Build.RollupOptions.Input.Names(), []string{entry.Main, "hello"})
}

func TestLoadMissingFile(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "src/articles")

	c, err := Load(root, filepath.Join(root, "site.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, c.Build.OutDir, "dist")
	testutil.AssertEqual(t, c.Build.RollupOptions.Input.Names(), []string{entry.Main})
}

func TestLoadInvalidFile(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "src/articles")
	path := filepath.Join(root, "site.yaml")
	if err := os.WriteFile(path, []byte("build: [not, a, map]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(root, path); err == nil {
		t.Fatal("want error for invalid config")
	}
}

func TestClone(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "src/articles/first")

	c, err := Default(root)
	if err != nil {
		t.Fatal(err)
	}
	cc := c.Clone()
	delete(cc.Build.RollupOptions.Input, "first")
	if _, ok := c.Build.RollupOptions.Input["first"]; !ok {
		t.Fatal("changing a clone changed the original entries")
	}
}
