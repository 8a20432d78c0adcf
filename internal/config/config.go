// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package config defines the build configuration of the site.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"

	"go.astrophena.name/articles/internal/entry"
	"go.astrophena.name/articles/internal/htmlmin"
	"go.astrophena.name/articles/internal/plugin"

	"gopkg.in/yaml.v3"
)

// Config represents a build configuration.
type Config struct {
	// Root is the project root. Relative paths are resolved against it.
	Root string `yaml:"root"`
	// Base is the public path the site is served under.
	Base string `yaml:"base"`
	// PublicDir is copied to the output directory verbatim.
	PublicDir string `yaml:"publicDir"`
	// ArticlesDir contains one subdirectory per article.
	ArticlesDir string `yaml:"articlesDir"`

	Build   Build   `yaml:"build"`
	Resolve Resolve `yaml:"resolve"`

	// HTMLMinify configures the html-minify plugin.
	HTMLMinify htmlmin.Options `yaml:"htmlMinify"`
	// Feed enables an Atom feed of articles when set.
	Feed *Feed `yaml:"feed"`

	// Plugins transform HTML entries before they are written.
	Plugins []plugin.Plugin `yaml:"-"`
}

// Build contains options of production builds.
type Build struct {
	// OutDir is where the built site is written.
	OutDir string `yaml:"outDir"`
	// EmptyOutDir removes OutDir before building.
	EmptyOutDir bool `yaml:"emptyOutDir"`
	// Target is the language level of emitted JavaScript, e.g. esnext or es2020.
	Target string `yaml:"target"`
	// Minify selects the script minifier: "esbuild" or empty to disable.
	Minify string `yaml:"minify"`
	// AssetsInlineLimit is the size in bytes under which imported assets are
	// inlined as data URLs. Zero disables inlining.
	AssetsInlineLimit int64 `yaml:"assetsInlineLimit"`
	// Sourcemap emits linked source maps.
	Sourcemap bool `yaml:"sourcemap"`
	// ReportCompressedSize logs gzipped sizes of written files.
	ReportCompressedSize bool `yaml:"reportCompressedSize"`

	RollupOptions RollupOptions `yaml:"rollupOptions"`
	ModulePreload ModulePreload `yaml:"modulePreload"`
}

// RollupOptions describe entries and output naming.
type RollupOptions struct {
	// Input is discovered from the file system and can't be configured.
	Input  entry.Map `yaml:"-"`
	Output Output    `yaml:"output"`
}

// Output contains output file name patterns. Patterns support [name] and
// [hash] placeholders. Chunk and asset patterns are given without extension.
type Output struct {
	EntryFileNames string `yaml:"entryFileNames"`
	ChunkFileNames string `yaml:"chunkFileNames"`
	AssetFileNames string `yaml:"assetFileNames"`
}

// ModulePreload configures modulepreload links.
type ModulePreload struct {
	// Polyfill injects a modulepreload polyfill into each entry.
	Polyfill bool `yaml:"polyfill"`
}

// Resolve configures module resolution.
type Resolve struct {
	// Alias maps import path prefixes to files relative to Root.
	Alias map[string]string `yaml:"alias"`
}

// Feed configures the Atom feed.
type Feed struct {
	Title   string `yaml:"title"`
	Author  string `yaml:"author"`
	BaseURL string `yaml:"baseURL"`
}

// Default returns the default configuration for the project in root with
// entries already discovered.
func Default(root string) (*Config, error) {
	c := defaults(root)
	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

func defaults(root string) *Config {
	return &Config{
		Root:        root,
		Base:        "/",
		PublicDir:   "public",
		ArticlesDir: filepath.Join("src", "articles"),
		Build: Build{
			OutDir:               "dist",
			EmptyOutDir:          true,
			Target:               "esnext",
			Minify:               "esbuild",
			AssetsInlineLimit:    0,
			ReportCompressedSize: true,
			RollupOptions: RollupOptions{
				Output: Output{
					EntryFileNames: "[name].mjs",
					ChunkFileNames: "assets/[name]-[hash]",
					AssetFileNames: "assets/[name]-[hash]",
				},
			},
			ModulePreload: ModulePreload{Polyfill: false},
		},
		Resolve: Resolve{
			Alias: map[string]string{
				"@constant": filepath.Join("src", "constant.ts"),
				"@util":     filepath.Join("src", "util.ts"),
			},
		},
		HTMLMinify: htmlmin.DefaultOptions(),
	}
}

// Load reads configuration for the project in root from the YAML file at
// path, on top of the defaults. A missing file is not an error.
func Load(root, path string) (*Config, error) {
	c := defaults(root)

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if c.Root == "" {
			c.Root = root
		}
	}

	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) init() error {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return err
	}
	c.Root = root
	if c.Base == "" {
		c.Base = "/"
	}

	m, err := htmlmin.New(c.HTMLMinify)
	if err != nil {
		return err
	}
	c.Plugins = append(c.Plugins, htmlmin.Plugin(m))

	return c.DiscoverEntries()
}

// DiscoverEntries updates Build.RollupOptions.Input from the file system.
func (c *Config) DiscoverEntries() error {
	input, err := entry.Discover(c.Path(entry.File), c.Path(c.ArticlesDir))
	if err != nil {
		return err
	}
	c.Build.RollupOptions.Input = input
	return nil
}

// Path resolves p against Root unless it's absolute.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Clone returns a copy of c with entries that can be changed independently.
func (c *Config) Clone() *Config {
	cc := *c
	cc.Plugins = append([]plugin.Plugin(nil), c.Plugins...)
	cc.Build.RollupOptions.Input = maps.Clone(c.Build.RollupOptions.Input)
	return &cc
}
