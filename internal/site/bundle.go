// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package site

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"go.astrophena.name/articles/internal/config"
	"go.astrophena.name/articles/internal/plugin"

	"github.com/evanw/esbuild/pkg/api"
	"go.astrophena.name/base/logger"
)

// entryDir is the directory, relative to the project root, of virtual
// modules that import everything an HTML entry references. It never exists
// on disk. Entry modules are named after entries, so [name] in output file
// name patterns is the entry name.
const entryDir = ".html-entry"

func entryModule(c *config.Config, name string) string {
	return filepath.Join(c.Path(entryDir), name+".js")
}

var targets = map[string]api.Target{
	"esnext": api.ESNext,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
}

// entryOutput contains public URLs of the bundle built for an entry.
type entryOutput struct {
	script   string   // entry chunk
	css      string   // CSS bundle, empty if there are no styles
	preloads []string // chunks statically imported by the entry chunk
}

// metafile is a subset of the esbuild metafile.
type metafile struct {
	Outputs map[string]metaOutput `json:"outputs"`
}

type metaOutput struct {
	EntryPoint string       `json:"entryPoint"`
	CSSBundle  string       `json:"cssBundle"`
	Imports    []metaImport `json:"imports"`
}

type metaImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external"`
}

// bundle builds scripts and stylesheets of all pages in one esbuild pass, so
// code shared between entries ends up in common chunks.
func bundle(ctx context.Context, c *config.Config, mode plugin.Mode, pages []*page) (map[string]*entryOutput, error) {
	modules := make(map[string]*page)
	var entryPoints []api.EntryPoint
	for _, p := range pages {
		if len(p.imports) == 0 {
			continue
		}
		modules[p.name] = p
		entryPoints = append(entryPoints, api.EntryPoint{InputPath: entryModule(c, p.name)})
	}
	if len(entryPoints) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts, err := buildOptions(c, mode)
	if err != nil {
		return nil, err
	}
	opts.EntryPointsAdvanced = entryPoints
	opts.Plugins = []api.Plugin{
		entryPlugin(c, modules),
		aliasPlugin(c),
		assetPlugin(c),
	}

	result := api.Build(opts)
	for _, msg := range result.Warnings {
		logger.Info(ctx, "esbuild warning", slog.String("warning", formatMessage(msg).Error()))
	}
	if len(result.Errors) > 0 {
		errs := make([]error, 0, len(result.Errors))
		for _, msg := range result.Errors {
			errs = append(errs, formatMessage(msg))
		}
		return nil, fmt.Errorf("bundling failed: %w", errors.Join(errs...))
	}

	var meta metafile
	if err := json.Unmarshal([]byte(result.Metafile), &meta); err != nil {
		return nil, err
	}
	return meta.entryOutputs(c, modules)
}

func buildOptions(c *config.Config, mode plugin.Mode) (api.BuildOptions, error) {
	target, ok := targets[strings.ToLower(c.Build.Target)]
	if !ok {
		return api.BuildOptions{}, fmt.Errorf("unsupported build target %q", c.Build.Target)
	}

	var minify bool
	switch c.Build.Minify {
	case "esbuild":
		minify = mode == plugin.Build
	case "", "false":
	default:
		return api.BuildOptions{}, fmt.Errorf("unsupported minifier %q", c.Build.Minify)
	}

	out := c.Build.RollupOptions.Output
	entryNames, ext := splitPattern(out.EntryFileNames)

	opts := api.BuildOptions{
		AbsWorkingDir:     c.Root,
		Outdir:            c.Path(c.Build.OutDir),
		Outbase:           c.Path(entryDir),
		Bundle:            true,
		Splitting:         true,
		Write:             true,
		Metafile:          true,
		Format:            api.FormatESModule,
		Platform:          api.PlatformBrowser,
		Target:            target,
		MinifyWhitespace:  minify,
		MinifyIdentifiers: minify,
		MinifySyntax:      minify,
		TreeShaking:       api.TreeShakingTrue,
		EntryNames:        entryNames,
		ChunkNames:        cond(out.ChunkFileNames != "", out.ChunkFileNames, "assets/[name]-[hash]"),
		AssetNames:        cond(out.AssetFileNames != "", out.AssetFileNames, "assets/[name]-[hash]"),
		PublicPath:        c.Base,
		Sourcemap:         cond(c.Build.Sourcemap || mode == plugin.Serve, api.SourceMapLinked, api.SourceMapNone),
		LogLevel:          api.LogLevelSilent,
	}
	if ext != ".js" {
		opts.OutExtension = map[string]string{".js": ext}
	}
	return opts, nil
}

// splitPattern splits an output file name pattern like [name].mjs into an
// esbuild name template and an extension.
func splitPattern(pattern string) (names, ext string) {
	if pattern == "" {
		return "[name]", ".js"
	}
	ext = path.Ext(pattern)
	if ext == "" || strings.Contains(ext, "]") {
		return pattern, ".js"
	}
	return strings.TrimSuffix(pattern, ext), ext
}

func (m *metafile) entryOutputs(c *config.Config, modules map[string]*page) (map[string]*entryOutput, error) {
	outRel, err := filepath.Rel(c.Root, c.Path(c.Build.OutDir))
	if err != nil {
		return nil, err
	}
	outRel = filepath.ToSlash(outRel)
	publicURL := func(p string) string {
		return strings.TrimSuffix(c.Base, "/") + "/" + strings.TrimPrefix(p, outRel+"/")
	}

	entries := make(map[string]string) // metafile entry point → entry name
	for name := range modules {
		rel, err := filepath.Rel(c.Root, entryModule(c, name))
		if err != nil {
			return nil, err
		}
		entries[filepath.ToSlash(rel)] = name
	}

	outputs := make(map[string]*entryOutput)
	for _, key := range slices.Sorted(maps.Keys(m.Outputs)) {
		info := m.Outputs[key]
		// CSS bundles are reached through cssBundle of the script.
		if path.Ext(key) == ".css" || path.Ext(key) == ".map" {
			continue
		}
		name, ok := entries[info.EntryPoint]
		if !ok {
			continue
		}

		out := &entryOutput{script: publicURL(key)}
		if info.CSSBundle != "" {
			out.css = publicURL(info.CSSBundle)
		}
		visited := map[string]bool{key: true}
		for _, dep := range m.staticImports(info, visited) {
			out.preloads = append(out.preloads, publicURL(dep))
		}
		outputs[name] = out
	}

	for name := range modules {
		if _, ok := outputs[name]; !ok {
			return nil, fmt.Errorf("no bundle was emitted for entry %q", name)
		}
	}
	return outputs, nil
}

// staticImports returns chunks imported by out, directly or through other
// chunks. Dynamic imports are not preloaded.
func (m *metafile) staticImports(out metaOutput, visited map[string]bool) []string {
	var deps []string
	for _, imp := range out.Imports {
		if imp.External || imp.Kind != "import-statement" || visited[imp.Path] {
			continue
		}
		visited[imp.Path] = true
		deps = append(deps, imp.Path)
		if chunk, ok := m.Outputs[imp.Path]; ok {
			deps = append(deps, m.staticImports(chunk, visited)...)
		}
	}
	return deps
}

// entryPlugin serves virtual entry modules that import everything the HTML
// entry references.
func entryPlugin(c *config.Config, modules map[string]*page) api.Plugin {
	filter := "^" + regexp.QuoteMeta(c.Path(entryDir)+string(filepath.Separator))
	return api.Plugin{
		Name: "html-entry",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: filter},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{Path: args.Path, Namespace: "file"}, nil
				})
			build.OnLoad(api.OnLoadOptions{Filter: filter, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					p, ok := modules[strings.TrimSuffix(filepath.Base(args.Path), ".js")]
					if !ok {
						return api.OnLoadResult{}, fmt.Errorf("unknown entry %q", args.Path)
					}
					var b strings.Builder
					for _, imp := range p.imports {
						fmt.Fprintf(&b, "import %q;\n", filepath.ToSlash(imp))
					}
					contents := b.String()
					return api.OnLoadResult{
						Contents:   &contents,
						ResolveDir: filepath.Dir(p.path),
						Loader:     api.LoaderJS,
					}, nil
				})
		},
	}
}

// aliasPlugin resolves imports equal to an alias key, or starting with the
// key followed by a slash, to the aliased file.
func aliasPlugin(c *config.Config) api.Plugin {
	// Longer keys first, so that @a/b wins over @a.
	keys := slices.Collect(maps.Keys(c.Resolve.Alias))
	slices.SortFunc(keys, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}

	return api.Plugin{
		Name: "alias",
		Setup: func(build api.PluginBuild) {
			if len(keys) == 0 {
				return
			}
			filter := "^(" + strings.Join(quoted, "|") + ")(/.*)?$"
			build.OnResolve(api.OnResolveOptions{Filter: filter},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					for _, k := range keys {
						rest, ok := strings.CutPrefix(args.Path, k)
						if !ok || (rest != "" && rest[0] != '/') {
							continue
						}
						target := c.Path(filepath.FromSlash(c.Resolve.Alias[k])) + filepath.FromSlash(rest)
						res := build.Resolve(target, api.ResolveOptions{
							Kind:       args.Kind,
							ResolveDir: args.ResolveDir,
							Importer:   args.Importer,
						})
						if len(res.Errors) > 0 {
							return api.OnResolveResult{}, fmt.Errorf("alias %s: %w", k, formatMessage(res.Errors[0]))
						}
						return api.OnResolveResult{
							Path:      res.Path,
							Namespace: res.Namespace,
							External:  res.External,
							Suffix:    res.Suffix,
						}, nil
					}
					return api.OnResolveResult{}, nil
				})
		},
	}
}

var assetFilter = `\.(png|jpe?g|gif|svg|webp|avif|ico|bmp|woff2?|ttf|otf|eot|mp4|webm|ogg|mp3|wav|flac|aac)$`

// assetPlugin loads imported binary assets, inlining ones smaller than the
// configured limit as data URLs and emitting the rest as files.
func assetPlugin(c *config.Config) api.Plugin {
	limit := c.Build.AssetsInlineLimit
	return api.Plugin{
		Name: "assets",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: assetFilter, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					b, err := os.ReadFile(args.Path)
					if err != nil {
						return api.OnLoadResult{}, err
					}
					contents := string(b)
					return api.OnLoadResult{
						Contents: &contents,
						Loader:   cond(int64(len(b)) < limit, api.LoaderDataURL, api.LoaderFile),
					}, nil
				})
		},
	}
}

func formatMessage(msg api.Message) error {
	if msg.Location == nil {
		return errors.New(msg.Text)
	}
	return fmt.Errorf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
