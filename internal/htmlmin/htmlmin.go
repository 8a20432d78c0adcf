// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package htmlmin minifies rendered HTML entries.

Options follow the names of html-minifier options. Most of them map directly
onto [html.Minifier] settings; the ones that restructure the document (removing
empty attributes and elements, sorting attributes and class names) are applied
to the parsed document before it's minified.

A few options have no switch in the underlying minifier and are always on:
collapseBooleanAttributes, collapseInlineTagWhitespace, decodeEntities,
removeTagWhitespace and useShortDoctype. preventAttributesEscaping and
trimCustomFragments don't change anything because attribute values are never
escaped beyond what HTML requires and no custom fragments are recognized.
*/
package htmlmin

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	mjson "github.com/tdewolff/minify/v2/json"

	"go.astrophena.name/articles/internal/plugin"
)

// PluginName is the name of the plugin returned by Plugin.
const PluginName = "html-minify"

// Options control which transformations are applied.
type Options struct {
	CollapseBooleanAttributes     bool `yaml:"collapseBooleanAttributes"`
	CollapseInlineTagWhitespace   bool `yaml:"collapseInlineTagWhitespace"`
	CollapseWhitespace            bool `yaml:"collapseWhitespace"`
	DecodeEntities                bool `yaml:"decodeEntities"`
	IncludeAutoGeneratedTags      bool `yaml:"includeAutoGeneratedTags"`
	MinifyCSS                     bool `yaml:"minifyCSS"`
	MinifyJS                      bool `yaml:"minifyJS"`
	MinifyURLs                    bool `yaml:"minifyURLs"`
	PreventAttributesEscaping     bool `yaml:"preventAttributesEscaping"`
	RemoveAttributeQuotes         bool `yaml:"removeAttributeQuotes"`
	RemoveComments                bool `yaml:"removeComments"`
	RemoveEmptyAttributes         bool `yaml:"removeEmptyAttributes"`
	RemoveEmptyElements           bool `yaml:"removeEmptyElements"`
	RemoveOptionalTags            bool `yaml:"removeOptionalTags"`
	RemoveRedundantAttributes     bool `yaml:"removeRedundantAttributes"`
	RemoveScriptTypeAttributes    bool `yaml:"removeScriptTypeAttributes"`
	RemoveStyleLinkTypeAttributes bool `yaml:"removeStyleLinkTypeAttributes"`
	RemoveTagWhitespace           bool `yaml:"removeTagWhitespace"`
	SortAttributes                bool `yaml:"sortAttributes"`
	SortClassName                 bool `yaml:"sortClassName"`
	TrimCustomFragments           bool `yaml:"trimCustomFragments"`
	UseShortDoctype               bool `yaml:"useShortDoctype"`

	// SiteURL is the URL pages are served from. With MinifyURLs, absolute
	// URLs pointing to it are made relative.
	SiteURL string `yaml:"siteURL"`
}

// DefaultOptions returns options used for production builds.
func DefaultOptions() Options {
	return Options{
		CollapseBooleanAttributes:     true,
		CollapseInlineTagWhitespace:   true,
		CollapseWhitespace:            true,
		DecodeEntities:                true,
		IncludeAutoGeneratedTags:      false,
		MinifyCSS:                     true,
		MinifyJS:                      true,
		MinifyURLs:                    true,
		PreventAttributesEscaping:     true,
		RemoveAttributeQuotes:         true,
		RemoveComments:                true,
		RemoveEmptyAttributes:         true,
		RemoveEmptyElements:           true,
		RemoveOptionalTags:            true,
		RemoveRedundantAttributes:     true,
		RemoveScriptTypeAttributes:    true,
		RemoveStyleLinkTypeAttributes: true,
		RemoveTagWhitespace:           true,
		SortAttributes:                true,
		SortClassName:                 true,
		TrimCustomFragments:           true,
		UseShortDoctype:               true,
	}
}

func (o Options) restructures() bool {
	return o.RemoveEmptyAttributes || o.RemoveEmptyElements || o.SortAttributes || o.SortClassName
}

// MinificationError is returned when the document can't be minified.
type MinificationError struct {
	Err error
}

func (e *MinificationError) Error() string { return "minifying HTML: " + e.Err.Error() }

func (e *MinificationError) Unwrap() error { return e.Err }

// Minifier minifies HTML documents. It's safe for concurrent use.
type Minifier struct {
	opts Options
	m    *minify.M
}

var jsMediaType = regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$|^module$")

var jsonMediaType = regexp.MustCompile(`^application/([a-z]+\+)?json$|^importmap$`)

// New returns a Minifier configured with opts.
func New(opts Options) (*Minifier, error) {
	m := minify.New()
	m.Add("text/html", &html.Minifier{
		KeepComments:        !opts.RemoveComments,
		KeepDefaultAttrVals: !(opts.RemoveRedundantAttributes || opts.RemoveScriptTypeAttributes || opts.RemoveStyleLinkTypeAttributes),
		KeepDocumentTags:    !opts.RemoveOptionalTags || opts.IncludeAutoGeneratedTags,
		KeepEndTags:         !opts.RemoveOptionalTags,
		KeepQuotes:          !opts.RemoveAttributeQuotes,
		KeepWhitespace:      !opts.CollapseWhitespace,
	})
	if opts.MinifyCSS {
		m.AddFunc("text/css", css.Minify)
	}
	if opts.MinifyJS {
		m.AddFuncRegexp(jsMediaType, js.Minify)
		m.AddFuncRegexp(jsonMediaType, mjson.Minify)
	}
	if opts.MinifyURLs && opts.SiteURL != "" {
		u, err := url.Parse(opts.SiteURL)
		if err != nil {
			return nil, fmt.Errorf("invalid site URL: %w", err)
		}
		m.URL = u
	}
	return &Minifier{opts: opts, m: m}, nil
}

// Minify returns the minified form of src. src can be either a complete
// document or a fragment.
func (m *Minifier) Minify(src string) (string, error) {
	src = strings.TrimPrefix(src, "\ufeff")
	if m.opts.restructures() {
		var err error
		if src, err = m.restructure(src); err != nil {
			return "", &MinificationError{Err: err}
		}
	}
	out, err := m.m.String("text/html", src)
	if err != nil {
		return "", &MinificationError{Err: err}
	}
	return out, nil
}

// Plugin returns a plugin that minifies entries in production builds after
// every other plugin ran.
func Plugin(m *Minifier) plugin.Plugin {
	return plugin.Plugin{
		Name:    PluginName,
		Enforce: plugin.Post,
		Apply:   plugin.Build,
		TransformIndexHTML: func(_ context.Context, doc string) (string, error) {
			return m.Minify(doc)
		},
	}
}
