// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package plugin defines hooks that transform HTML entries before they are
// written to the output directory.
package plugin

import (
	"context"
	"fmt"
	"slices"
)

// Mode is the kind of a pipeline run.
type Mode string

// Available modes.
const (
	Build = Mode("build") // production build
	Serve = Mode("serve") // development server
)

// Enforce positions a plugin relative to others.
type Enforce string

// Available positions. Plugins without position run between Pre and Post.
const (
	Pre    = Enforce("pre")
	Normal = Enforce("")
	Post   = Enforce("post")
)

// Plugin is a named HTML transformation hook.
type Plugin struct {
	// Name identifies the plugin in errors and logs.
	Name string
	// Enforce places the plugin before or after plugins without position.
	Enforce Enforce
	// Apply restricts the plugin to one mode. Empty means every mode.
	Apply Mode
	// TransformIndexHTML receives a fully rendered HTML document and
	// returns the transformed one.
	TransformIndexHTML func(ctx context.Context, html string) (string, error)
}

// Applies reports whether p runs in mode m.
func (p Plugin) Applies(m Mode) bool {
	return p.Apply == "" || p.Apply == m
}

func (e Enforce) order() int {
	switch e {
	case Pre:
		return 0
	case Post:
		return 2
	default:
		return 1
	}
}

// Sorted returns plugins that apply in mode m, ordered by their Enforce
// position. Plugins with the same position keep their relative order.
func Sorted(plugins []Plugin, m Mode) []Plugin {
	var sorted []Plugin
	for _, p := range plugins {
		if p.Applies(m) {
			sorted = append(sorted, p)
		}
	}
	slices.SortStableFunc(sorted, func(a, b Plugin) int {
		return a.Enforce.order() - b.Enforce.order()
	})
	return sorted
}

// TransformIndexHTML pipes html through every plugin applicable in mode m.
// The first failing plugin stops the chain.
func TransformIndexHTML(ctx context.Context, plugins []Plugin, m Mode, html string) (string, error) {
	for _, p := range Sorted(plugins, m) {
		if p.TransformIndexHTML == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		var err error
		html, err = p.TransformIndexHTML(ctx, html)
		if err != nil {
			return "", fmt.Errorf("plugin %s: %w", p.Name, err)
		}
	}
	return html, nil
}
