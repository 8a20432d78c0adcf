// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Build builds the site for production.

# Usage

	$ go tool build [flags] [dir]

Discovers entries (index.html and every directory in src/articles), bundles
their scripts and styles, minifies the HTML and writes the result into dir.
If dir is not provided, it defaults to dist in the current working directory.

Build configuration is read from site.yaml, if it exists. See the config
package for available settings.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/base/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
