// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package devtools contains common functionality for development tools.
package devtools

import (
	"os"
	"path/filepath"

	"go.astrophena.name/base/unwrap"
)

// ConfigFile is the default name of the build configuration file.
const ConfigFile = "site.yaml"

// EnsureRoot checks that the current working directory is the project root,
// containing the root index.html entry, and panics if it isn't.
func EnsureRoot() {
	wd := unwrap.Value(os.Getwd())
	if _, err := os.Stat(filepath.Join(wd, "index.html")); os.IsNotExist(err) {
		panic("Are you at project root?")
	} else if err != nil {
		panic(err)
	}
}
