// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package entry discovers HTML entry points of the site.
//
// The site has one fixed entry, index.html at the repository root, and one
// entry per article. Every immediate subdirectory of the articles directory is
// an article and must contain an index.html file:
//
//	index.html
//	src/articles/hello-world/index.html
//	src/articles/second-post/index.html
package entry

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	// Main is the name of the root entry.
	Main = "main"
	// File is the name of the HTML file every article directory contains.
	File = "index.html"
)

// Map maps an entry name to the absolute path of its HTML file.
type Map map[string]string

// Names returns entry names in sorted order.
func (m Map) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Articles returns names of all entries except Main in sorted order.
func (m Map) Articles() []string {
	return slices.DeleteFunc(m.Names(), func(name string) bool { return name == Main })
}

// FilesystemError is returned when the articles directory can't be read.
type FilesystemError struct {
	Dir string
	Err error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("reading articles from %s: %v", e.Dir, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// Discover returns an entry map consisting of mainEntry under the Main name and
// dir/<name>/index.html for every immediate subdirectory of dir.
//
// Existence of article index.html files is not checked here; a missing one
// fails the build when it's read.
func Discover(mainEntry, dir string) (Map, error) {
	absMain, err := filepath.Abs(mainEntry)
	if err != nil {
		return nil, err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, &FilesystemError{Dir: dir, Err: err}
	}

	dirents, err := os.ReadDir(absDir)
	if err != nil {
		return nil, &FilesystemError{Dir: dir, Err: err}
	}

	m := Map{Main: absMain}
	for _, d := range dirents {
		if !isDir(absDir, d) {
			continue
		}
		name := d.Name()
		if name == Main {
			return nil, fmt.Errorf("%s: article name %q collides with the root entry", filepath.Join(dir, name), Main)
		}
		m[name] = filepath.Join(absDir, name, File)
	}
	return m, nil
}

func isDir(dir string, d os.DirEntry) bool {
	if d.IsDir() {
		return true
	}
	if d.Type()&os.ModeSymlink == 0 || strings.HasPrefix(d.Name(), ".") {
		return false
	}
	// Follow symlinks to directories.
	fi, err := os.Stat(filepath.Join(dir, d.Name()))
	return err == nil && fi.IsDir()
}
