// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package entry

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.astrophena.name/base/testutil"
)

func TestDiscover(t *testing.T) {
	cases := map[string]struct {
		dirs  []string
		files []string
		want  []string
	}{
		"no articles": {
			want: []string{Main},
		},
		"two articles": {
			dirs: []string{"hello-world", "second"},
			want: []string{Main, "hello-world", "second"},
		},
		"files are ignored": {
			dirs:  []string{"hello-world"},
			files: []string{".DS_Store", "README.md"},
			want:  []string{Main, "hello-world"},
		},
		"article without index.html": {
			dirs: []string{"draft"},
			want: []string{Main, "draft"},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			articles := filepath.Join(root, "src", "articles")
			if err := os.MkdirAll(articles, 0o755); err != nil {
				t.Fatal(err)
			}
			for _, d := range tc.dirs {
				if err := os.Mkdir(filepath.Join(articles, d), 0o755); err != nil {
					t.Fatal(err)
				}
			}
			for _, f := range tc.files {
				if err := os.WriteFile(filepath.Join(articles, f), nil, 0o644); err != nil {
					t.Fatal(err)
				}
			}

			m, err := Discover(filepath.Join(root, File), articles)
			if err != nil {
				t.Fatal(err)
			}

			testutil.AssertEqual(t, m.Names(), tc.want)
			testutil.AssertEqual(t, m[Main], filepath.Join(root, File))
			for _, name := range m.Articles() {
				testutil.AssertEqual(t, m[name], filepath.Join(articles, name, File))
			}
			for name, path := range m {
				if !strings.HasSuffix(path, File) {
					t.Fatalf("entry %q: path %q doesn't end with %s", name, path, File)
				}
			}
		})
	}
}

func TestDiscoverMissingDir(t *testing.T) {
	root := t.TempDir()
	m, err := Discover(filepath.Join(root, File), filepath.Join(root, "does-not-exist"))
	if m != nil {
		t.Fatalf("want no entries, got %v", m)
	}
	var fsErr *FilesystemError
	if !errors.As(err, &fsErr) {
		t.Fatalf("want *FilesystemError, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("want error wrapping fs.ErrNotExist, got %v", err)
	}
}

func TestDiscoverMainCollision(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "articles", Main), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Discover(filepath.Join(root, File), filepath.Join(root, "articles")); err == nil {
		t.Fatal("want error for article named main")
	}
}
