// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package site

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.astrophena.name/articles/internal/config"
	"go.astrophena.name/articles/internal/entry"

	"github.com/PuerkitoBio/goquery"
)

var errNoEntries = errors.New("no entries to build")

// page is a parsed HTML entry.
type page struct {
	name    string // entry name
	path    string // absolute path to the entry source
	rel     string // slash-separated path relative to the project root
	doc     *goquery.Document
	imports []string // absolute paths of bundled scripts and stylesheets
}

func parsePages(c *config.Config) ([]*page, error) {
	input := c.Build.RollupOptions.Input
	if len(input) == 0 {
		return nil, errNoEntries
	}

	pages := make([]*page, 0, len(input))
	for _, name := range input.Names() {
		p, err := parsePage(c, name, input[name])
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func parsePage(c *config.Config, name, path string) (*page, error) {
	rel, err := filepath.Rel(c.Root, path)
	if err != nil {
		return nil, err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%s: entry %q is outside of the project root", path, name)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// The parser doesn't skip a byte order mark and would put the page into
	// quirks mode.
	b = bytes.TrimPrefix(b, []byte("\ufeff"))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	p := &page{
		name: name,
		path: path,
		rel:  filepath.ToSlash(rel),
		doc:  doc,
	}
	p.collect(c, `script[type="module"][src]`, "src")
	p.collect(c, `link[rel~="stylesheet"][href]`, "href")
	return p, nil
}

// collect removes elements matching selector that reference local files by
// attr and remembers the files for bundling.
func (p *page) collect(c *config.Config, selector, attr string) {
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		ref, ok := localRef(s.AttrOr(attr, ""))
		if !ok {
			return
		}
		if strings.HasPrefix(ref, "/") {
			ref = filepath.Join(c.Root, filepath.FromSlash(ref))
		} else {
			ref = filepath.Join(filepath.Dir(p.path), filepath.FromSlash(ref))
		}
		p.imports = append(p.imports, ref)
		s.Remove()
	})
}

// localRef returns ref without query and fragment if it points to a local
// file.
func localRef(ref string) (string, bool) {
	if ref == "" || strings.HasPrefix(ref, "//") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return "", false
	}
	return u.Path, true
}

// modulePreloadPolyfill fetches modulepreload links in browsers that don't
// support them.
const modulePreloadPolyfill = `(()=>{const r=document.createElement("link").relList;if(r&&r.supports&&r.supports("modulepreload"))return;for(const l of document.querySelectorAll('link[rel="modulepreload"]'))fetch(l.href,{credentials:l.crossOrigin==="use-credentials"?"include":l.crossOrigin==="anonymous"?"omit":"same-origin"})})();`

// inject adds tags loading the bundle of the page.
func (p *page) inject(c *config.Config, out *entryOutput) {
	if out == nil {
		return
	}

	var b strings.Builder
	if c.Build.ModulePreload.Polyfill {
		b.WriteString("<script>" + modulePreloadPolyfill + "</script>")
	}
	fmt.Fprintf(&b, `<script type="module" crossorigin src="%s"></script>`, html.EscapeString(out.script))
	for _, chunk := range out.preloads {
		fmt.Fprintf(&b, `<link rel="modulepreload" crossorigin href="%s">`, html.EscapeString(chunk))
	}
	if out.css != "" {
		fmt.Fprintf(&b, `<link rel="stylesheet" crossorigin href="%s">`, html.EscapeString(out.css))
	}
	p.doc.Find("head").First().AppendHtml(b.String())
}

// isArticle reports whether the page is an article rather than the root entry.
func (p *page) isArticle() bool { return p.name != entry.Main }
