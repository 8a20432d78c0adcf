// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package site

import (
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.astrophena.name/articles/internal/config"

	"github.com/gorilla/feeds"
)

var timeNow = time.Now // used in tests

const dateLayout = "2006-01-02"

// buildFeed writes an Atom feed of articles when it's enabled. Article
// metadata is taken from the document: <title>, <meta name="description">
// and <meta name="date"> in the 2006-01-02 format.
func buildFeed(c *config.Config, pages []*page) error {
	if c.Feed == nil {
		return nil
	}

	baseURL := strings.TrimSuffix(c.Feed.BaseURL, "/")
	feed := &feeds.Feed{
		Title:   c.Feed.Title,
		Link:    &feeds.Link{Href: baseURL + "/"},
		Created: timeNow(),
	}
	if c.Feed.Author != "" {
		feed.Author = &feeds.Author{Name: c.Feed.Author}
	}

	for _, p := range pages {
		if !p.isArticle() {
			continue
		}
		link := baseURL + "/" + path.Dir(p.rel) + "/"
		item := &feeds.Item{
			Id:          link,
			Title:       strings.TrimSpace(p.doc.Find("title").First().Text()),
			Link:        &feeds.Link{Href: link},
			Author:      feed.Author,
			Description: p.doc.Find(`meta[name="description"]`).AttrOr("content", ""),
		}
		if d := p.doc.Find(`meta[name="date"]`).AttrOr("content", ""); d != "" {
			t, err := time.Parse(dateLayout, d)
			if err != nil {
				return err
			}
			item.Created = t
		}
		feed.Items = append(feed.Items, item)
	}

	// Newest first. Articles without date are pushed to the end.
	slices.SortStableFunc(feed.Items, func(a, b *feeds.Item) int {
		return b.Created.Compare(a.Created)
	})

	atom, err := feed.ToAtom()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.Path(c.Build.OutDir), "feed.xml"), []byte(atom), 0o644)
}
