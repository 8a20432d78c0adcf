// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package htmlmin

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func (m *Minifier) restructure(src string) (string, error) {
	document, first := classify(src)
	if document {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
		if err != nil {
			return "", err
		}
		m.apply(doc)
		return doc.Html()
	}

	// Fragments are parsed in the context their first element expects, so
	// table rows and cells survive.
	a := cmp.Or(fragmentContexts[first], atom.Body)
	root := &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
	nodes, err := html.ParseFragment(strings.NewReader(src), root)
	if err != nil {
		return "", err
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	doc := goquery.NewDocumentFromNode(root)
	m.apply(doc)
	return doc.Html()
}

func (m *Minifier) apply(doc *goquery.Document) {
	if m.opts.SortClassName {
		doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
			s.SetAttr("class", sortClassName(s.AttrOr("class", "")))
		})
	}
	for _, n := range doc.Nodes {
		m.rewrite(n)
	}
}

var fragmentContexts = map[string]atom.Atom{
	"caption":  atom.Table,
	"colgroup": atom.Table,
	"tbody":    atom.Table,
	"thead":    atom.Table,
	"tfoot":    atom.Table,
	"tr":       atom.Tbody,
	"td":       atom.Tr,
	"th":       atom.Tr,
	"col":      atom.Colgroup,
}

// classify reports whether src is a complete document, that is has a
// doctype or an explicit html, head or body tag before any other content.
// For fragments it also returns the name of the first element.
func classify(src string) (document bool, first string) {
	z := html.NewTokenizer(strings.NewReader(src))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false, ""
		case html.DoctypeToken:
			return true, ""
		case html.CommentToken:
		case html.TextToken:
			if strings.TrimSpace(string(z.Text())) != "" {
				return false, ""
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch tag := string(name); tag {
			case "html", "head", "body":
				return true, ""
			default:
				return false, tag
			}
		default:
			return false, ""
		}
	}
}

// Attributes that are dropped when their value is empty.
var emptyAttrRe = regexp.MustCompile(`^(class|id|style|title|lang|dir|on[a-z]+)$`)

// Elements that are never removed even if empty.
var keepEmpty = map[string]bool{
	"html": true, "head": true, "body": true,
	"textarea": true, "td": true, "th": true,
	"script": true, "style": true, "template": true, "slot": true,
	"iframe": true, "object": true, "video": true, "audio": true, "canvas": true,
	// Void elements.
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// rewrite applies structural options to the subtree of n, children first, so
// an element emptied by removal of its children is removed as well.
func (m *Minifier) rewrite(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			m.rewrite(c)
			if m.opts.RemoveEmptyElements && m.isRemovable(c) {
				n.RemoveChild(c)
			}
		}
		c = next
	}

	if n.Type != html.ElementNode {
		return
	}
	if m.opts.RemoveEmptyAttributes {
		n.Attr = slices.DeleteFunc(n.Attr, func(a html.Attribute) bool {
			return a.Namespace == "" && strings.TrimSpace(a.Val) == "" && emptyAttrRe.MatchString(a.Key)
		})
	}
	if m.opts.SortAttributes {
		slices.SortStableFunc(n.Attr, func(a, b html.Attribute) int {
			return cmp.Or(cmp.Compare(a.Namespace, b.Namespace), cmp.Compare(a.Key, b.Key))
		})
	}
}

// isRemovable reports whether n has no content and nothing that identifies
// it. Elements with attributes are kept: they are usually script mount points
// or styling hooks.
func (m *Minifier) isRemovable(n *html.Node) bool {
	if keepEmpty[n.Data] || n.Namespace != "" || len(n.Attr) > 0 {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return false
			}
		case html.CommentNode:
			if !m.opts.RemoveComments {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func sortClassName(class string) string {
	names := strings.Fields(class)
	slices.Sort(names)
	return strings.Join(slices.Compact(names), " ")
}
