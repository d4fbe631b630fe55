// Package extract turns a fetched HTML document into the plain-text,
// title, and link set the rest of the pipeline operates on. It replaces
// the DOM-validation and per-framework content-region scoring the
// original sanitizer/extractor pair performed with a single pass that
// matches the fetcher's contract exactly: strip non-content elements,
// collect visible text, collect links.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// stripTags are removed wholesale before text is collected: they never
// contribute visible content.
var stripTags = []string{"script", "style", "meta", "link", "noscript"}

// Content is the result of stripping and reading one HTML document.
type Content struct {
	Title string
	Text  string
	Links []string
}

// FromHTML parses rawHTML, strips non-content elements and comments,
// extracts visible text (whitespace-collapsed) and the page title, and
// resolves every <a href>/<link href> against base, discarding anything
// that isn't http(s) and stripping fragments. Links are returned in
// first-seen order with duplicates removed.
func FromHTML(rawHTML []byte, base *url.URL) (Content, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(rawHTML)))
	if err != nil {
		return Content{}, err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	links := extractLinks(doc, base)

	for _, tag := range stripTags {
		doc.Find(tag).Remove()
	}
	removeComments(doc.Nodes)

	// Text nodes are joined with a space so adjacent elements such as
	// <h1>Hello</h1><p>World</p> do not run together.
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Find("body").Nodes {
		walk(n)
	}
	text := collapseWhitespace(strings.Join(parts, " "))
	if strings.TrimSpace(text) == "" {
		// No <body> (fragment input, e.g. tests): fall back to whole document.
		text = collapseWhitespace(doc.Text())
	}

	return Content{Title: title, Text: text, Links: links}, nil
}

func extractLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]bool)
	var out []string

	doc.Find("a[href], link[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		resolved, ok := resolveLink(href, base)
		if !ok || seen[resolved] {
			return
		}
		seen[resolved] = true
		out = append(out, resolved)
	})

	return out
}

func resolveLink(href string, base *url.URL) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	resolved := ref
	if base != nil {
		resolved = base.ResolveReference(ref)
	}

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}

	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String(), true
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func removeComments(nodes []*html.Node) {
	for _, n := range nodes {
		removeCommentsFromNode(n)
	}
}

func removeCommentsFromNode(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
			continue
		}
		removeCommentsFromNode(c)
	}
}
