package collector

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var skipTags = map[string]bool{
	"script": true, "style": true, "header": true, "footer": true,
	"nav": true, "aside": true, "iframe": true, "noscript": true,
	"form": true, "button": true, "svg": true, "select": true,
	"textarea": true,
}

var blockTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true,
	"p": true, "li": true, "blockquote": true,
}

var spaceRe = regexp.MustCompile(`\s+`)

// ExtractText pulls readable article text out of an HTML document:
// headings, paragraphs, list items and quotes, preferring a <main> or
// <article> container when one exists. Chrome elements (scripts,
// navigation, footers) are discarded.
func ExtractText(doc []byte) string {
	root, err := html.Parse(strings.NewReader(string(doc)))
	if err != nil {
		return ""
	}

	container := findFirst(root, "main")
	if container == nil {
		container = findFirst(root, "article")
	}
	if container == nil {
		container = root
	}

	var blocks []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipTags[n.Data] {
				return
			}
			if blockTags[n.Data] {
				if t := nodeText(n); len(t) > 5 {
					blocks = append(blocks, t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(container)
	return strings.Join(blocks, "\n\n")
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(spaceRe.ReplaceAllString(sb.String(), " "))
}

// attrVal returns the value of the named attribute, or "".
func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
