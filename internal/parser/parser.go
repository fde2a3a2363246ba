package parser

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Flags selects which fields to extract from a page.
type Flags struct {
	// Text extracts the page's visible text, whitespace-collapsed.
	Text bool

	// Images collects absolute image URLs.
	Images bool

	// Links collects absolute http(s) anchor URLs.
	Links bool

	// Headings collects h1/h2/h3 text.
	Headings bool

	// ImageAltText collects non-empty alt attributes.
	ImageAltText bool

	// CanonicalURL extracts the rel=canonical link.
	CanonicalURL bool
}

// Result holds everything extracted from one HTML page.
//
// Design decision: a single result struct filled in one parsing pass
// rather than one method per field, so a page is walked exactly once no
// matter how many fields the caller enabled.
type Result struct {
	// Title is the text of the <title> element.
	Title string

	// MetaDescription is the content of the description meta tag.
	MetaDescription string

	// Text is the whitespace-collapsed visible text. Script and style
	// contents are excluded.
	Text string

	// Images are absolute image URLs in document order.
	Images []string

	// Links are absolute http(s) anchor URLs in document order.
	Links []string

	// H1, H2, H3 hold heading text by level.
	H1 []string
	H2 []string
	H3 []string

	// ImageAltText holds non-empty alt attributes in document order.
	ImageAltText []string

	// CanonicalURL is the resolved rel=canonical target, if present.
	CanonicalURL string
}

// Parser extracts content from HTML relative to a base URL.
type Parser struct {
	// baseURL resolves relative hrefs and srcs.
	baseURL *url.URL
}

// New creates a Parser for pages fetched from baseURL.
func New(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// whitespaceRegex collapses runs of whitespace in extracted text.
var whitespaceRegex = regexp.MustCompile(`\s+`)

// Parse walks the HTML document once and extracts the fields enabled in
// flags. Title and meta description are always extracted; they cost
// nothing extra and every caller wants them.
func (p *Parser) Parse(content io.Reader, flags Flags) (*Result, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	var text strings.Builder
	var walk func(n *html.Node, skipText bool)
	walk = func(n *html.Node, skipText bool) {
		switch n.Type {
		case html.ElementNode:
			p.processElement(n, flags, result)
			// Script and style bodies are code, not content.
			if n.Data == "script" || n.Data == "style" {
				skipText = true
			}
		case html.TextNode:
			if flags.Text && !skipText {
				text.WriteString(n.Data)
				text.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skipText)
		}
	}
	walk(doc, false)

	if flags.Text {
		result.Text = strings.TrimSpace(whitespaceRegex.ReplaceAllString(text.String(), " "))
	}

	return result, nil
}

// processElement handles a single HTML element node.
func (p *Parser) processElement(n *html.Node, flags Flags, result *Result) {
	switch n.Data {
	case "title":
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			result.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "meta":
		if strings.EqualFold(getAttr(n, "name"), "description") {
			result.MetaDescription = strings.TrimSpace(getAttr(n, "content"))
		}

	case "a":
		if !flags.Links {
			return
		}
		if href := getAttr(n, "href"); href != "" {
			resolved := p.resolveURL(href)
			// Only http(s) targets are useful to the crawler.
			if strings.HasPrefix(resolved, "http://") || strings.HasPrefix(resolved, "https://") {
				result.Links = append(result.Links, resolved)
			}
		}

	case "img":
		if flags.Images {
			if src := getAttr(n, "src"); src != "" {
				if resolved := p.resolveURL(src); resolved != "" {
					result.Images = append(result.Images, resolved)
				}
			}
		}
		if flags.ImageAltText {
			if alt := strings.TrimSpace(getAttr(n, "alt")); alt != "" {
				result.ImageAltText = append(result.ImageAltText, alt)
			}
		}

	case "h1", "h2", "h3":
		if !flags.Headings {
			return
		}
		heading := strings.TrimSpace(textOf(n))
		if heading == "" {
			return
		}
		switch n.Data {
		case "h1":
			result.H1 = append(result.H1, heading)
		case "h2":
			result.H2 = append(result.H2, heading)
		case "h3":
			result.H3 = append(result.H3, heading)
		}

	case "link":
		if !flags.CanonicalURL {
			return
		}
		if strings.EqualFold(getAttr(n, "rel"), "canonical") {
			if href := getAttr(n, "href"); href != "" {
				result.CanonicalURL = p.resolveURL(href)
			}
		}
	}
}

// resolveURL resolves a relative URL against the base URL.
// Non-navigational schemes (javascript, mailto, tel, data) resolve to "".
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") ||
		href == "#" {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return p.baseURL.ResolveReference(u).String()
}

// textOf returns the concatenated text content of a node's subtree.
func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
