package book

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// BreadcrumbSeparator joins the names in a section's breadcrumbs.
const BreadcrumbSeparator = " » "

// Section is one searchable unit: a chapter's text up to the next heading
// at or above the split level.
type Section struct {
	Title       string
	Anchor      string
	Breadcrumbs string
	Body        string
	URL         string
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAttribute()),
)

// Sections splits a chapter at every heading of level <= splitLevel. Text
// before the first such heading becomes a section named after the chapter,
// linked without an anchor; it is dropped when empty.
func Sections(ch *Chapter, splitLevel int) []Section {
	if ch.IsDraft() {
		return nil
	}
	src := []byte(ch.Content)
	doc := markdown.Parser().Parse(text.NewReader(src))

	page := HTMLPath(ch.Path)
	parents := append(append([]string(nil), ch.ParentNames...), ch.Name)
	seen := make(map[string]int)

	var (
		out     []Section
		body    strings.Builder
		heading = false
		cur     = Section{
			Title:       ch.Name,
			Breadcrumbs: strings.Join(parents, BreadcrumbSeparator),
			URL:         page,
		}
	)
	flush := func() {
		cur.Body = collapseSpace(body.String())
		if heading || cur.Body != "" {
			out = append(out, cur)
		}
		body.Reset()
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level > splitLevel {
			appendText(&body, n, src)
			body.WriteByte(' ')
			continue
		}
		flush()
		title := collapseSpace(plainText(h, src))
		anchor := uniqueID(headingID(h, title), seen)
		heading = true
		cur = Section{
			Title:       title,
			Anchor:      anchor,
			Breadcrumbs: strings.Join(append(parents, title), BreadcrumbSeparator),
			URL:         page + "#" + anchor,
		}
	}
	flush()
	return out
}

// HTMLPath maps a chapter source path to its rendered page.
func HTMLPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.EqualFold(path.Base(p), "README.md") {
		return path.Join(path.Dir(p), "index.html")
	}
	return strings.TrimSuffix(p, path.Ext(p)) + ".html"
}

// NormalizeID turns heading text into an anchor: lower-case letters, digits,
// '_' and '-' are kept, whitespace becomes '-', everything else is dropped.
func NormalizeID(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-':
			sb.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

func headingID(h *ast.Heading, title string) string {
	if v, ok := h.AttributeString("id"); ok {
		if id, ok := v.([]byte); ok && len(id) > 0 {
			return string(id)
		}
	}
	return NormalizeID(title)
}

func uniqueID(id string, seen map[string]int) string {
	n := seen[id]
	seen[id] = n + 1
	if n == 0 {
		return id
	}
	return fmt.Sprintf("%s-%d", id, n)
}

func plainText(n ast.Node, src []byte) string {
	var sb strings.Builder
	appendText(&sb, n, src)
	return sb.String()
}

// appendText writes the visible text of n. Code is included; raw HTML is
// reduced to its text content.
func appendText(sb *strings.Builder, n ast.Node, src []byte) {
	switch v := n.(type) {
	case *ast.Text:
		sb.Write(v.Segment.Value(src))
		if v.SoftLineBreak() || v.HardLineBreak() {
			sb.WriteByte(' ')
		}
		return
	case *ast.String:
		sb.Write(v.Value)
		return
	case *ast.AutoLink:
		sb.Write(v.Label(src))
		return
	case *ast.RawHTML:
		var raw strings.Builder
		for i := 0; i < v.Segments.Len(); i++ {
			seg := v.Segments.At(i)
			raw.Write(seg.Value(src))
		}
		sb.WriteString(htmlText(raw.String(), false))
		return
	case *ast.HTMLBlock:
		raw := linesText(v, src)
		if v.HasClosure() {
			raw += string(v.ClosureLine.Value(src))
		}
		sb.WriteString(htmlText(raw, true))
		return
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		sb.WriteString(linesText(n, src))
		return
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		appendText(sb, c, src)
		if c.Type() == ast.TypeBlock {
			sb.WriteByte(' ')
		}
	}
}

func linesText(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return sb.String()
}

// htmlText returns the text content of an HTML fragment, skipping script
// and style elements. With spaced set, tags count as word breaks.
func htmlText(fragment string, spaced bool) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var sb strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawTextTag(name) {
				skip++
			}
			if spaced {
				sb.WriteByte(' ')
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawTextTag(name) && skip > 0 {
				skip--
			}
			if spaced {
				sb.WriteByte(' ')
			}
		}
	}
}

func isRawTextTag(name []byte) bool {
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
