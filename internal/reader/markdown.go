package reader

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var frontMatterRegex = regexp.MustCompile(`(?s)\A(?:---|\+\+\+)\r?\n.*?\r?\n(?:---|\+\+\+)[ \t]*(?:\r?\n|\z)`)

var markdown = goldmark.New()

// MarkdownText renders markdown as speakable paragraphs. Code blocks, raw
// HTML and front matter are dropped; links and images keep their text.
// Bulleted items start with "- " and numbered items with "N. ".
func MarkdownText(source []byte) string {
	source = frontMatterRegex.ReplaceAll(source, nil)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var paragraphs []string
	emit := func(s string) {
		if s = collapse(s); s != "" {
			paragraphs = append(paragraphs, s)
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := n.(type) {
		case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
			return ast.WalkSkipChildren, nil

		case *ast.Heading:
			emit(inlineText(n, source))
			return ast.WalkSkipChildren, nil

		case *ast.ListItem:
			// Nested lists are visited on their own; only the item's
			// own text is read here.
			var b strings.Builder
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if _, nested := c.(*ast.List); nested {
					continue
				}
				b.WriteString(inlineText(c, source))
				b.WriteByte(' ')
			}
			if item := collapse(b.String()); item != "" {
				emit(listMarker(n) + item)
			}
			return ast.WalkContinue, nil

		case *ast.Paragraph, *ast.TextBlock:
			if _, inItem := n.Parent().(*ast.ListItem); inItem {
				return ast.WalkSkipChildren, nil
			}
			emit(inlineText(n, source))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(paragraphs, "\n\n")
}

// listMarker returns "- " for a bulleted item and "N. " for a numbered one.
func listMarker(item *ast.ListItem) string {
	list, ok := item.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		return "- "
	}
	n := list.Start
	for c := list.FirstChild(); c != nil && c != ast.Node(item); c = c.NextSibling() {
		n++
	}
	return strconv.Itoa(n) + ". "
}

// inlineText returns the text of n's inline content.
func inlineText(n ast.Node, source []byte) string {
	var b bytes.Buffer
	writeInline(&b, n, source)
	return b.String()
}

func writeInline(b *bytes.Buffer, n ast.Node, source []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(source))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.CodeSpan:
			writeInline(b, c, source)
		case *ast.AutoLink, *ast.RawHTML:
			// URLs and inline tags are not read out.
		case *ast.List:
		default:
			writeInline(b, c, source)
		}
	}
}
