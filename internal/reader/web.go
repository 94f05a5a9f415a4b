package reader

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Elements that never hold article text.
const boilerplate = "script, style, noscript, header, nav, footer, aside, form, iframe, svg"

// Elements emitted as paragraphs, in document order.
const blocks = "h1, h2, h3, h4, h5, h6, p, li, blockquote, pre"

func (r *Reader) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	body := io.LimitReader(resp.Body, r.maxBytes)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		return r.readAll(body)
	}
	return HTMLText(body)
}

// HTMLText extracts the readable text of an HTML document. Navigation and
// other page furniture are dropped, and the article or main element is
// preferred over the whole body. Headings, paragraphs, list items and quotes
// become paragraphs separated by blank lines; list items are marked with
// "- " so that they are spoken as list items.
func HTMLText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	doc.Find(boilerplate).Remove()

	root := doc.Selection
	for _, selector := range []string{"article", "main", "body"} {
		if s := doc.Find(selector).First(); s.Length() > 0 && collapse(s.Text()) != "" {
			root = s
			break
		}
	}

	var paragraphs []string
	root.Find(blocks).Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are read as part of their outermost block.
		if s.ParentsUntilSelection(root).Filter(blocks).Length() > 0 {
			return
		}
		text := collapse(s.Text())
		if text == "" {
			return
		}
		if goquery.NodeName(s) == "li" {
			text = "- " + text
		}
		paragraphs = append(paragraphs, text)
	})

	if len(paragraphs) == 0 {
		return collapse(root.Text()), nil
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// collapse joins the words of s with single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
