// Package reader turns files, web pages, standard input and the clipboard
// into plain text ready for segmenting.
package reader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/tts"
)

// Stdin is the source name that reads standard input.
const Stdin = "-"

// DefaultMaxBytes caps how much of a source is read.
const DefaultMaxBytes = 16 << 20

// Options configures a Reader.
type Options struct {
	Timeout   time.Duration // Per-request deadline for web sources
	UserAgent string
	MaxBytes  int64
	Stdin     io.Reader
	Logger    *log.Logger
}

// Reader extracts speakable text from sources.
type Reader struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	stdin     io.Reader
	log       *log.Logger
}

// New creates a reader.
func New(opts Options) *Reader {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "readaloud"
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Logger == nil {
		opts.Logger = log.Default().WithPrefix("reader")
	}

	return &Reader{
		client:    &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
		stdin:     opts.Stdin,
		log:       opts.Logger,
	}
}

// IsURL reports whether source names a web page.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Extract returns the text of source: "-" for standard input, an http(s)
// URL, or a .txt, .md, .markdown, .html, .htm or .pdf file.
func (r *Reader) Extract(ctx context.Context, source string) (string, error) {
	var (
		text string
		err  error
	)

	switch {
	case source == Stdin:
		text, err = r.readAll(r.stdin)
	case IsURL(source):
		text, err = r.fetch(ctx, source)
	default:
		text, err = r.readFile(source)
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s", tts.ErrEmptyContent, source)
	}
	r.log.Debug("Extracted text", "source", source, "bytes", len(text))
	return text, nil
}

// Supported reports whether Extract accepts the file extension of path.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown", ".html", ".htm", ".pdf":
		return true
	}
	return false
}

func (r *Reader) readFile(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(path) {
		return "", fmt.Errorf("%w: %q", tts.ErrUnsupportedSource, ext)
	}

	if ext == ".pdf" {
		return extractPDF(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close() //nolint:errcheck

	switch ext {
	case ".md", ".markdown":
		data, err := r.readAll(f)
		if err != nil {
			return "", err
		}
		return MarkdownText([]byte(data)), nil
	case ".html", ".htm":
		return HTMLText(io.LimitReader(f, r.maxBytes))
	default:
		return r.readAll(f)
	}
}

func (r *Reader) readAll(src io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(src, r.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	return string(data), nil
}

// Clipboard returns the text on the system clipboard.
func Clipboard() (string, error) {
	if clipboard.Unsupported {
		return "", fmt.Errorf("%w: no clipboard utility found", tts.ErrUnsupportedSource)
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: clipboard", tts.ErrEmptyContent)
	}
	return text, nil
}
