// Package sentence splits text into speakable segments.
package sentence

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/dgnsrekt/readaloud/tts"
)

// Pauses inserted after each kind of segment.
const (
	SentencePause    = 500 * time.Millisecond
	CommaPause       = 200 * time.Millisecond
	ListPause        = 500 * time.Millisecond
	EnumerationPause = 400 * time.Millisecond
)

// Sentences longer than LongSentenceRunes are split after commas into
// clauses of at least MinClauseRunes.
const (
	LongSentenceRunes = 180
	MinClauseRunes    = 40
)

var (
	paragraphRegex   = regexp.MustCompile(`\n[ \t]*\n`)
	linkRegex        = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	listItemRegex    = regexp.MustCompile(`(?m)^[ \t]*[•\-\*+][ \t]+`)
	enumerationRegex = regexp.MustCompile(`(?i)^\s*([a-z]|\d+)[.)]\s+`)
	spaceRegex       = regexp.MustCompile(`[ \t]+`)
)

// Parser splits text into segments. The zero value is not usable; use
// NewParser.
type Parser struct {
	abbreviations map[string]bool
	longSentence  int
	minClause     int
}

// NewParser creates a parser with the default abbreviation list.
func NewParser() *Parser {
	return &Parser{
		abbreviations: makeAbbreviationMap(),
		longSentence:  LongSentenceRunes,
		minClause:     MinClauseRunes,
	}
}

// Segment splits text into segments. It never fails: empty or blank input
// yields no segments.
func (p *Parser) Segment(text string) []tts.Segment {
	// Boundaries are found on runes and sliced as bytes, which only agree on
	// valid UTF-8.
	text = strings.ToValidUTF8(text, "\uFFFD")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = linkRegex.ReplaceAllString(text, "$1")

	var segments []tts.Segment
	for _, para := range paragraphRegex.Split(text, -1) {
		para = strings.TrimSpace(para)
		if !speakable(para) {
			continue
		}

		switch {
		case listItemRegex.MatchString(para):
			segments = append(segments, tts.Segment{
				Kind:       tts.KindListItem,
				Text:       normalize(para),
				PauseAfter: ListPause,
			})
		case enumerationRegex.MatchString(para):
			segments = append(segments, tts.Segment{
				Kind:       tts.KindEnumeration,
				Text:       normalize(para),
				PauseAfter: EnumerationPause,
			})
		default:
			segments = append(segments, p.sentences(normalize(para))...)
		}
	}
	return segments
}

// Segment splits text with a default parser.
func Segment(text string) []tts.Segment {
	return defaultParser.Segment(text)
}

var defaultParser = NewParser()

func (p *Parser) sentences(para string) []tts.Segment {
	var segments []tts.Segment
	for _, b := range p.findSentenceBoundaries(para) {
		text := strings.TrimSpace(para[b.start:b.end])
		if !speakable(text) {
			continue
		}
		segments = append(segments, p.clauses(text)...)
	}
	return segments
}

// clauses splits a long sentence after commas. Short sentences come back as
// a single segment.
func (p *Parser) clauses(sentence string) []tts.Segment {
	runes := []rune(sentence)
	if len(runes) <= p.longSentence {
		return []tts.Segment{{Kind: tts.KindSentence, Text: sentence, PauseAfter: SentencePause}}
	}

	var segments []tts.Segment
	start := 0
	for i, r := range runes {
		if r != ',' || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if i+1-start < p.minClause || len(runes)-(i+1) < p.minClause {
			continue
		}
		segments = append(segments, tts.Segment{
			Kind:       tts.KindSentence,
			Text:       strings.TrimSpace(string(runes[start : i+1])),
			PauseAfter: CommaPause,
		})
		start = i + 1
	}
	return append(segments, tts.Segment{
		Kind:       tts.KindSentence,
		Text:       strings.TrimSpace(string(runes[start:])),
		PauseAfter: SentencePause,
	})
}

// boundary represents a sentence as byte offsets into its paragraph.
type boundary struct {
	start int
	end   int
}

func (p *Parser) findSentenceBoundaries(text string) []boundary {
	var boundaries []boundary

	runes := []rune(text)
	lastStart := 0

	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}

		// Collect the whole punctuation run, then any closing quotes.
		punctEnd := i + 1
		for punctEnd < len(runes) && isTerminal(runes[punctEnd]) {
			punctEnd++
		}
		for punctEnd < len(runes) && isCloser(runes[punctEnd]) {
			punctEnd++
		}

		if !p.isRealSentenceEnd(runes, i, punctEnd) {
			i = punctEnd - 1
			continue
		}

		boundaries = append(boundaries, boundary{start: lastStart, end: punctEnd})
		for punctEnd < len(runes) && unicode.IsSpace(runes[punctEnd]) {
			punctEnd++
		}
		lastStart = punctEnd
		i = punctEnd - 1
	}

	if lastStart < len(runes) && strings.TrimSpace(string(runes[lastStart:])) != "" {
		boundaries = append(boundaries, boundary{start: lastStart, end: len(runes)})
	}

	// Convert rune positions to byte positions
	for i := range boundaries {
		boundaries[i].start = len(string(runes[:boundaries[i].start]))
		boundaries[i].end = len(string(runes[:boundaries[i].end]))
	}
	return boundaries
}

// isRealSentenceEnd decides whether the punctuation run starting at pos and
// ending before end closes a sentence.
func (p *Parser) isRealSentenceEnd(runes []rune, pos, end int) bool {
	// End of text always closes the sentence.
	if end >= len(runes) {
		return true
	}
	// Punctuation glued to the next word: "3.14", "example.com", "?!x".
	if !unicode.IsSpace(runes[end]) {
		return false
	}

	run := string(runes[pos:end])
	hasBang := strings.ContainsAny(run, "!?")

	if !hasBang {
		// Ellipsis mid-paragraph trails off rather than ending.
		if strings.Count(run, ".") > 1 {
			return false
		}

		word := strings.ToLower(wordBefore(runes, pos))
		if p.abbreviations[word] {
			return false
		}
		// Multi-part abbreviations like "Ph.D." or "U.S."
		if strings.Contains(word, ".") {
			return false
		}
		// Initials: "J. R. R. Tolkien"
		if w := []rune(wordBefore(runes, pos)); len(w) == 1 && unicode.IsUpper(w[0]) {
			return false
		}
	}

	next := end
	for next < len(runes) && unicode.IsSpace(runes[next]) {
		next++
	}
	if next >= len(runes) {
		return true
	}

	if hasBang {
		return true
	}

	// A period needs the next sentence to start like one.
	r := runes[next]
	return unicode.IsUpper(r) || unicode.IsDigit(r) || isOpener(r)
}

// wordBefore returns the token that ends just before pos, without leading
// punctuation such as quotes or brackets.
func wordBefore(runes []rune, pos int) string {
	start := pos - 1
	for start >= 0 && !unicode.IsSpace(runes[start]) {
		start--
	}
	word := string(runes[start+1 : pos])
	return strings.TrimLeftFunc(word, func(r rune) bool {
		return isOpener(r) || isCloser(r)
	})
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '»', '”', '’':
		return true
	}
	return false
}

func isOpener(r rune) bool {
	switch r {
	case '"', '\'', '(', '[', '«', '“', '‘':
		return true
	}
	return false
}

// speakable reports whether s contains anything an engine would pronounce.
func speakable(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

// normalize collapses runs of spaces and joins wrapped lines.
func normalize(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRegex.ReplaceAllString(line, " "))
	}
	return strings.Join(lines, " ")
}

func makeAbbreviationMap() map[string]bool {
	abbrevs := []string{
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "rev", "hon", "gen", "col", "capt", "lt", "sgt",
		"llc", "inc", "ltd", "co", "corp", "dept", "univ",
		"etc", "vs", "cf", "al", "approx", "fig", "vol", "pp", "ch",
		"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
		"ave", "blvd", "rd", "ln", "ct", "mt",
		"ft", "lbs", "oz", "kg", "km", "cm", "mm", "mi", "yd",
		"hr", "hrs", "mins", "secs",
	}

	m := make(map[string]bool, len(abbrevs))
	for _, abbrev := range abbrevs {
		m[abbrev] = true
	}
	return m
}
