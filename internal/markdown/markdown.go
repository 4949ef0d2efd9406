// Package markdown turns AI response text into typed display blocks.
// It is a best-effort formatter for AI-generated prose and code, not a
// conformant markdown parser: nested emphasis, escaped delimiters and
// malformed fences may render incorrectly.
package markdown

import (
	"regexp"
	"strings"
)

type BlockKind string

const (
	KindHeading    BlockKind = "heading"
	KindListItem   BlockKind = "list_item"
	KindParagraph  BlockKind = "paragraph"
	KindCodeBlock  BlockKind = "code_block"
	KindInlineCode BlockKind = "inline_code"
)

type Block struct {
	Kind BlockKind `json:"kind"`

	// Headings
	Level int `json:"level,omitempty"`

	// List items: indent is the count of leading whitespace chars;
	// Ordinal is "3." style for numbered items, empty for bullets.
	Indent  int    `json:"indent,omitempty"`
	Ordinal string `json:"ordinal,omitempty"`

	// Code
	Language string `json:"language,omitempty"`
	Code     string `json:"code,omitempty"`

	Text string `json:"text,omitempty"`
}

var (
	fenceRe   = regexp.MustCompile("(?s)```(\\w+)?\\n?(.*?)```")
	inlineRe  = regexp.MustCompile("`([^`]+)`")
	bulletRe  = regexp.MustCompile(`^(\s*)[-*+]\s+(.*)$`)
	orderedRe = regexp.MustCompile(`^(\s*)(\d+)\.\s+(.*)$`)
	boldRe    = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe  = regexp.MustCompile(`\*(.*?)\*`)
)

type span struct {
	start, end int
	block      Block
}

// Render transforms text into an ordered block sequence. Fenced code
// blocks are extracted first; their spans are masked before inline-code
// scanning so backticks inside a fence never match twice; both match
// lists merge sorted by source offset, and the literal gaps between
// matches classify line by line.
func Render(text string) []Block {
	var spans []span

	for _, m := range fenceRe.FindAllStringSubmatchIndex(text, -1) {
		lang := "text"
		if m[2] >= 0 {
			lang = text[m[2]:m[3]]
		}
		code := strings.TrimSpace(text[m[4]:m[5]])
		spans = append(spans, span{
			start: m[0],
			end:   m[1],
			block: Block{Kind: KindCodeBlock, Language: lang, Code: code},
		})
	}

	masked := []byte(text)
	for _, sp := range spans {
		for i := sp.start; i < sp.end; i++ {
			masked[i] = '*'
		}
	}

	for _, m := range inlineRe.FindAllStringSubmatchIndex(string(masked), -1) {
		spans = append(spans, span{
			start: m[0],
			end:   m[1],
			block: Block{Kind: KindInlineCode, Text: text[m[2]:m[3]]},
		})
	}

	sortSpans(spans)

	var blocks []Block
	last := 0
	for _, sp := range spans {
		if sp.start > last {
			blocks = append(blocks, classify(text[last:sp.start])...)
		}
		blocks = append(blocks, sp.block)
		last = sp.end
	}
	if last < len(text) {
		blocks = append(blocks, classify(text[last:])...)
	}
	return blocks
}

func sortSpans(spans []span) {
	// Insertion sort; match lists are tiny and mostly ordered.
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].start < spans[j-1].start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
}

// classify splits literal text into heading, list and paragraph blocks
// line by line. Blank lines emit nothing.
func classify(text string) []Block {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var blocks []Block
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "### "):
			blocks = append(blocks, Block{Kind: KindHeading, Level: 3, Text: line[4:]})
		case strings.HasPrefix(line, "## "):
			blocks = append(blocks, Block{Kind: KindHeading, Level: 2, Text: line[3:]})
		case strings.HasPrefix(line, "# "):
			blocks = append(blocks, Block{Kind: KindHeading, Level: 1, Text: line[2:]})
		case orderedRe.MatchString(line):
			m := orderedRe.FindStringSubmatch(line)
			blocks = append(blocks, Block{
				Kind:    KindListItem,
				Indent:  len(m[1]),
				Ordinal: m[2] + ".",
				Text:    formatInline(m[3]),
			})
		case bulletRe.MatchString(line):
			m := bulletRe.FindStringSubmatch(line)
			blocks = append(blocks, Block{
				Kind:   KindListItem,
				Indent: len(m[1]),
				Text:   formatInline(m[2]),
			})
		case strings.TrimSpace(line) != "":
			blocks = append(blocks, Block{Kind: KindParagraph, Text: formatInline(line)})
		}
	}
	return blocks
}

// formatInline substitutes emphasis markers last, as a textual
// transform on already-classified content. Bold runs first so a
// ** pair is never consumed as two italics.
func formatInline(text string) string {
	text = boldRe.ReplaceAllString(text, "<strong>$1</strong>")
	text = italicRe.ReplaceAllString(text, "<em>$1</em>")
	return text
}
