// Package snippet cuts short highlighted excerpts out of record text.
package snippet

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultWindow  = 160
	DefaultPreTag  = "<mark>"
	DefaultPostTag = "</mark>"
	Ellipsis       = "…"
)

// Span is a half-open byte range [Start, End) of a match in the text.
type Span struct {
	Start int
	End   int
}

// Extractor builds snippets. The zero value uses the default tags.
type Extractor struct {
	PreTag  string
	PostTag string
}

// NewExtractor creates an extractor with the default <mark> tags.
func NewExtractor() *Extractor {
	return &Extractor{PreTag: DefaultPreTag, PostTag: DefaultPostTag}
}

// runeSpan is a match converted to rune offsets.
type runeSpan struct {
	start, end int // rune offsets
	byteStart  int
	byteEnd    int
}

// Extract returns the window of at most window runes that fully contains
// the most spans, earliest window on ties, with those spans wrapped in the
// extractor's tags. Without any usable span the leading window is returned
// unmarked. Truncated ends are marked with an ellipsis, which is not
// counted against window. Spans that are out of range, empty, not on rune
// boundaries or overlapping an earlier span are ignored.
func (e *Extractor) Extract(text string, spans []Span, window int) string {
	if window <= 0 {
		window = DefaultWindow
	}
	total := utf8.RuneCountInString(text)
	valid := normalizeSpans(text, spans)

	start := 0
	if len(valid) > 0 {
		start = bestWindow(valid, total, window)
	}
	end := start + window
	if end > total {
		end = total
	}

	byteStart, byteEnd := runeToByte(text, start), runeToByte(text, end)

	var b strings.Builder
	b.Grow(byteEnd - byteStart + len(Ellipsis)*2)
	if start > 0 {
		b.WriteString(Ellipsis)
	}
	pos := byteStart
	for _, s := range valid {
		if s.start < start || s.end > end {
			continue
		}
		b.WriteString(text[pos:s.byteStart])
		b.WriteString(e.preTag())
		b.WriteString(text[s.byteStart:s.byteEnd])
		b.WriteString(e.postTag())
		pos = s.byteEnd
	}
	b.WriteString(text[pos:byteEnd])
	if end < total {
		b.WriteString(Ellipsis)
	}
	return b.String()
}

func (e *Extractor) preTag() string {
	if e == nil || e.PreTag == "" {
		return DefaultPreTag
	}
	return e.PreTag
}

func (e *Extractor) postTag() string {
	if e == nil || e.PostTag == "" {
		return DefaultPostTag
	}
	return e.PostTag
}

// normalizeSpans sorts spans, drops unusable ones and converts the rest to
// rune offsets.
func normalizeSpans(text string, spans []Span) []runeSpan {
	if len(spans) == 0 {
		return nil
	}
	sorted := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
			continue
		}
		if !utf8.RuneStart(text[s.Start]) || (s.End < len(text) && !utf8.RuneStart(text[s.End])) {
			continue
		}
		sorted = append(sorted, s)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	out := make([]runeSpan, 0, len(sorted))
	lastEnd := -1
	runeIdx, byteIdx := 0, 0
	advance := func(to int) int {
		runeIdx += utf8.RuneCountInString(text[byteIdx:to])
		byteIdx = to
		return runeIdx
	}
	for _, s := range sorted {
		if s.Start < lastEnd {
			continue
		}
		rs := runeSpan{byteStart: s.Start, byteEnd: s.End}
		rs.start = advance(s.Start)
		rs.end = advance(s.End)
		out = append(out, rs)
		lastEnd = s.End
	}
	return out
}

// bestWindow picks the window start in runes. Candidate windows begin at a
// span start; the winner is then shifted left to show some leading context
// without dropping any span it contains.
func bestWindow(spans []runeSpan, total, window int) int {
	bestCount, bestFirst, bestLast := 0, 0, 0
	j := 0
	for i := range spans {
		if j < i {
			j = i
		}
		for j+1 < len(spans) && spans[j+1].end-spans[i].start <= window {
			j++
		}
		count := 0
		if spans[j].end-spans[i].start <= window {
			count = j - i + 1
		}
		if count > bestCount {
			bestCount, bestFirst, bestLast = count, i, j
		}
	}
	if bestCount == 0 {
		// no span fits; fall back to the unmarked leading window
		return 0
	}

	start := spans[bestFirst].start
	slack := window - (spans[bestLast].end - start)
	lead := slack / 2
	if lead > start {
		lead = start
	}
	start -= lead
	if start+window > total {
		start = total - window
		if start < 0 {
			start = 0
		}
	}
	return start
}

func runeToByte(text string, runeOffset int) int {
	if runeOffset <= 0 {
		return 0
	}
	n := 0
	for i := range text {
		if n == runeOffset {
			return i
		}
		n++
	}
	return len(text)
}

// Collapse replaces every run of whitespace with a single space and trims
// both ends.
func Collapse(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
