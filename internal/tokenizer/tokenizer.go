// Package tokenizer turns record fields and query strings into normalized
// terms. The same Tokenizer value must be used at index time and query time.
package tokenizer

import (
	"iter"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/unicode/norm"

	"github.com/gcbaptista/docsearch/config"
)

// acronymRegex handles cases like "HTTPRequest" -> "HTTP Request"
var acronymRegex = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)

// camelCaseRegex handles cases like "theOffice" -> "the Office" or "myAPI" -> "my API"
var camelCaseRegex = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// stopWords are dropped when RemoveStopWords is set.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {},
	"that": {}, "the": {}, "this": {}, "to": {}, "with": {},
}

// Token is a normalized term with its ordinal position among the emitted
// terms of a field and the byte span [Start, End) it came from.
type Token struct {
	Term     string
	Position int
	Start    int
	End      int
}

// Options controls tokenization. The zero value keeps every alphanumeric run
// and treats all symbols as separators.
type Options struct {
	MinTermLength   int
	OperatorTokens  []string
	RemoveStopWords bool
	Stem            bool
	SplitCamelCase  bool
}

// Tokenizer is immutable and safe for concurrent use.
type Tokenizer struct {
	minLen     int
	operators  map[rune]struct{}
	stopWords  bool
	stem       bool
	splitCamel bool
}

// New creates a Tokenizer from options.
func New(opts Options) *Tokenizer {
	t := &Tokenizer{
		minLen:     opts.MinTermLength,
		operators:  make(map[rune]struct{}, len(opts.OperatorTokens)),
		stopWords:  opts.RemoveStopWords,
		stem:       opts.Stem,
		splitCamel: opts.SplitCamelCase,
	}
	for _, op := range opts.OperatorTokens {
		if r, size := utf8.DecodeRuneInString(op); size > 0 && r != utf8.RuneError {
			t.operators[r] = struct{}{}
		}
	}
	return t
}

// FromSettings builds the tokenizer described by index settings.
func FromSettings(settings *config.IndexSettings) *Tokenizer {
	return New(Options{
		MinTermLength:   settings.MinTermLength,
		OperatorTokens:  settings.OperatorTokens,
		RemoveStopWords: settings.RemoveStopWords,
		Stem:            settings.Stem,
		SplitCamelCase:  settings.SplitCamelCase,
	})
}

// Default returns the tokenizer for default index settings.
func Default() *Tokenizer {
	return New(Options{
		MinTermLength:  config.DefaultMinTermLength,
		OperatorTokens: config.DefaultOperatorTokens,
	})
}

// Terms lazily yields the tokens of text. The sequence is finite and can be
// ranged over any number of times.
func (t *Tokenizer) Terms(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		pos := 0
		runStart := -1
		for i := 0; i < len(text); {
			r, size := utf8.DecodeRuneInString(text[i:])
			if isWordRune(r) {
				if runStart < 0 {
					runStart = i
				}
				i += size
				continue
			}
			if runStart >= 0 {
				if !t.emitRun(text[runStart:i], runStart, &pos, yield) {
					return
				}
				runStart = -1
			}
			if _, ok := t.operators[r]; ok {
				// operator tokens bypass the minimum length
				if !yield(Token{Term: string(r), Position: pos, Start: i, End: i + size}) {
					return
				}
				pos++
			}
			i += size
		}
		if runStart >= 0 {
			t.emitRun(text[runStart:], runStart, &pos, yield)
		}
	}
}

// emitRun normalizes one alphanumeric run and yields its term(s).
// It returns false when the consumer stopped iterating.
func (t *Tokenizer) emitRun(raw string, start int, pos *int, yield func(Token) bool) bool {
	end := start + len(raw)
	normalized := strings.ToLower(norm.NFKC.String(raw))
	// NFKC can introduce separators (e.g. fraction slash), so split again.
	pieces := strings.FieldsFunc(normalized, func(r rune) bool { return !isWordRune(r) })

	for _, piece := range pieces {
		term, ok := t.finish(piece)
		if !ok {
			continue
		}
		if !yield(Token{Term: term, Position: *pos, Start: start, End: end}) {
			return false
		}
		if t.splitCamel && len(pieces) == 1 {
			for _, part := range camelParts(raw) {
				partTerm, ok := t.finish(strings.ToLower(norm.NFKC.String(part)))
				if !ok || partTerm == term {
					continue
				}
				if !yield(Token{Term: partTerm, Position: *pos, Start: start, End: end}) {
					return false
				}
			}
		}
		*pos++
	}
	return true
}

// finish applies stop-word, length and stemming rules to a lowercased piece.
func (t *Tokenizer) finish(piece string) (string, bool) {
	if piece == "" {
		return "", false
	}
	if t.stopWords {
		if _, stop := stopWords[piece]; stop {
			return "", false
		}
	}
	if utf8.RuneCountInString(piece) < t.minLen {
		return "", false
	}
	if t.stem {
		piece = english.Stem(piece, false)
	}
	return piece, true
}

// Tokenize collects Terms into a slice.
func (t *Tokenizer) Tokenize(text string) []Token {
	tokens := make([]Token, 0)
	for tok := range t.Terms(text) {
		tokens = append(tokens, tok)
	}
	return tokens
}

// TermStrings returns only the terms of text, in order.
func (t *Tokenizer) TermStrings(text string) []string {
	terms := make([]string, 0) // Initialize as empty slice, not nil
	for tok := range t.Terms(text) {
		terms = append(terms, tok.Term)
	}
	return terms
}

// IsOperator reports whether term is one of the configured operator tokens.
func (t *Tokenizer) IsOperator(term string) bool {
	r, size := utf8.DecodeRuneInString(term)
	if size != len(term) {
		return false
	}
	_, ok := t.operators[r]
	return ok
}

// Tokenize splits text with the default tokenizer and returns the terms.
func Tokenize(text string) []string {
	return Default().TermStrings(text)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r)
}

// camelParts splits camel/PascalCase identifiers: "BlockSparseArray" ->
// ["Block", "Sparse", "Array"]. Runs without case changes return nil.
func camelParts(raw string) []string {
	processed := acronymRegex.ReplaceAllString(raw, "$1 $2")
	processed = camelCaseRegex.ReplaceAllString(processed, "$1 $2")
	parts := strings.Fields(processed)
	if len(parts) < 2 {
		return nil
	}
	return parts
}
