package tokenizer

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", []string{}},
		{"simple lowercase", "hello world", []string{"hello", "world"}},
		{"with punctuation", "hello, world.", []string{"hello", "world"}},
		{"with numbers", "item123 test", []string{"item123", "test"}},
		{"leading/trailing spaces", "  hello world  ", []string{"hello", "world"}},
		{"identifier stays whole", "BlockSparseArray", []string{"blocksparsearray"}},
		{"operator is standalone", "svd!", []string{"svd", "!"}},
		{"wildcard operator", "a * b", []string{"a", "*", "b"}},
		{"string with hyphen", "state-of-the-art", []string{"state", "of", "the", "art"}},
		{"string with underscore", "my_variable_name", []string{"my", "variable", "name"}},
		{"dotted path", "LinearAlgebra.svd", []string{"linearalgebra", "svd"}},
		{"all caps word", "HELLO WORLD", []string{"hello", "world"}},
		{"mixed with numbers and symbols", "API_v1.0-beta", []string{"api", "v1", "0", "beta"}},
		{"only separators", "@#$%^&()", []string{}},
		{"fullwidth letters normalized", "ＳＶＤ", []string{"svd"}},
		{"superscript digit normalized", "x²", []string{"x2"}},
		{"accented letters kept", "Café naïve", []string{"café", "naïve"}},
		{"julia prompt", "julia> svd(A)", []string{"julia", "svd", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTokenize_ComposedAndDecomposedAgree(t *testing.T) {
	composed := Tokenize("caf\u00e9")
	decomposed := Tokenize("cafe\u0301")
	if !reflect.DeepEqual(composed, decomposed) {
		t.Errorf("NFKC mismatch: %v vs %v", composed, decomposed)
	}
}

func TestTerms_PositionsAndSpans(t *testing.T) {
	text := "Compute svd! now"
	tokens := Default().Tokenize(text)

	want := []Token{
		{Term: "compute", Position: 0, Start: 0, End: 7},
		{Term: "svd", Position: 1, Start: 8, End: 11},
		{Term: "!", Position: 2, Start: 11, End: 12},
		{Term: "now", Position: 3, Start: 13, End: 16},
	}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("Tokenize(%q) = %+v, want %+v", text, tokens, want)
	}
	for _, tok := range tokens {
		if text[tok.Start:tok.End] == "" {
			t.Errorf("Empty span for %q", tok.Term)
		}
	}
}

func TestTerms_IsRestartableAndStoppable(t *testing.T) {
	seq := Default().Terms("one two three")

	var first, second []string
	for tok := range seq {
		first = append(first, tok.Term)
	}
	for tok := range seq {
		second = append(second, tok.Term)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Sequence not restartable: %v vs %v", first, second)
	}

	var taken []string
	for tok := range seq {
		taken = append(taken, tok.Term)
		if len(taken) == 2 {
			break
		}
	}
	if !reflect.DeepEqual(taken, []string{"one", "two"}) {
		t.Errorf("Early break yielded %v", taken)
	}
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		input string
		want  []string
	}{
		{
			name:  "min term length drops short words but not operators",
			opts:  Options{MinTermLength: 3, OperatorTokens: []string{"!"}},
			input: "qr! of svd",
			want:  []string{"!", "svd"},
		},
		{
			name:  "no operators means symbols are separators",
			opts:  Options{MinTermLength: 1},
			input: "svd!",
			want:  []string{"svd"},
		},
		{
			name:  "stop words removed",
			opts:  Options{MinTermLength: 1, RemoveStopWords: true},
			input: "the rank of a matrix",
			want:  []string{"rank", "matrix"},
		},
		{
			name:  "stemming",
			opts:  Options{MinTermLength: 1, Stem: true},
			input: "arrays running",
			want:  []string{"array", "run"},
		},
		{
			name:  "camel case split keeps whole identifier first",
			opts:  Options{MinTermLength: 1, SplitCamelCase: true},
			input: "BlockSparseArray",
			want:  []string{"blocksparsearray", "block", "sparse", "array"},
		},
		{
			name:  "acronym split",
			opts:  Options{MinTermLength: 1, SplitCamelCase: true},
			input: "HTTPRequest",
			want:  []string{"httprequest", "http", "request"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.opts).TermStrings(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TermStrings(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSplitCamelCase_SharesPosition(t *testing.T) {
	tokens := New(Options{MinTermLength: 1, SplitCamelCase: true}).Tokenize("new BlockArray")
	for _, tok := range tokens[1:] {
		if tok.Position != 1 {
			t.Errorf("Expected camel parts at position 1, got %+v", tok)
		}
	}
}

func TestTokenizerParity(t *testing.T) {
	// Index time and query time share one tokenizer, so the same string
	// always produces the same term sequence.
	tk := New(Options{MinTermLength: 2, OperatorTokens: []string{"!", "*"}, Stem: true})
	inputs := []string{"svd!", "Block Sparse Arrays", "julia> A * B", "", "Ünïcödé tëxt"}
	for _, in := range inputs {
		a := tk.TermStrings(in)
		b := tk.TermStrings(in)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Parity broken for %q: %v vs %v", in, a, b)
		}
	}
}

func TestIsOperator(t *testing.T) {
	tk := Default()
	if !tk.IsOperator("!") || !tk.IsOperator("*") {
		t.Error("Expected default operators to be recognized")
	}
	if tk.IsOperator("svd") || tk.IsOperator("") || tk.IsOperator("?") {
		t.Error("Unexpected operator match")
	}
}
