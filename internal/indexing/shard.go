package indexing

import (
	"context"

	"github.com/gcbaptista/docsearch/index"
	"github.com/gcbaptista/docsearch/internal/tokenizer"
	"github.com/gcbaptista/docsearch/model"
)

const cancelCheckInterval = 256

// rowRange is a half-open range of table rows handled by one shard.
type rowRange struct {
	start, end int
}

// splitShards cuts n rows into at most shards contiguous ranges of nearly
// equal size.
func splitShards(n, shards int) []rowRange {
	if shards < 1 {
		shards = 1
	}
	if shards > n {
		shards = n
	}
	ranges := make([]rowRange, 0, shards)
	size, rem := n/shards, n%shards
	start := 0
	for i := 0; i < shards; i++ {
		end := start + size
		if i < rem {
			end++
		}
		ranges = append(ranges, rowRange{start: start, end: end})
		start = end
	}
	return ranges
}

// partialIndex is the dictionary produced by one shard.
type partialIndex struct {
	terms   map[string]index.PostingList
	lengths map[int]index.FieldLengths // table row -> field lengths
}

func newPartialIndex() *partialIndex {
	return &partialIndex{
		terms:   make(map[string]index.PostingList),
		lengths: make(map[int]index.FieldLengths),
	}
}

// mergePartials combines two partial dictionaries. Shards cover disjoint
// rows, so no posting is ever overwritten; list order is restored by
// index.Assemble. The merge is therefore associative and commutative.
func mergePartials(a, b *partialIndex) *partialIndex {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	out := newPartialIndex()
	for _, p := range []*partialIndex{a, b} {
		for term, pl := range p.terms {
			out.terms[term] = append(out.terms[term], pl...)
		}
		for row, fl := range p.lengths {
			out.lengths[row] = fl
		}
	}
	return out
}

// processShard tokenizes the rows of one shard.
func processShard(ctx context.Context, tk *tokenizer.Tokenizer, records []model.Record, r rowRange, baseID uint32) (*partialIndex, error) {
	p := newPartialIndex()
	for row := r.start; row < r.end; row++ {
		if (row-r.start)%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		docID := baseID + uint32(row) // #nosec G115 -- rows are bounded by the reserved id range
		rec := records[row]
		var lengths index.FieldLengths
		for _, field := range index.Fields {
			lengths[field] = addField(p, tk, docID, field, fieldText(rec, field))
		}
		p.lengths[row] = lengths
	}
	return p, nil
}

// addField appends the postings of one field and returns its token count.
func addField(p *partialIndex, tk *tokenizer.Tokenizer, docID uint32, field index.Field, text string) int {
	if text == "" {
		return 0
	}

	postings := make(map[string]*index.Posting)
	var order []string
	length := 0
	for tok := range tk.Terms(text) {
		if tok.Position+1 > length {
			length = tok.Position + 1
		}
		posting, ok := postings[tok.Term]
		if !ok {
			posting = &index.Posting{DocID: docID, Field: field}
			postings[tok.Term] = posting
			order = append(order, tok.Term)
		}
		posting.Frequency++
		// camel-case parts can repeat a term at one position
		if n := len(posting.Positions); n == 0 || posting.Positions[n-1] != tok.Position {
			posting.Positions = append(posting.Positions, tok.Position)
		}
	}

	for _, term := range order {
		p.terms[term] = append(p.terms[term], *postings[term])
	}
	return length
}

func fieldText(rec model.Record, field index.Field) string {
	switch field {
	case index.FieldTitle:
		return rec.Title
	case index.FieldText:
		return rec.Text
	default:
		return ""
	}
}
