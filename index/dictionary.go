package index

import (
	"bytes"
	"fmt"
	"iter"

	"github.com/blevesearch/vellum"
)

// Dictionary is the sorted term dictionary of an index, stored as a vellum
// FST mapping each term to the ordinal of its posting list. Ordered
// iteration makes prefix expansion a range scan.
type Dictionary struct {
	fst  *vellum.FST
	data []byte
}

// BuildDictionary builds a dictionary from terms in strictly ascending byte
// order. Term i gets ordinal i.
func BuildDictionary(terms []string) (*Dictionary, error) {
	if len(terms) == 0 {
		return &Dictionary{}, nil
	}

	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create dictionary builder: %w", err)
	}
	for i, term := range terms {
		if err := builder.Insert([]byte(term), uint64(i)); err != nil {
			return nil, fmt.Errorf("failed to insert term %q: %w", term, err)
		}
	}
	if err := builder.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish dictionary: %w", err)
	}
	return LoadDictionary(buf.Bytes())
}

// LoadDictionary opens a dictionary from its serialized form.
func LoadDictionary(data []byte) (*Dictionary, error) {
	if len(data) == 0 {
		return &Dictionary{}, nil
	}
	fst, err := vellum.Load(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load dictionary: %w", err)
	}
	return &Dictionary{fst: fst, data: data}, nil
}

// Len returns the number of terms.
func (d *Dictionary) Len() int {
	if d.fst == nil {
		return 0
	}
	return d.fst.Len()
}

// Lookup returns the ordinal of an exact term.
func (d *Dictionary) Lookup(term string) (uint64, bool) {
	if d.fst == nil {
		return 0, false
	}
	ord, exists, err := d.fst.Get([]byte(term))
	if err != nil || !exists {
		return 0, false
	}
	return ord, true
}

// PrefixScan yields terms that start with prefix, in ascending order, with
// their ordinals. The term equal to prefix is included when present.
func (d *Dictionary) PrefixScan(prefix string) iter.Seq2[string, uint64] {
	return d.scan([]byte(prefix), prefixSuccessor([]byte(prefix)))
}

// All yields every term in ascending order.
func (d *Dictionary) All() iter.Seq2[string, uint64] {
	return d.scan(nil, nil)
}

func (d *Dictionary) scan(start, end []byte) iter.Seq2[string, uint64] {
	return func(yield func(string, uint64) bool) {
		if d.fst == nil {
			return
		}
		// vellum.ErrIteratorDone ends the loop, as does any other error
		itr, err := d.fst.Iterator(start, end)
		for err == nil {
			key, ord := itr.Current()
			if !yield(string(key), ord) {
				return
			}
			err = itr.Next()
		}
	}
}

// Bytes returns the serialized FST.
func (d *Dictionary) Bytes() []byte {
	return d.data
}

// GobEncode implements the gob.GobEncoder interface for Dictionary.
func (d *Dictionary) GobEncode() ([]byte, error) {
	return append([]byte{}, d.data...), nil
}

// GobDecode implements the gob.GobDecoder interface for Dictionary.
func (d *Dictionary) GobDecode(data []byte) error {
	loaded, err := LoadDictionary(data)
	if err != nil {
		return err
	}
	*d = *loaded
	return nil
}

// prefixSuccessor returns the smallest key greater than every key with the
// given prefix, or nil when no such bound exists.
func prefixSuccessor(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
