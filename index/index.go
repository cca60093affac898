package index

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"
	"time"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/internal/tokenizer"
	"github.com/gcbaptista/docsearch/model"
	"github.com/gcbaptista/docsearch/store"
)

// Index is an immutable snapshot built from one version of a record table.
// After Assemble returns, nothing in it is modified, so any number of
// queries may read it concurrently without locks.
type Index struct {
	Name       string
	Generation uint64
	Settings   *config.IndexSettings // Snapshot of the settings used to build the index
	Dict       *Dictionary
	Postings   []PostingList // Indexed by dictionary ordinal
	DocFreqs   []int         // Records containing the term in any field, by ordinal
	Records    *store.RecordStore
	DocLengths []FieldLengths // Indexed by table row
	AvgLengths [NumFields]float64
	Skipped    int // Malformed rows dropped during ingestion
	BuiltAt    time.Time

	tokenizer *tokenizer.Tokenizer
}

// gobIndexData is a helper struct for Gob encoding/decoding Index data.
// It excludes the tokenizer, which is rebuilt from the settings.
type gobIndexData struct {
	Name       string
	Generation uint64
	Settings   *config.IndexSettings
	Dict       *Dictionary
	Postings   []PostingList
	DocFreqs   []int
	Records    *store.RecordStore
	DocLengths []FieldLengths
	AvgLengths [NumFields]float64
	Skipped    int
	BuiltAt    time.Time
}

// Assemble turns merged term postings into an index. Posting lists are
// re-sorted here, so callers may pass them in any order.
func Assemble(name string, settings *config.IndexSettings, records *store.RecordStore, terms map[string]PostingList, lengths []FieldLengths) (*Index, error) {
	if len(lengths) != records.Len() {
		return nil, fmt.Errorf("field lengths for %d records, expected %d", len(lengths), records.Len())
	}

	keys := make([]string, 0, len(terms))
	for term := range terms {
		keys = append(keys, term)
	}
	sort.Strings(keys)

	dict, err := BuildDictionary(keys)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		Name:       name,
		Generation: NextGeneration(),
		Settings:   settings.Clone(),
		Dict:       dict,
		Postings:   make([]PostingList, len(keys)),
		DocFreqs:   make([]int, len(keys)),
		Records:    records,
		DocLengths: lengths,
		BuiltAt:    time.Now(),
	}
	for ord, term := range keys {
		pl := terms[term]
		pl.Sort()
		idx.Postings[ord] = pl
		idx.DocFreqs[ord] = pl.DocCount()
	}

	var totals [NumFields]int
	for _, fl := range lengths {
		for f := range totals {
			totals[f] += fl[f]
		}
	}
	if n := len(lengths); n > 0 {
		for f := range totals {
			idx.AvgLengths[f] = float64(totals[f]) / float64(n)
		}
	}

	idx.tokenizer = tokenizer.FromSettings(idx.Settings)
	return idx, nil
}

// WithSettings returns a new snapshot that shares all postings with idx
// and applies settings at query time. The tokenizer is kept, so settings
// that change tokenization need a rebuild instead.
func (idx *Index) WithSettings(settings *config.IndexSettings) *Index {
	c := *idx
	c.Settings = settings.Clone()
	c.Generation = NextGeneration()
	return &c
}

// Tokenizer returns the tokenizer the index was built with. Queries must
// use it so that index-time and query-time terms agree.
func (idx *Index) Tokenizer() *tokenizer.Tokenizer {
	return idx.tokenizer
}

// Lookup returns the ordinal of an exact term.
func (idx *Index) Lookup(term string) (uint64, bool) {
	return idx.Dict.Lookup(term)
}

// Term returns the posting list of an exact term.
func (idx *Index) Term(term string) (PostingList, bool) {
	ord, ok := idx.Dict.Lookup(term)
	if !ok {
		return nil, false
	}
	return idx.Postings[ord], true
}

// PostingsAt returns the posting list for a dictionary ordinal.
func (idx *Index) PostingsAt(ord uint64) PostingList {
	return idx.Postings[ord]
}

// DocFreqAt returns the document frequency for a dictionary ordinal.
func (idx *Index) DocFreqAt(ord uint64) int {
	return idx.DocFreqs[ord]
}

// ExpandPrefix returns up to limit dictionary terms that start with prefix,
// in ascending order. A limit <= 0 means no cap.
func (idx *Index) ExpandPrefix(prefix string, limit int) []string {
	var out []string
	for term := range idx.Dict.PrefixScan(prefix) {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, term)
	}
	return out
}

// NumDocs returns the number of indexed records.
func (idx *Index) NumDocs() int {
	return idx.Records.Len()
}

// TermCount returns the number of distinct terms.
func (idx *Index) TermCount() int {
	return idx.Dict.Len()
}

// Record returns the record for a doc id.
func (idx *Index) Record(docID uint32) (model.Record, bool) {
	return idx.Records.Get(docID)
}

// FieldLength returns the token count of a field of a record.
func (idx *Index) FieldLength(docID uint32, field Field) int {
	row, ok := idx.Records.Row(docID)
	if !ok {
		return 0
	}
	return idx.DocLengths[row][field]
}

// AvgFieldLength returns the mean token count of a field across records.
func (idx *Index) AvgFieldLength(field Field) float64 {
	return idx.AvgLengths[field]
}

// FieldWeight returns the configured weight of a field.
func (idx *Index) FieldWeight(field Field) float64 {
	switch field {
	case FieldTitle:
		return idx.Settings.TitleWeight
	case FieldText:
		return idx.Settings.TextWeight
	default:
		return 0
	}
}

// GobEncode implements the gob.GobEncoder interface for Index.
func (idx *Index) GobEncode() ([]byte, error) {
	dataToEncode := gobIndexData{
		Name:       idx.Name,
		Generation: idx.Generation,
		Settings:   idx.Settings,
		Dict:       idx.Dict,
		Postings:   idx.Postings,
		DocFreqs:   idx.DocFreqs,
		Records:    idx.Records,
		DocLengths: idx.DocLengths,
		AvgLengths: idx.AvgLengths,
		Skipped:    idx.Skipped,
		BuiltAt:    idx.BuiltAt,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(dataToEncode); err != nil {
		return nil, fmt.Errorf("failed to gob encode index data: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface for Index.
// Loaded ids and generations are registered with the process counters so
// later builds never reuse them.
func (idx *Index) GobDecode(data []byte) error {
	decodedData := gobIndexData{}
	if err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&decodedData); err != nil {
		return fmt.Errorf("failed to gob decode index data: %w", err)
	}

	idx.Name = decodedData.Name
	idx.Generation = decodedData.Generation
	idx.Settings = decodedData.Settings
	idx.Dict = decodedData.Dict
	idx.Postings = decodedData.Postings
	idx.DocFreqs = decodedData.DocFreqs
	idx.Records = decodedData.Records
	idx.DocLengths = decodedData.DocLengths
	idx.AvgLengths = decodedData.AvgLengths
	idx.Skipped = decodedData.Skipped
	idx.BuiltAt = decodedData.BuiltAt

	if idx.Settings == nil {
		idx.Settings = config.NewDefaultSettings(idx.Name)
	}
	if idx.Dict == nil {
		idx.Dict = &Dictionary{}
	}
	if idx.Records == nil {
		idx.Records = store.NewRecordStore(0, nil)
	}

	ObserveDocID(idx.Records.MaxDocID())
	ObserveGeneration(idx.Generation)
	idx.tokenizer = tokenizer.FromSettings(idx.Settings)
	return nil
}
