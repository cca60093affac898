package index

import "sort"

// Field identifies which part of a record a term occurrence came from.
type Field uint8

const (
	FieldTitle Field = iota
	FieldText

	NumFields = 2
)

// Fields lists every indexed field in a stable order.
var Fields = [NumFields]Field{FieldTitle, FieldText}

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldText:
		return "text"
	default:
		return "unknown"
	}
}

// FieldLengths holds the token count of each field of one record.
type FieldLengths [NumFields]int

// Posting records the occurrences of one term in one field of one record.
type Posting struct {
	DocID     uint32 // Internal numeric ID for efficiency
	Field     Field  // The field where the term was found
	Frequency int    // Occurrences of the term in this field
	Positions []int  // Token positions, ascending
}

// PostingList is sorted by DocID ascending, then Field.
type PostingList []Posting

// Sort restores the canonical order. Merging partial lists from parallel
// shards only needs a final Sort, which makes the merge order-independent.
func (pl PostingList) Sort() {
	sort.Slice(pl, func(i, j int) bool {
		if pl[i].DocID != pl[j].DocID {
			return pl[i].DocID < pl[j].DocID
		}
		return pl[i].Field < pl[j].Field
	})
}

// DocCount returns the number of distinct records in a sorted list.
func (pl PostingList) DocCount() int {
	count := 0
	for i := range pl {
		if i == 0 || pl[i].DocID != pl[i-1].DocID {
			count++
		}
	}
	return count
}
