package store

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/gcbaptista/docsearch/model"
)

// RecordStore maps internal doc ids to records. Ids are a contiguous range
// starting at BaseID, in table order, so the store is a slice rather than a
// map. It is never mutated after a build.
type RecordStore struct {
	BaseID  uint32
	Records []model.Record
}

// gobRecordStoreData is a helper struct for Gob encoding/decoding RecordStore data.
type gobRecordStoreData struct {
	BaseID  uint32
	Records []model.Record
}

// NewRecordStore creates a store for records whose ids start at baseID.
func NewRecordStore(baseID uint32, records []model.Record) *RecordStore {
	return &RecordStore{BaseID: baseID, Records: records}
}

// Get returns the record with the given doc id.
func (rs *RecordStore) Get(docID uint32) (model.Record, bool) {
	row, ok := rs.Row(docID)
	if !ok {
		return model.Record{}, false
	}
	return rs.Records[row], true
}

// Row converts a doc id to its table row.
func (rs *RecordStore) Row(docID uint32) (int, bool) {
	if docID < rs.BaseID {
		return 0, false
	}
	row := int(docID - rs.BaseID)
	if row >= len(rs.Records) {
		return 0, false
	}
	return row, true
}

// DocID converts a table row to its doc id.
func (rs *RecordStore) DocID(row int) uint32 {
	return rs.BaseID + uint32(row) // #nosec G115 -- rows are bounded by the reserved id range
}

// Len returns the number of records.
func (rs *RecordStore) Len() int {
	return len(rs.Records)
}

// MaxDocID returns the last id in the store's range (BaseID when empty).
func (rs *RecordStore) MaxDocID() uint32 {
	if len(rs.Records) == 0 {
		return rs.BaseID
	}
	return rs.DocID(len(rs.Records) - 1)
}

// GobEncode implements the gob.GobEncoder interface for RecordStore.
func (rs *RecordStore) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)
	if err := encoder.Encode(gobRecordStoreData{BaseID: rs.BaseID, Records: rs.Records}); err != nil {
		return nil, fmt.Errorf("failed to gob encode record store data: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface for RecordStore.
func (rs *RecordStore) GobDecode(data []byte) error {
	decodedData := gobRecordStoreData{}

	decoder := gob.NewDecoder(bytes.NewBuffer(data))
	if err := decoder.Decode(&decodedData); err != nil {
		return fmt.Errorf("failed to gob decode record store data: %w", err)
	}

	rs.BaseID = decodedData.BaseID
	rs.Records = decodedData.Records
	if rs.Records == nil {
		rs.Records = []model.Record{}
	}
	return nil
}
