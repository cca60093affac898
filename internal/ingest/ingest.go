// Package ingest turns loosely typed record tables into validated records.
// Validation happens exactly once, here; everything downstream works with
// model.Record values.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	internalErrors "github.com/gcbaptista/docsearch/internal/errors"
	"github.com/gcbaptista/docsearch/model"
)

const maxSampleErrors = 5

// Report summarizes one validation pass.
type Report struct {
	Accepted int      `json:"accepted"`
	Skipped  int      `json:"skipped"`
	Samples  []string `json:"samples,omitempty"` // First few malformed-row errors
}

// Validate converts raw rows into records. Rows without a non-empty string
// location are malformed: they are skipped with a warning and the rest of
// the table is kept. Row order is preserved.
func Validate(rows []model.RawRecord, logger *logrus.Entry) ([]model.Record, Report) {
	if logger == nil {
		logger = logrus.WithField("component", "ingest")
	}

	records := make([]model.Record, 0, len(rows))
	var report Report
	for i, raw := range rows {
		rec, err := validateRow(i, raw)
		if err != nil {
			report.Skipped++
			if len(report.Samples) < maxSampleErrors {
				report.Samples = append(report.Samples, err.Error())
			}
			logger.WithFields(logrus.Fields{
				"row":   i,
				"error": err.Error(),
			}).Warn("Skipping malformed record")
			continue
		}
		records = append(records, rec)
	}
	report.Accepted = len(records)
	return records, report
}

func validateRow(row int, raw model.RawRecord) (model.Record, error) {
	if raw == nil {
		return model.Record{}, internalErrors.NewMalformedRecordError(row, "row is not an object")
	}
	location, ok := raw.GetLocation()
	if !ok {
		return model.Record{}, internalErrors.NewMalformedRecordError(row, "missing or empty location")
	}
	return model.Record{
		Location: location,
		Page:     raw.GetString("page"),
		Title:    raw.GetString("title"),
		Text:     raw.GetString("text"),
		Category: model.Category(raw.GetString("category")),
	}, nil
}

// LoadFile reads a record table from disk. See Decode for accepted formats.
func LoadFile(path string) ([]model.RawRecord, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("reading record table %s: %w", path, err)
	}
	rows, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding record table %s: %w", path, err)
	}
	return rows, nil
}

// LoadTable reads and decodes a record table from r.
func LoadTable(r io.Reader) ([]model.RawRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading record table: %w", err)
	}
	return Decode(data)
}

// Decode accepts three layouts:
//
//	[{...}, {...}]                              bare JSON array
//	{"docs": [{...}]}                           object with a docs array
//	var documenterSearchIndex = {"docs": [...]} generated search_index.js
//
// Array elements that are not JSON objects decode to nil rows, which
// Validate reports as malformed.
func Decode(data []byte) ([]model.RawRecord, error) {
	payload := stripScriptWrapper(data)
	if len(payload) == 0 {
		return nil, internalErrors.NewValidationError("table", "no JSON payload found")
	}

	var elements []json.RawMessage
	if payload[0] == '[' {
		if err := json.Unmarshal(payload, &elements); err != nil {
			return nil, fmt.Errorf("invalid record array: %w", err)
		}
	} else {
		var wrapper struct {
			Docs []json.RawMessage `json:"docs"`
		}
		if err := json.Unmarshal(payload, &wrapper); err != nil {
			return nil, fmt.Errorf("invalid record table object: %w", err)
		}
		elements = wrapper.Docs
	}

	rows := make([]model.RawRecord, len(elements))
	for i, element := range elements {
		var row model.RawRecord
		if err := json.Unmarshal(element, &row); err != nil {
			continue
		}
		rows[i] = row
	}
	return rows, nil
}

// stripScriptWrapper removes a leading "var x =" assignment and a trailing
// semicolon, leaving the JSON value.
func stripScriptWrapper(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if data[0] != '[' && data[0] != '{' {
		start := bytes.IndexAny(data, "[{")
		if start < 0 {
			return nil
		}
		data = data[start:]
	}
	data = bytes.TrimSpace(bytes.TrimSuffix(bytes.TrimSpace(data), []byte(";")))
	return data
}
