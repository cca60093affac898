package search

import (
	"strings"

	"github.com/gcbaptista/docsearch/index"
	"github.com/gcbaptista/docsearch/services"
)

// recordFilter restricts candidates by category and page. An empty set
// imposes no restriction. Categories compare case-insensitively, pages
// exactly.
type recordFilter struct {
	categories map[string]struct{}
	pages      map[string]struct{}
}

func newRecordFilter(query services.SearchQuery) recordFilter {
	var f recordFilter
	if len(query.Categories) > 0 {
		f.categories = make(map[string]struct{}, len(query.Categories))
		for _, c := range query.Categories {
			f.categories[strings.ToLower(c)] = struct{}{}
		}
	}
	if len(query.Pages) > 0 {
		f.pages = make(map[string]struct{}, len(query.Pages))
		for _, p := range query.Pages {
			f.pages[p] = struct{}{}
		}
	}
	return f
}

func (f recordFilter) empty() bool {
	return f.categories == nil && f.pages == nil
}

// allows checks if a record passes the filter
func (f recordFilter) allows(idx *index.Index, docID uint32) bool {
	if f.empty() {
		return true
	}
	rec, ok := idx.Record(docID)
	if !ok {
		return false
	}
	if f.categories != nil {
		if _, ok := f.categories[strings.ToLower(string(rec.Category))]; !ok {
			return false
		}
	}
	if f.pages != nil {
		if _, ok := f.pages[rec.Page]; !ok {
			return false
		}
	}
	return true
}
