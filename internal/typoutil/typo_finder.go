package typoutil

import (
	"iter"
	"sort"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const (
	defaultTimeLimit    = 100 * time.Millisecond
	defaultMaxCacheSize = 1000
)

// TermSource yields every dictionary term in a stable order.
type TermSource interface {
	All() iter.Seq2[string, uint64]
}

// Match is a dictionary term within the allowed distance of a query term.
type Match struct {
	Term     string
	Distance int
}

// Finder provides typo tolerance over one immutable term dictionary, with
// caching and a time limit per lookup. Build a new Finder per snapshot.
type Finder struct {
	source    TermSource
	timeLimit time.Duration
	logger    *logrus.Entry

	// Key: term + maxDistance, Value: matches sorted by distance then term
	cache        map[string][]Match
	cacheMu      sync.RWMutex
	maxCacheSize int
}

// NewFinder creates a finder over source. A nil logger uses the standard logger.
func NewFinder(source TermSource, logger *logrus.Entry) *Finder {
	if logger == nil {
		logger = logrus.WithField("component", "typo_finder")
	}
	return &Finder{
		source:       source,
		timeLimit:    defaultTimeLimit,
		logger:       logger,
		cache:        make(map[string][]Match),
		maxCacheSize: defaultMaxCacheSize,
	}
}

// Find returns up to maxResults dictionary terms at distance 1..maxDistance
// from term, closest first, ties broken by term. maxResults <= 0 means no cap.
func (f *Finder) Find(term string, maxDistance int, maxResults int) []Match {
	if maxDistance <= 0 || term == "" || f.source == nil {
		return []Match{}
	}

	cacheKey := term + "\x00" + strconv.Itoa(maxDistance)
	f.cacheMu.RLock()
	cached, exists := f.cache[cacheKey]
	f.cacheMu.RUnlock()
	if !exists {
		cached = f.scan(term, maxDistance)
		f.cacheMu.Lock()
		if len(f.cache) < f.maxCacheSize {
			f.cache[cacheKey] = cached
		}
		f.cacheMu.Unlock()
	}

	if maxResults > 0 && len(cached) > maxResults {
		return cached[:maxResults]
	}
	return cached
}

// scan checks every dictionary term, stopping early only at the time limit.
func (f *Finder) scan(term string, maxDistance int) []Match {
	termLen := utf8.RuneCountInString(term)
	matches := make([]Match, 0)
	startTime := time.Now()
	checked := 0

	for indexedTerm := range f.source.All() {
		checked++
		if checked%256 == 0 && time.Since(startTime) >= f.timeLimit {
			f.logger.WithFields(logrus.Fields{
				"term":     term,
				"distance": maxDistance,
				"found":    len(matches),
				"checked":  checked,
			}).Warn("Typo search time limit reached")
			break
		}

		if indexedTerm == term {
			continue
		}

		// Length-based early filtering: if length difference > maxDistance, skip
		lengthDiff := utf8.RuneCountInString(indexedTerm) - termLen
		if lengthDiff < 0 {
			lengthDiff = -lengthDiff
		}
		if lengthDiff > maxDistance {
			continue
		}

		if dist := DistanceWithLimit(term, indexedTerm, maxDistance); dist > 0 && dist <= maxDistance {
			matches = append(matches, Match{Term: indexedTerm, Distance: dist})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Term < matches[j].Term
	})
	return matches
}

// GenerateTypos finds terms from a list that are within maxDistance of term.
func GenerateTypos(term string, allIndexedTerms []string, maxDistance int) []string {
	matches := NewFinder(sliceSource(allIndexedTerms), nil).Find(term, maxDistance, 0)
	typos := make([]string, 0, len(matches)) // Initialize as empty slice, not nil
	for _, m := range matches {
		typos = append(typos, m.Term)
	}
	return typos
}

type sliceSource []string

func (s sliceSource) All() iter.Seq2[string, uint64] {
	return func(yield func(string, uint64) bool) {
		for i, term := range s {
			if !yield(term, uint64(i)) {
				return
			}
		}
	}
}
