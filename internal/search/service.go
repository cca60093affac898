package search

import (
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/index"
	"github.com/gcbaptista/docsearch/internal/snippet"
	"github.com/gcbaptista/docsearch/internal/tokenizer"
	"github.com/gcbaptista/docsearch/internal/typoutil"
	"github.com/gcbaptista/docsearch/model"
	"github.com/gcbaptista/docsearch/services"
)

// Service implements the search logic for a single index snapshot.
// It fulfills the services.Searcher interface and is safe for concurrent
// use: the snapshot is immutable and the typo finder synchronizes its cache.
type Service struct {
	idx        *index.Index
	settings   *config.IndexSettings
	tokenizer  *tokenizer.Tokenizer
	scorer     *Scorer
	typoFinder *typoutil.Finder
	snippets   *snippet.Extractor
	logger     *logrus.Entry
}

// NewService creates a new search Service over idx.
func NewService(idx *index.Index, logger *logrus.Entry) (*Service, error) {
	if idx == nil {
		return nil, fmt.Errorf("index cannot be nil")
	}
	if idx.Settings == nil {
		return nil, fmt.Errorf("index settings cannot be nil")
	}
	if logger == nil {
		logger = logrus.WithField("component", "search")
	}
	logger = logger.WithField("index", idx.Name)

	return &Service{
		idx:        idx,
		settings:   idx.Settings,
		tokenizer:  idx.Tokenizer(),
		scorer:     NewScorer(idx),
		typoFinder: typoutil.NewFinder(idx.Dict, logger),
		snippets:   snippet.NewExtractor(),
		logger:     logger,
	}, nil
}

// Index returns the snapshot the service searches.
func (s *Service) Index() *index.Index {
	return s.idx
}

// variant is one dictionary term standing in for a query term.
type variant struct {
	term   string
	ord    uint64
	factor float64
	kind   model.MatchType
}

// queryTerm is a tokenized query term with its dictionary variants.
type queryTerm struct {
	text     string
	position int
	variants []variant
}

// candidate accumulates the match state of one record.
type candidate struct {
	docID      uint32
	termScores []float64 // Best variant score per query term
	// phrasePositions[field][queryTerm] holds positions of variants that may
	// take part in a phrase: exact matches, plus prefix matches for the last term
	phrasePositions [index.NumFields][]map[int]struct{}
	matched         [index.NumFields]map[string]struct{}
	score           float64
}

// Search runs a query. An empty query or a limit <= 0 yields an empty,
// non-error result. A panic during the query is logged and reported as an
// empty result.
func (s *Service) Search(query services.SearchQuery) (result services.SearchResult, err error) {
	startTime := time.Now()
	queryID := uuid.New().String()
	result = s.emptyResult(queryID)

	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{
				"query":    query.Query,
				"query_id": queryID,
				"panic":    r,
			}).Error("Recovered from panic during search")
			result = s.emptyResult(queryID)
			err = nil
		}
		result.Took = time.Since(startTime).Milliseconds()
	}()

	if query.Limit <= 0 {
		return result, nil
	}

	terms := s.parseQuery(query.Query)
	if len(terms) == 0 {
		return result, nil
	}

	candidates := s.collectCandidates(terms, newRecordFilter(query))
	if len(candidates) == 0 {
		return result, nil
	}

	for _, c := range candidates {
		s.score(c, terms)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].docID < candidates[j].docID
	})

	result.Total = len(candidates)
	if len(candidates) > query.Limit {
		candidates = candidates[:query.Limit]
	}

	result.Hits = make([]model.QueryResult, 0, len(candidates))
	for _, c := range candidates {
		result.Hits = append(result.Hits, s.buildHit(c))
	}
	result.MatchType = bestMatchType(terms)
	return result, nil
}

func (s *Service) emptyResult(queryID string) services.SearchResult {
	return services.SearchResult{
		Hits:       []model.QueryResult{},
		QueryID:    queryID,
		Generation: s.idx.Generation,
		MatchType:  model.MatchTypeNoResult,
	}
}

// parseQuery tokenizes the query with the index tokenizer and resolves
// every term to its dictionary variants. Terms without any variant are
// kept: they still take part in phrase matching.
func (s *Service) parseQuery(raw string) []queryTerm {
	tokens := s.tokenizer.Tokenize(raw)
	terms := make([]queryTerm, 0, len(tokens))
	for _, tok := range tokens {
		terms = append(terms, queryTerm{
			text:     tok.Term,
			position: tok.Position,
			variants: s.expand(tok.Term),
		})
	}
	return terms
}

// expand looks up a query term. Exact and prefix variants come first;
// typo variants are only tried when neither matched.
func (s *Service) expand(term string) []variant {
	var variants []variant
	if ord, ok := s.idx.Lookup(term); ok {
		variants = append(variants, variant{term: term, ord: ord, factor: 1.0, kind: model.MatchTypeExact})
	}

	termLen := utf8.RuneCountInString(term)
	if termLen >= s.settings.PrefixThreshold {
		for _, expanded := range s.idx.ExpandPrefix(term, s.settings.MaxPrefixExpansions) {
			if expanded == term {
				continue
			}
			ord, _ := s.idx.Lookup(expanded)
			variants = append(variants, variant{term: expanded, ord: ord, factor: s.scorer.PrefixFactor(), kind: model.MatchTypePrefix})
		}
	}

	if len(variants) > 0 || !s.settings.TypoTolerance || s.tokenizer.IsOperator(term) {
		return variants
	}

	maxTypos := typoutil.AllowedTypos(termLen, s.settings.MinWordSizeFor1Typo, s.settings.MinWordSizeFor2Typos)
	for _, m := range s.typoFinder.Find(term, maxTypos, s.settings.MaxTypoExpansions) {
		ord, ok := s.idx.Lookup(m.Term)
		if !ok {
			continue
		}
		variants = append(variants, variant{term: m.Term, ord: ord, factor: TypoFactor(m.Distance), kind: model.MatchTypeTypo})
	}
	return variants
}

// collectCandidates unions the records of every variant (OR semantics)
// and returns the ones passing the filter, in doc-id order.
func (s *Service) collectCandidates(terms []queryTerm, filter recordFilter) []*candidate {
	union := roaring.New()
	for _, qt := range terms {
		for _, v := range qt.variants {
			docs := roaring.New()
			for _, p := range s.idx.PostingsAt(v.ord) {
				docs.Add(p.DocID)
			}
			union.Or(docs)
		}
	}

	candidates := make([]*candidate, 0, union.GetCardinality())
	it := union.Iterator()
	for it.HasNext() {
		docID := it.Next()
		if !filter.allows(s.idx, docID) {
			continue
		}
		c := &candidate{docID: docID, termScores: make([]float64, len(terms))}
		for f := range c.phrasePositions {
			c.phrasePositions[f] = make([]map[int]struct{}, len(terms))
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// score computes the final score of c: the sum over query terms of the
// best variant score, plus phrase bonuses, times the category boost.
//
// A variant is length-normalised against the tokens of its field that no
// query term matched plus its own occurrences. Occurrences of other matched
// terms are left out, so adding an occurrence of one matched term never
// shrinks the share of another.
func (s *Service) score(c *candidate, terms []queryTerm) {
	postings := make([][]index.PostingList, len(terms))
	var matchedPositions [index.NumFields]map[int]struct{}
	for i, qt := range terms {
		postings[i] = make([]index.PostingList, len(qt.variants))
		for j, v := range qt.variants {
			postings[i][j] = s.postingsFor(v.ord, c.docID)
			for _, p := range postings[i][j] {
				if matchedPositions[p.Field] == nil {
					matchedPositions[p.Field] = make(map[int]struct{})
				}
				for _, pos := range p.Positions {
					matchedPositions[p.Field][pos] = struct{}{}
				}
			}
		}
	}

	var unmatched [index.NumFields]int
	for _, field := range index.Fields {
		unmatched[field] = s.idx.FieldLength(c.docID, field) - len(matchedPositions[field])
		if unmatched[field] < 0 {
			unmatched[field] = 0
		}
	}

	last := len(terms) - 1
	for i, qt := range terms {
		best := 0.0
		for j, v := range qt.variants {
			if len(postings[i][j]) == 0 {
				continue
			}
			idf := s.scorer.IDF(s.idx.DocFreqAt(v.ord))
			variantScore := 0.0
			for _, p := range postings[i][j] {
				length := unmatched[p.Field] + len(p.Positions)
				variantScore += v.factor * s.scorer.FieldScore(idf, p.Frequency, length, p.Field)
				c.markMatched(p.Field, v.term)
				if v.kind == model.MatchTypeExact || (v.kind == model.MatchTypePrefix && i == last) {
					c.addPhrasePositions(p.Field, i, p.Positions)
				}
			}
			if variantScore > best {
				best = variantScore
			}
		}
		c.termScores[i] = best
	}

	total := 0.0
	for _, ts := range c.termScores {
		total += ts
	}
	for _, field := range index.Fields {
		if c.hasPhrase(field, terms) {
			total += s.scorer.PhraseBonus(field)
		}
	}
	if rec, ok := s.idx.Record(c.docID); ok {
		total *= s.scorer.CategoryBoost(string(rec.Category))
	}
	c.score = total
}

// postingsFor returns the postings of a term for one record, one per field.
func (s *Service) postingsFor(ord uint64, docID uint32) index.PostingList {
	pl := s.idx.PostingsAt(ord)
	i := sort.Search(len(pl), func(i int) bool { return pl[i].DocID >= docID })
	j := i
	for j < len(pl) && pl[j].DocID == docID {
		j++
	}
	return pl[i:j]
}

func (c *candidate) markMatched(field index.Field, term string) {
	if c.matched[field] == nil {
		c.matched[field] = make(map[string]struct{})
	}
	c.matched[field][term] = struct{}{}
}

func (c *candidate) addPhrasePositions(field index.Field, term int, positions []int) {
	set := c.phrasePositions[field][term]
	if set == nil {
		set = make(map[int]struct{}, len(positions))
		c.phrasePositions[field][term] = set
	}
	for _, p := range positions {
		set[p] = struct{}{}
	}
}

// hasPhrase reports whether the query terms occur in field at the same
// relative positions they have in the query.
func (c *candidate) hasPhrase(field index.Field, terms []queryTerm) bool {
	sets := c.phrasePositions[field]
	for _, set := range sets {
		if len(set) == 0 {
			return false
		}
	}
	for start := range sets[0] {
		ok := true
		for i := 1; i < len(terms); i++ {
			if _, found := sets[i][start+terms[i].position-terms[0].position]; !found {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// buildHit turns a scored candidate into a result with a snippet taken
// from the text field.
func (s *Service) buildHit(c *candidate) model.QueryResult {
	rec, _ := s.idx.Record(c.docID)

	hit := model.QueryResult{
		Location: rec.Location,
		Page:     rec.Page,
		Title:    rec.Title,
		Category: string(rec.Category),
		Score:    c.score,
	}

	hit.MatchedTerms = make(map[string][]string)
	for _, field := range index.Fields {
		if len(c.matched[field]) == 0 {
			continue
		}
		terms := make([]string, 0, len(c.matched[field]))
		for term := range c.matched[field] {
			terms = append(terms, term)
		}
		sort.Strings(terms)
		hit.MatchedTerms[field.String()] = terms
	}

	text := snippet.Collapse(rec.Text)
	var spans []snippet.Span
	if matched := c.matched[index.FieldText]; len(matched) > 0 {
		for tok := range s.tokenizer.Terms(text) {
			if _, ok := matched[tok.Term]; ok {
				spans = append(spans, snippet.Span{Start: tok.Start, End: tok.End})
			}
		}
	}
	hit.Snippet = s.snippets.Extract(text, spans, s.settings.SnippetWindow)
	return hit
}

// bestMatchType reports the strongest kind of match any query term found.
func bestMatchType(terms []queryTerm) model.MatchType {
	found := model.MatchTypeNoResult
	for _, qt := range terms {
		for _, v := range qt.variants {
			switch {
			case v.kind == model.MatchTypeExact:
				return model.MatchTypeExact
			case v.kind == model.MatchTypePrefix:
				found = model.MatchTypePrefix
			case found == model.MatchTypeNoResult:
				found = model.MatchTypeTypo
			}
		}
	}
	return found
}
