package search

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/postdeck/retrieval/internal/domain"
	"github.com/postdeck/retrieval/internal/embedtext"
)

// DefaultWindow bounds how many documents the ranker loads per query. The
// per-term regexp scan is O(terms x documents x text length); raising this
// bound without revisiting that scan will not scale.
const DefaultWindow = 100

const defaultOwnerField = "ownerId"

// Weights hold the lexical scoring constants. The values are empirical and
// carried as-is from production tuning; change them only against a relevance
// test set.
type Weights struct {
	Coverage         float64 // weight of the matched-terms ratio
	FreqCap          float64 // cap on the term-frequency component
	ExactBonus       float64 // added when the full query appears verbatim
	LengthPenaltyCap float64 // cap on the long-document penalty
	Floor            float64 // minimum score of any included document
}

// DefaultWeights returns the production scoring constants.
func DefaultWeights() Weights {
	return Weights{
		Coverage:         0.4,
		FreqCap:          0.4,
		ExactBonus:       0.3,
		LengthPenaltyCap: 0.15,
		Floor:            0.05,
	}
}

// NewWeights builds scoring weights from configuration, keeping the default
// for any non-positive value.
func NewWeights(coverage, freqCap, exactBonus, lengthPenaltyCap, floor float64) Weights {
	w := DefaultWeights()
	if coverage > 0 {
		w.Coverage = coverage
	}
	if freqCap > 0 {
		w.FreqCap = freqCap
	}
	if exactBonus > 0 {
		w.ExactBonus = exactBonus
	}
	if lengthPenaltyCap > 0 {
		w.LengthPenaltyCap = lengthPenaltyCap
	}
	if floor > 0 {
		w.Floor = floor
	}
	return w
}

// ranker produces a relevance ranking without any embedding or vector
// infrastructure, purely from the canonical document text.
type ranker struct {
	weights    Weights
	window     int
	ownerField string
}

func newRanker(w Weights, window int, ownerField string) *ranker {
	if window <= 0 {
		window = DefaultWindow
	}
	if ownerField == "" {
		ownerField = defaultOwnerField
	}
	return &ranker{weights: w, window: window, ownerField: ownerField}
}

// rank loads a bounded window of in-scope documents, scores each against the
// query, and returns the topK best. Scoring never fails; only store access
// errors surface.
func (r *ranker) rank(
	ctx context.Context, store domain.DocumentStore,
	scope domain.Scope, query string, topK int,
) ([]domain.Hit, error) {
	filter := map[string]string{}
	if scope.Tenanted() {
		filter[r.ownerField] = scope.TenantID()
	}

	docs, err := store.Query(ctx, scope.Collection(), filter, r.window)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", scope.Collection(), err)
	}

	q := strings.ToLower(strings.TrimSpace(query))
	terms := queryTerms(q)
	if len(terms) == 0 {
		return []domain.Hit{}, nil
	}

	// One compiled pattern per term per query, reused across the window.
	patterns := make([]*regexp.Regexp, len(terms))
	for i, t := range terms {
		patterns[i] = regexp.MustCompile(regexp.QuoteMeta(t))
	}

	hits := make([]domain.Hit, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		text := strings.ToLower(embedtext.ForCollection(scope.Collection(), doc.Fields()))
		score, included := r.score(text, q, terms, patterns)
		if !included {
			continue
		}
		hits = append(hits, domain.Hit{ID: doc.ID(), Score: score, Fields: doc.Fields()})
	}

	// Stable: ties keep the store's natural fetch order.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// score computes the lexical relevance of one candidate text. included is
// false when no query term appears in the text at all.
func (r *ranker) score(
	text, query string, terms []string, patterns []*regexp.Regexp,
) (score float64, included bool) {
	matched := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			matched++
		}
	}
	if matched == 0 {
		return 0, false
	}

	coverage := float64(matched) / float64(len(terms))

	occurrences := 0
	for _, p := range patterns {
		occurrences += len(p.FindAllStringIndex(text, -1))
	}
	wordCount := len(strings.Fields(text))
	freq := min(r.weights.FreqCap, float64(occurrences)/float64(wordCount+5))

	bonus := 0.0
	if strings.Contains(text, query) {
		bonus = r.weights.ExactBonus
	}

	penalty := min(r.weights.LengthPenaltyCap, float64(len(text))/10000)

	score = coverage*r.weights.Coverage + freq + bonus - penalty
	return min(1.0, max(r.weights.Floor, score)), true
}

// queryTerms tokenizes a lowercased query, dropping single-character terms.
// When nothing survives, the whole query becomes the single term, so short
// exact queries still match.
func queryTerms(q string) []string {
	var terms []string
	for _, t := range strings.Fields(q) {
		if len(t) > 1 {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 && q != "" {
		terms = []string{q}
	}
	return terms
}
