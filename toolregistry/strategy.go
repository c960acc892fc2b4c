package toolregistry

import (
	"math"
	"regexp"
	"strings"
)

// Strategy ranks deferred tool declarations against a query and returns the
// top K, per §4.2's pluggable search strategy design note ("Registry search
// strategy must be swappable without touching engine code").
type Strategy interface {
	TopK(query string, candidates []*Declaration, k int) []*Declaration
}

// StrategyFunc adapts a plain function to Strategy, for callers who want a
// fully custom ranking function without implementing the interface.
type StrategyFunc func(query string, candidates []*Declaration, k int) []*Declaration

// TopK implements Strategy.
func (f StrategyFunc) TopK(query string, candidates []*Declaration, k int) []*Declaration {
	return f(query, candidates, k)
}

func truncate(candidates []*Declaration, k int) []*Declaration {
	if k <= 0 || k >= len(candidates) {
		return candidates
	}
	return candidates[:k]
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func corpusText(d *Declaration) string {
	return d.Name + " " + d.Description
}

// BM25Params configures the LexicalStrategy's term-frequency saturation
// (k1) and length-normalization (b) parameters.
type BM25Params struct {
	K1 float64
	B  float64
}

// DefaultBM25Params returns the conventional Okapi BM25 defaults (§4.2).
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.2, B: 0.75}
}

// LexicalStrategy ranks candidates using Okapi BM25 over each tool's
// name+description text.
type LexicalStrategy struct {
	params BM25Params
}

// NewLexicalStrategy returns a LexicalStrategy with the given BM25
// parameters.
func NewLexicalStrategy(params BM25Params) *LexicalStrategy {
	return &LexicalStrategy{params: params}
}

// TopK implements Strategy using BM25 scoring.
func (s *LexicalStrategy) TopK(query string, candidates []*Declaration, k int) []*Declaration {
	qTerms := tokenize(query)
	if len(qTerms) == 0 || len(candidates) == 0 {
		return truncate(candidates, k)
	}

	docs := make([][]string, len(candidates))
	var totalLen float64
	df := make(map[string]int) // document frequency per term
	for i, d := range candidates {
		toks := tokenize(corpusText(d))
		docs[i] = toks
		totalLen += float64(len(toks))
		seen := make(map[string]bool)
		for _, t := range toks {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}
	avgLen := totalLen / float64(len(candidates))
	n := float64(len(candidates))

	score := make(map[string]float64, len(candidates))
	for i, d := range candidates {
		tf := make(map[string]int)
		for _, t := range docs[i] {
			tf[t]++
		}
		docLen := float64(len(docs[i]))
		var sum float64
		for _, qt := range qTerms {
			f := float64(tf[qt])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[qt])+0.5)/(float64(df[qt])+0.5))
			norm := f * (s.params.K1 + 1)
			denom := f + s.params.K1*(1-s.params.B+s.params.B*docLen/avgLen)
			sum += idf * norm / denom
		}
		score[d.Name] = sum
	}

	ranked := make([]*Declaration, len(candidates))
	copy(ranked, candidates)
	sortByScoreThenOrder(ranked, score)
	return truncate(ranked, k)
}

// Embedder produces a dense vector embedding for a piece of text. Callers
// wire a real embedding model; tests can use a deterministic stub.
type Embedder interface {
	Embed(text string) ([]float64, error)
}

// SemanticStrategy ranks candidates by cosine similarity between the
// query's embedding and each tool's precomputed embedding.
type SemanticStrategy struct {
	embedder Embedder
	vectors  map[string][]float64 // tool name -> embedding, computed lazily
}

// NewSemanticStrategy returns a SemanticStrategy using embedder to embed
// both queries and tool descriptions.
func NewSemanticStrategy(embedder Embedder) *SemanticStrategy {
	return &SemanticStrategy{embedder: embedder, vectors: make(map[string][]float64)}
}

// TopK implements Strategy using cosine similarity over embeddings. Tool
// embeddings are computed once and cached; query embeddings are computed
// per call since queries vary per request.
func (s *SemanticStrategy) TopK(query string, candidates []*Declaration, k int) []*Declaration {
	if len(candidates) == 0 {
		return candidates
	}
	qVec, err := s.embedder.Embed(query)
	if err != nil {
		return truncate(candidates, k)
	}

	score := make(map[string]float64, len(candidates))
	for _, d := range candidates {
		vec, ok := s.vectors[d.Name]
		if !ok {
			vec, err = s.embedder.Embed(corpusText(d))
			if err != nil {
				continue
			}
			s.vectors[d.Name] = vec
		}
		score[d.Name] = cosineSimilarity(qVec, vec)
	}

	ranked := make([]*Declaration, len(candidates))
	copy(ranked, candidates)
	sortByScoreThenOrder(ranked, score)
	return truncate(ranked, k)
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// KeywordStrategy ranks candidates by whether a compiled regular expression
// matches their name+description text, preserving declaration order among
// matches. It is the simplest strategy, useful for small fixed tool sets
// where BM25's statistical weighting is unnecessary.
type KeywordStrategy struct {
	pattern *regexp.Regexp
}

// NewKeywordStrategy compiles pattern for use as a Strategy. An invalid
// pattern causes every call to TopK to match nothing.
func NewKeywordStrategy(pattern string) *KeywordStrategy {
	re, _ := regexp.Compile("(?i)" + pattern)
	return &KeywordStrategy{pattern: re}
}

// TopK implements Strategy.
func (s *KeywordStrategy) TopK(query string, candidates []*Declaration, k int) []*Declaration {
	re := s.pattern
	if re == nil {
		return nil
	}
	var matched []*Declaration
	for _, d := range candidates {
		if re.MatchString(corpusText(d)) {
			matched = append(matched, d)
		}
	}
	return truncate(matched, k)
}
