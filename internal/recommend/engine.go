// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package recommend

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/viterin/vek"
	"gonum.org/v1/gonum/mat"

	"github.com/affinelabs/affinis/internal/config"
	"github.com/affinelabs/affinis/internal/dataset"
	"github.com/affinelabs/affinis/internal/logging"
	"github.com/affinelabs/affinis/internal/metrics"
	"github.com/affinelabs/affinis/internal/recommend/reranking"
)

// Bundle carries the serving artifacts for one engine instance: the
// (possibly ensembled) embedding, the title maps and the tag structure.
type Bundle struct {
	Embedding    *mat.Dense
	Titles       []string
	IndexByTitle map[string]int
	TagSets      [][]int
	Vocab        []string
	IDF          []float64
	DegradedText bool
}

// NewBundle pairs a dataset's catalog with a trained embedding.
func NewBundle(ds *dataset.Dataset, emb *mat.Dense) (*Bundle, error) {
	rows, _ := emb.Dims()
	if rows != ds.NumNodes() {
		return nil, fmt.Errorf("%w: embedding has %d rows for %d nodes",
			dataset.ErrInputIntegrity, rows, ds.NumNodes())
	}
	return &Bundle{
		Embedding:    emb,
		Titles:       ds.TitleByIndex,
		IndexByTitle: ds.IndexByTitle,
		TagSets:      ds.TagSets,
		Vocab:        ds.Vocab,
		IDF:          ds.IDF,
		DegradedText: ds.DegradedText,
	}, nil
}

// Engine answers similarity queries against one immutable bundle.
// All state is fixed at construction, so concurrent Recommend and
// Stats calls need no locking; retraining builds a fresh engine and
// swaps it through a Provider.
type Engine struct {
	cfg config.RecommendConfig
	log zerolog.Logger

	// z holds row-normalized embeddings; tagVecs holds row-normalized
	// IDF-weighted tag vectors. Untagged nodes keep an all-zero row, so
	// their tag similarity is 0 against everything.
	z       *mat.Dense
	tagVecs *mat.Dense

	titles  []string
	index   map[string]int
	tagSets [][]int
	vocab   []string
	idf     []float64

	degradedText bool

	queries atomic.Int64
	misses  atomic.Int64
}

// New validates the bundle and precomputes the normalized similarity
// inputs.
func New(cfg config.RecommendConfig, b *Bundle) (*Engine, error) {
	n, dim := b.Embedding.Dims()
	if n == 0 || dim == 0 {
		return nil, fmt.Errorf("%w: empty embedding matrix", dataset.ErrInputIntegrity)
	}
	if len(b.Titles) != n || len(b.TagSets) != n {
		return nil, fmt.Errorf("%w: bundle maps cover %d titles and %d tag sets for %d nodes",
			dataset.ErrInputIntegrity, len(b.Titles), len(b.TagSets), n)
	}
	if len(b.IDF) != len(b.Vocab) {
		return nil, fmt.Errorf("%w: %d idf weights for %d tags",
			dataset.ErrInputIntegrity, len(b.IDF), len(b.Vocab))
	}

	z := mat.NewDense(n, dim, nil)
	for i := 0; i < n; i++ {
		normalizeInto(z.RawRowView(i), b.Embedding.RawRowView(i))
	}

	tagDim := len(b.Vocab)
	if tagDim == 0 {
		tagDim = 1
	}
	tagVecs := mat.NewDense(n, tagDim, nil)
	for i := 0; i < n; i++ {
		row := dataset.WeightedTagVector(b.TagSets[i], b.IDF)
		if len(row) == 0 {
			continue
		}
		normalizeInto(tagVecs.RawRowView(i), row)
	}

	e := &Engine{
		cfg:          cfg,
		log:          logging.With().Str("component", "engine").Logger(),
		z:            z,
		tagVecs:      tagVecs,
		titles:       b.Titles,
		index:        b.IndexByTitle,
		tagSets:      b.TagSets,
		vocab:        b.Vocab,
		idf:          b.IDF,
		degradedText: b.DegradedText,
	}
	e.log.Info().
		Int("nodes", n).
		Int("dim", dim).
		Int("tags", len(b.Vocab)).
		Bool("degraded_text", b.DegradedText).
		Msg("engine loaded")
	return e, nil
}

// normalizeInto writes src scaled to unit L2 norm; zero rows stay zero.
func normalizeInto(dst, src []float64) {
	norm := math.Sqrt(vek.Dot(src, src))
	if norm == 0 {
		copy(dst, src)
		return
	}
	for i, v := range src {
		dst[i] = v / norm
	}
}

// Recommend scores every other node against the query title and
// returns the top requested results. Unknown titles produce a miss
// with fuzzy suggestions instead of an error.
func (e *Engine) Recommend(req Request) *Response {
	start := time.Now()
	req = e.prepareRequest(req)
	e.queries.Add(1)

	q, ok := e.index[req.Title]
	if !ok {
		e.misses.Add(1)
		metrics.RecordRecommendationMiss()
		suggestions := e.suggest(req.Title)
		e.log.Debug().
			Str("title", req.Title).
			Int("suggestions", len(suggestions)).
			Msg("query title not found")
		return &Response{Query: req.Title, Suggestions: suggestions}
	}

	scored := e.scoreCandidates(q)
	picked := e.selectCandidates(scored, req)

	recs := make([]Recommendation, len(picked))
	for i, c := range picked {
		recs[i] = e.buildRecommendation(q, c.Node, scoredAt(scored, q, c.Node))
	}

	metrics.RecordRecommendation(time.Since(start))
	e.log.Debug().
		Str("title", req.Title).
		Int("top_k", req.TopK).
		Bool("diversify", req.Diversify).
		Dur("took", time.Since(start)).
		Msg("query served")
	return &Response{Query: req.Title, Found: true, Recommendations: recs}
}

// prepareRequest fills an unset depth from config and clamps the blend
// parameters into range.
func (e *Engine) prepareRequest(req Request) Request {
	if req.TopK <= 0 {
		req.TopK = e.cfg.TopK
	}
	req.Alpha = clamp01(req.Alpha)
	req.DiversityWeight = clamp01(req.DiversityWeight)
	return req
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// scoredNode keeps both similarity components alongside the blend so
// result entries can expose them without recomputation.
type scoredNode struct {
	node   int
	hybrid float64
	emb    float64
	tag    float64
}

// scoreCandidates ranks every node except the query by hybrid score.
// The alpha blend happens in selectCandidates; here both components are
// computed once.
func (e *Engine) scoreCandidates(q int) []scoredNode {
	n, _ := e.z.Dims()
	qEmb := e.z.RawRowView(q)
	qTag := e.tagVecs.RawRowView(q)

	scored := make([]scoredNode, 0, n-1)
	for j := 0; j < n; j++ {
		if j == q {
			continue
		}
		scored = append(scored, scoredNode{
			node: j,
			emb:  vek.Dot(qEmb, e.z.RawRowView(j)),
			tag:  vek.Dot(qTag, e.tagVecs.RawRowView(j)),
		})
	}
	return scored
}

// selectCandidates blends, sorts and optionally diversifies, returning
// the final ordered pick list.
func (e *Engine) selectCandidates(scored []scoredNode, req Request) []reranking.Candidate {
	cands := make([]reranking.Candidate, len(scored))
	for i := range scored {
		scored[i].hybrid = req.Alpha*scored[i].emb + (1-req.Alpha)*scored[i].tag
		cands[i] = reranking.Candidate{Node: scored[i].node, Score: scored[i].hybrid}
	}
	sort.Slice(cands, func(a, b int) bool {
		if cands[a].Score != cands[b].Score {
			return cands[a].Score > cands[b].Score
		}
		return cands[a].Node < cands[b].Node
	})

	k := req.TopK
	if k > len(cands) {
		k = len(cands)
	}
	if !req.Diversify {
		return cands[:k]
	}

	pool := 2 * req.TopK
	if pool > len(cands) {
		pool = len(cands)
	}
	mmr := reranking.NewMMR(req.DiversityWeight)
	return mmr.Rerank(cands[:pool], k, func(a, b int) float64 {
		return vek.Dot(e.z.RawRowView(a), e.z.RawRowView(b))
	})
}

// scoredAt indexes the node-ordered score list, which omits the query
// row.
func scoredAt(scored []scoredNode, q, node int) scoredNode {
	if node > q {
		return scored[node-1]
	}
	return scored[node]
}

// buildRecommendation assembles one result card: shared tags ordered
// by descending IDF, the learning-path descriptor and the reason
// string.
func (e *Engine) buildRecommendation(q, node int, s scoredNode) Recommendation {
	shared := e.sharedTagNames(q, node)
	return Recommendation{
		Title:        e.titles[node],
		Score:        s.hybrid,
		EmbeddingSim: s.emb,
		TagSim:       s.tag,
		SharedTags:   shared,
		LearningPath: learningPath(shared),
		Reason:       reason(s.emb, shared),
	}
}

// sharedTagNames intersects the two nodes' sorted tag sets and orders
// the result by IDF weight, rarest first, so the primary concept leads.
func (e *Engine) sharedTagNames(a, b int) []string {
	ta, tb := e.tagSets[a], e.tagSets[b]
	var shared []int
	i, j := 0, 0
	for i < len(ta) && j < len(tb) {
		switch {
		case ta[i] == tb[j]:
			shared = append(shared, ta[i])
			i++
			j++
		case ta[i] < tb[j]:
			i++
		default:
			j++
		}
	}
	sort.Slice(shared, func(x, y int) bool {
		if e.idf[shared[x]] != e.idf[shared[y]] {
			return e.idf[shared[x]] > e.idf[shared[y]]
		}
		return shared[x] < shared[y]
	})
	names := make([]string, len(shared))
	for k, tag := range shared {
		names[k] = e.vocab[tag]
	}
	return names
}

// Stats reports the engine dimensions and query counters.
func (e *Engine) Stats() Stats {
	n, dim := e.z.Dims()
	return Stats{
		Nodes:        n,
		Tags:         len(e.vocab),
		Dim:          dim,
		DegradedText: e.degradedText,
		Queries:      e.queries.Load(),
		Misses:       e.misses.Load(),
	}
}
