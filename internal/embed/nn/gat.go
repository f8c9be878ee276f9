// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package nn

import (
	"math"
	"math/rand"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// attentionSlope is the LeakyReLU slope applied to raw edge logits.
const attentionSlope = 0.2

// gatHead holds one attention head's parameters and forward caches.
type gatHead struct {
	W          *mat.Dense // in × headDim projection
	ASrc, ADst []float64  // headDim attention vectors

	GradW              *mat.Dense
	GradASrc, GradADst []float64

	h     *mat.Dense // N × headDim projected features
	sSrc  []float64  // per-node source scores h·aSrc
	sDst  []float64  // per-node destination scores h·aDst
	pre   []float64  // per-edge logits before LeakyReLU
	alpha []float64  // per-edge attention weights
}

// GraphAttention aggregates neighbor features with multi-head additive
// attention. Each head projects the input, scores every edge with
// LeakyReLU(aSrc·h_src + aDst·h_dst), normalizes scores with a softmax
// over the edges arriving at each destination, and emits the weighted
// sum of projected sources. Head outputs are concatenated.
type GraphAttention struct {
	In      int
	Heads   int
	HeadDim int

	heads []*gatHead
	name  string

	g *Graph
	x *mat.Dense
}

func NewGraphAttention(name string, in, heads, headDim int, rng *rand.Rand) *GraphAttention {
	ga := &GraphAttention{
		In:      in,
		Heads:   heads,
		HeadDim: headDim,
		heads:   make([]*gatHead, heads),
		name:    name,
	}
	wLimit := math.Sqrt(6.0 / float64(in+headDim))
	aLimit := math.Sqrt(6.0 / float64(headDim+1))
	for h := range ga.heads {
		head := &gatHead{
			W:        mat.NewDense(in, headDim, nil),
			ASrc:     make([]float64, headDim),
			ADst:     make([]float64, headDim),
			GradW:    mat.NewDense(in, headDim, nil),
			GradASrc: make([]float64, headDim),
			GradADst: make([]float64, headDim),
		}
		wData := head.W.RawMatrix().Data
		for i := range wData {
			wData[i] = (rng.Float64()*2 - 1) * wLimit
		}
		for i := 0; i < headDim; i++ {
			head.ASrc[i] = (rng.Float64()*2 - 1) * aLimit
			head.ADst[i] = (rng.Float64()*2 - 1) * aLimit
		}
		ga.heads[h] = head
	}
	return ga
}

// OutDim reports the concatenated output width.
func (ga *GraphAttention) OutDim() int { return ga.Heads * ga.HeadDim }

func (ga *GraphAttention) Forward(g *Graph, x *mat.Dense) *mat.Dense {
	ga.g = g
	ga.x = x
	n, _ := x.Dims()
	e := g.NumEdges()
	out := mat.NewDense(n, ga.OutDim(), nil)

	for hi, head := range ga.heads {
		if head.h == nil {
			head.h = mat.NewDense(n, ga.HeadDim, nil)
		}
		head.h.Mul(x, head.W)
		head.sSrc = resize(head.sSrc, n)
		head.sDst = resize(head.sDst, n)
		for i := 0; i < n; i++ {
			row := head.h.RawRowView(i)
			var ss, sd float64
			for k, v := range row {
				ss += v * head.ASrc[k]
				sd += v * head.ADst[k]
			}
			head.sSrc[i] = ss
			head.sDst[i] = sd
		}

		head.pre = resize(head.pre, e)
		head.alpha = resize(head.alpha, e)
		for ei := 0; ei < e; ei++ {
			head.pre[ei] = head.sSrc[g.Src[ei]] + head.sDst[g.Dst[ei]]
		}

		// Softmax per destination over the activated logits.
		for d := 0; d < n; d++ {
			lo, hiE := g.Offsets[d], g.Offsets[d+1]
			if lo == hiE {
				continue
			}
			maxAct := math.Inf(-1)
			for ei := lo; ei < hiE; ei++ {
				if act := leakyReLU(head.pre[ei], attentionSlope); act > maxAct {
					maxAct = act
				}
			}
			sum := 0.0
			for ei := lo; ei < hiE; ei++ {
				v := math.Exp(leakyReLU(head.pre[ei], attentionSlope) - maxAct)
				head.alpha[ei] = v
				sum += v
			}
			for ei := lo; ei < hiE; ei++ {
				head.alpha[ei] /= sum
			}
		}

		col := hi * ga.HeadDim
		for d := 0; d < n; d++ {
			dst := out.RawRowView(d)[col : col+ga.HeadDim]
			for ei := g.Offsets[d]; ei < g.Offsets[d+1]; ei++ {
				src := head.h.RawRowView(g.Src[ei])
				a := head.alpha[ei]
				for k, v := range src {
					dst[k] += a * v
				}
			}
		}
	}
	return out
}

// Backward propagates through the attention weights, the softmax, the
// edge logits and the projection, returning the input gradient.
func (ga *GraphAttention) Backward(dy *mat.Dense) *mat.Dense {
	g := ga.g
	n, _ := ga.x.Dims()
	e := g.NumEdges()
	dx := mat.NewDense(n, ga.In, nil)

	dAlpha := make([]float64, e)
	dPre := make([]float64, e)
	dsSrc := make([]float64, n)
	dsDst := make([]float64, n)

	for hi, head := range ga.heads {
		col := hi * ga.HeadDim
		dh := mat.NewDense(n, ga.HeadDim, nil)
		for i := range dsSrc {
			dsSrc[i] = 0
			dsDst[i] = 0
		}

		// Attention-weight and message-path gradients.
		for d := 0; d < n; d++ {
			dOut := dy.RawRowView(d)[col : col+ga.HeadDim]
			for ei := g.Offsets[d]; ei < g.Offsets[d+1]; ei++ {
				src := g.Src[ei]
				hSrc := head.h.RawRowView(src)
				dot := 0.0
				for k, v := range dOut {
					dot += v * hSrc[k]
				}
				dAlpha[ei] = dot
				dhSrc := dh.RawRowView(src)
				a := head.alpha[ei]
				for k, v := range dOut {
					dhSrc[k] += a * v
				}
			}
		}

		// Softmax backward per destination group, then the LeakyReLU.
		for d := 0; d < n; d++ {
			lo, hiE := g.Offsets[d], g.Offsets[d+1]
			inner := 0.0
			for ei := lo; ei < hiE; ei++ {
				inner += head.alpha[ei] * dAlpha[ei]
			}
			for ei := lo; ei < hiE; ei++ {
				dAct := head.alpha[ei] * (dAlpha[ei] - inner)
				dPre[ei] = dAct * leakyReLUGrad(head.pre[ei], attentionSlope)
			}
		}

		for ei := 0; ei < e; ei++ {
			dsSrc[g.Src[ei]] += dPre[ei]
			dsDst[g.Dst[ei]] += dPre[ei]
		}

		// Scores were h·aSrc and h·aDst per node.
		for i := 0; i < n; i++ {
			hRow := head.h.RawRowView(i)
			dhRow := dh.RawRowView(i)
			for k := range dhRow {
				dhRow[k] += dsSrc[i]*head.ASrc[k] + dsDst[i]*head.ADst[k]
				head.GradASrc[k] += dsSrc[i] * hRow[k]
				head.GradADst[k] += dsDst[i] * hRow[k]
			}
		}

		var dW mat.Dense
		dW.Mul(ga.x.T(), dh)
		head.GradW.Add(head.GradW, &dW)

		var dxHead mat.Dense
		dxHead.Mul(dh, head.W.T())
		dx.Add(dx, &dxHead)
	}
	return dx
}

func (ga *GraphAttention) Params() []Param {
	params := make([]Param, 0, len(ga.heads)*3)
	for hi, head := range ga.heads {
		prefix := ga.name + ".h" + strconv.Itoa(hi)
		params = append(params,
			Param{Name: prefix + ".w", Value: head.W.RawMatrix().Data, Grad: head.GradW.RawMatrix().Data},
			Param{Name: prefix + ".asrc", Value: head.ASrc, Grad: head.GradASrc},
			Param{Name: prefix + ".adst", Value: head.ADst, Grad: head.GradADst},
		)
	}
	return params
}

func resize(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	s = s[:n]
	for i := range s {
		s[i] = 0
	}
	return s
}
