// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package embed

import (
	"fmt"
	"math/rand"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/affinelabs/affinis/internal/config"
	"github.com/affinelabs/affinis/internal/dataset"
	"github.com/affinelabs/affinis/internal/embed/nn"
)

// ModelShape fixes the layer dimensions of one model instance.
type ModelShape struct {
	FeatureDim int
	TextDim    int
	// TagDim is the tag matrix width, padded to 1 for tagless datasets.
	TagDim int

	GraphLayers  int
	Heads        int
	HeadDim      int
	Hidden       int
	EmbeddingDim int

	Dropout float64
}

// ShapeFromConfig derives the model shape from the training
// hyperparameters and the dataset dimensions.
func ShapeFromConfig(cfg config.TrainConfig, ds *dataset.Dataset) ModelShape {
	_, tagDim := ds.TagMatrix.Dims()
	return ModelShape{
		FeatureDim:   ds.FeatureDim(),
		TextDim:      ds.TextDim(),
		TagDim:       tagDim,
		GraphLayers:  cfg.GraphLayers,
		Heads:        cfg.GraphHeads,
		HeadDim:      cfg.HeadDim,
		Hidden:       cfg.HiddenDim,
		EmbeddingDim: cfg.EmbeddingDim,
		Dropout:      cfg.Dropout,
	}
}

// TowerOutputs carries the raw (unnormalized) model outputs. Callers
// normalize rows before any similarity use.
type TowerOutputs struct {
	Struct    *mat.Dense
	Tag       *mat.Dense
	Text      *mat.Dense
	Fusion    *mat.Dense
	TagLogits *mat.Dense
}

// TowerGrads carries the loss gradients flowing back into Backward,
// matching TowerOutputs field for field.
type TowerGrads struct {
	Struct    *mat.Dense
	Tag       *mat.Dense
	Text      *mat.Dense
	Fusion    *mat.Dense
	TagLogits *mat.Dense
}

// Model is the three-tower embedding network with a fusion head and a
// tag prediction head. All layers carry explicit forward and backward
// passes; Backward accumulates parameter gradients in place.
type Model struct {
	shape ModelShape

	gats  []*nn.GraphAttention
	norms []*nn.LayerNorm
	elus  []*nn.ELU
	skip  *nn.Linear

	tagIn  *nn.Linear
	tagAct *nn.ReLU
	tagOut *nn.Linear

	txtIn   *nn.Linear
	txtAct  *nn.ReLU
	txtDrop *nn.Dropout
	txtOut  *nn.Linear

	fuseIn  *nn.Linear
	fuseAct *nn.ReLU
	fuseOut *nn.Linear

	tagHead *nn.Linear
}

// NewModel builds a model with all weights drawn from rng.
func NewModel(shape ModelShape, rng *rand.Rand) *Model {
	d := shape.EmbeddingDim
	m := &Model{
		shape: shape,
		gats:  make([]*nn.GraphAttention, shape.GraphLayers),
		norms: make([]*nn.LayerNorm, shape.GraphLayers),
		elus:  make([]*nn.ELU, max(shape.GraphLayers-1, 0)),
		skip:  nn.NewLinear("graph.skip", shape.FeatureDim, d, rng),
	}
	for i := range m.gats {
		in := shape.FeatureDim
		if i > 0 {
			in = d
		}
		layer := "graph.l" + strconv.Itoa(i)
		m.gats[i] = nn.NewGraphAttention(layer+".attn", in, shape.Heads, shape.HeadDim, rng)
		m.norms[i] = nn.NewLayerNorm(layer+".norm", d)
	}
	for i := range m.elus {
		m.elus[i] = &nn.ELU{}
	}

	m.tagIn = nn.NewLinear("tag.in", shape.TagDim, shape.Hidden, rng)
	m.tagAct = &nn.ReLU{}
	m.tagOut = nn.NewLinear("tag.out", shape.Hidden, d, rng)

	m.txtIn = nn.NewLinear("text.in", shape.TextDim, shape.Hidden, rng)
	m.txtAct = &nn.ReLU{}
	m.txtDrop = nn.NewDropout(shape.Dropout, rng)
	m.txtOut = nn.NewLinear("text.out", shape.Hidden, d, rng)

	m.fuseIn = nn.NewLinear("fusion.in", 3*d, shape.Hidden, rng)
	m.fuseAct = &nn.ReLU{}
	m.fuseOut = nn.NewLinear("fusion.out", shape.Hidden, d, rng)

	m.tagHead = nn.NewLinear("taghead", d, shape.TagDim, rng)
	return m
}

// Shape returns the fixed dimensions of this model.
func (m *Model) Shape() ModelShape { return m.shape }

// SetTraining toggles training-only behavior (dropout).
func (m *Model) SetTraining(training bool) { m.txtDrop.Training = training }

// Forward runs all towers over the full node set.
func (m *Model) Forward(g *nn.Graph, features, tags, text *mat.Dense) TowerOutputs {
	// Graph tower: attention, projected or identity skip, LayerNorm,
	// ELU between layers.
	h := features
	for i, gat := range m.gats {
		a := gat.Forward(g, h)
		if i == 0 {
			a = addDense(a, m.skip.Forward(h))
		} else {
			a = addDense(a, h)
		}
		out := m.norms[i].Forward(a)
		if i < len(m.elus) {
			out = m.elus[i].Forward(out)
		}
		h = out
	}
	zStruct := h

	t := m.tagOut.Forward(m.tagAct.Forward(m.tagIn.Forward(tags)))
	x := m.txtOut.Forward(m.txtDrop.Forward(m.txtAct.Forward(m.txtIn.Forward(text))))

	c := concatCols(zStruct, t, x)
	zFusion := m.fuseOut.Forward(m.fuseAct.Forward(m.fuseIn.Forward(c)))
	logits := m.tagHead.Forward(zFusion)

	return TowerOutputs{
		Struct:    zStruct,
		Tag:       t,
		Text:      x,
		Fusion:    zFusion,
		TagLogits: logits,
	}
}

// Backward routes the loss gradients through the heads, the fusion MLP
// and the three towers, accumulating parameter gradients.
func (m *Model) Backward(grads TowerGrads) {
	dFusion := addDense(grads.Fusion, m.tagHead.Backward(grads.TagLogits))
	dConcat := m.fuseIn.Backward(m.fuseAct.Backward(m.fuseOut.Backward(dFusion)))

	n, _ := dConcat.Dims()
	d := m.shape.EmbeddingDim
	dStruct := addDense(grads.Struct, sliceCols(dConcat, n, 0, d))
	dTag := addDense(grads.Tag, sliceCols(dConcat, n, d, 2*d))
	dText := addDense(grads.Text, sliceCols(dConcat, n, 2*d, 3*d))

	m.tagIn.Backward(m.tagAct.Backward(m.tagOut.Backward(dTag)))
	m.txtIn.Backward(m.txtAct.Backward(m.txtDrop.Backward(m.txtOut.Backward(dText))))

	cur := dStruct
	for i := len(m.gats) - 1; i >= 0; i-- {
		if i < len(m.elus) {
			cur = m.elus[i].Backward(cur)
		}
		dSum := m.norms[i].Backward(cur)
		dIn := m.gats[i].Backward(dSum)
		if i == 0 {
			m.skip.Backward(dSum)
		} else {
			cur = addDense(dIn, dSum)
		}
	}
}

// Params returns flat views over every trainable tensor.
func (m *Model) Params() []nn.Param {
	var params []nn.Param
	for i := range m.gats {
		params = append(params, m.gats[i].Params()...)
		params = append(params, m.norms[i].Params()...)
	}
	params = append(params, m.skip.Params()...)
	params = append(params, m.tagIn.Params()...)
	params = append(params, m.tagOut.Params()...)
	params = append(params, m.txtIn.Params()...)
	params = append(params, m.txtOut.Params()...)
	params = append(params, m.fuseIn.Params()...)
	params = append(params, m.fuseOut.Params()...)
	params = append(params, m.tagHead.Params()...)
	return params
}

// ExportWeights copies every parameter tensor into a name-keyed map.
func (m *Model) ExportWeights() map[string][]float64 {
	out := make(map[string][]float64)
	for _, p := range m.Params() {
		out[p.Name] = append([]float64(nil), p.Value...)
	}
	return out
}

// LoadWeights restores parameters from an ExportWeights map. Every
// tensor must be present with a matching length.
func (m *Model) LoadWeights(weights map[string][]float64) error {
	for _, p := range m.Params() {
		src, ok := weights[p.Name]
		if !ok {
			return fmt.Errorf("missing weight tensor %q", p.Name)
		}
		if len(src) != len(p.Value) {
			return fmt.Errorf("weight tensor %q has %d values, model expects %d", p.Name, len(src), len(p.Value))
		}
		copy(p.Value, src)
	}
	return nil
}

func addDense(a, b *mat.Dense) *mat.Dense {
	rows, cols := a.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Add(a, b)
	return out
}

func concatCols(ms ...*mat.Dense) *mat.Dense {
	rows, _ := ms[0].Dims()
	total := 0
	for _, m := range ms {
		_, c := m.Dims()
		total += c
	}
	out := mat.NewDense(rows, total, nil)
	for i := 0; i < rows; i++ {
		dst := out.RawRowView(i)
		off := 0
		for _, m := range ms {
			src := m.RawRowView(i)
			copy(dst[off:off+len(src)], src)
			off += len(src)
		}
	}
	return out
}

func sliceCols(m *mat.Dense, rows, lo, hi int) *mat.Dense {
	out := mat.NewDense(rows, hi-lo, nil)
	for i := 0; i < rows; i++ {
		copy(out.RawRowView(i), m.RawRowView(i)[lo:hi])
	}
	return out
}
