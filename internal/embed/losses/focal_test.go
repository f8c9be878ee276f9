// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package losses

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestFocalTagsNoTaggedRows(t *testing.T) {
	logits := mat.NewDense(2, 3, nil)
	tags := mat.NewDense(2, 3, nil)
	dl := mat.NewDense(2, 3, nil)
	if got := FocalTags(logits, tags, nil, 2, 0.1, dl); got != 0 {
		t.Errorf("loss = %v with no tagged rows, want 0", got)
	}
}

func TestFocalTagsIgnoresUntaggedRows(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	logits := randomDense(4, 5, 1, rng)
	tags := mat.NewDense(4, 5, nil)
	tags.Set(0, 1, 1)
	tags.Set(2, 3, 1)

	dl := mat.NewDense(4, 5, nil)
	FocalTags(logits, tags, []int{0, 2}, 2, 0.1, dl)

	for _, row := range []int{1, 3} {
		for j := 0; j < 5; j++ {
			if dl.At(row, j) != 0 {
				t.Errorf("untagged row %d received gradient at column %d", row, j)
			}
		}
	}
	for _, row := range []int{0, 2} {
		sum := 0.0
		for j := 0; j < 5; j++ {
			sum += math.Abs(dl.At(row, j))
		}
		if sum == 0 {
			t.Errorf("tagged row %d received no gradient", row)
		}
	}
}

func TestFocalTagsPlainBCEWhenGammaZero(t *testing.T) {
	// With gamma 0 and no smoothing the gradient reduces to p - target.
	logits := mat.NewDense(1, 2, []float64{0.5, -1})
	tags := mat.NewDense(1, 2, []float64{1, 0})
	dl := mat.NewDense(1, 2, nil)
	FocalTags(logits, tags, []int{0}, 0, 0, dl)

	inv := 1.0 / 2
	for j := 0; j < 2; j++ {
		p := sigmoid(logits.At(0, j))
		want := (p - tags.At(0, j)) * inv
		if math.Abs(dl.At(0, j)-want) > 1e-12 {
			t.Errorf("grad[%d] = %v, want %v", j, dl.At(0, j), want)
		}
	}
}

func TestFocalTagsGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(33))
	logits := randomDense(5, 4, 1.5, rng)
	tags := mat.NewDense(5, 4, nil)
	tagged := []int{0, 1, 3}
	for _, i := range tagged {
		for j := 0; j < 4; j++ {
			if rng.Float64() < 0.5 {
				tags.Set(i, j, 1)
			}
		}
	}

	dl := mat.NewDense(5, 4, nil)
	FocalTags(logits, tags, tagged, 2, 0.1, dl)

	loss := func() float64 {
		scratch := mat.NewDense(5, 4, nil)
		return FocalTags(logits, tags, tagged, 2, 0.1, scratch)
	}
	checkLossGrad(t, "dLogits", logits.RawMatrix().Data, dl.RawMatrix().Data, loss)
}
