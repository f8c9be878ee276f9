// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package nn

import "math"

// Adam keeps first and second moment estimates per parameter tensor,
// keyed by the tensor name so the slice order handed to Step does not
// matter.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	step int
	m    map[string][]float64
	v    map[string][]float64
}

func NewAdam(lr float64) *Adam {
	return &Adam{
		LR:    lr,
		Beta1: 0.9,
		Beta2: 0.999,
		Eps:   1e-8,
		m:     make(map[string][]float64),
		v:     make(map[string][]float64),
	}
}

// SetLR changes the learning rate for subsequent steps.
func (a *Adam) SetLR(lr float64) { a.LR = lr }

// Step applies one bias-corrected Adam update to every parameter and
// leaves the gradients untouched; callers zero them between passes.
func (a *Adam) Step(params []Param) {
	a.step++
	c1 := 1 - math.Pow(a.Beta1, float64(a.step))
	c2 := 1 - math.Pow(a.Beta2, float64(a.step))
	for _, p := range params {
		m := a.moment(a.m, p)
		v := a.moment(a.v, p)
		for i, g := range p.Grad {
			m[i] = a.Beta1*m[i] + (1-a.Beta1)*g
			v[i] = a.Beta2*v[i] + (1-a.Beta2)*g*g
			mHat := m[i] / c1
			vHat := v[i] / c2
			p.Value[i] -= a.LR * mHat / (math.Sqrt(vHat) + a.Eps)
		}
	}
}

func (a *Adam) moment(store map[string][]float64, p Param) []float64 {
	s, ok := store[p.Name]
	if !ok || len(s) != len(p.Value) {
		s = make([]float64, len(p.Value))
		store[p.Name] = s
	}
	return s
}

// CosineSchedule anneals the learning rate from Base down to Min over
// Total epochs following half a cosine period.
type CosineSchedule struct {
	Base  float64
	Min   float64
	Total int
}

// LR evaluates the schedule at the given zero-based epoch.
func (s CosineSchedule) LR(epoch int) float64 {
	if s.Total <= 0 {
		return s.Base
	}
	if epoch >= s.Total {
		return s.Min
	}
	t := float64(epoch) / float64(s.Total)
	return s.Min + 0.5*(s.Base-s.Min)*(1+math.Cos(math.Pi*t))
}
