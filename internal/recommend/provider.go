// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package recommend

import "sync/atomic"

// Provider hands out the current engine instance. Reloads publish a
// freshly built engine with Swap; readers never block and requests in
// flight keep the instance they started with.
type Provider struct {
	engine atomic.Pointer[Engine]
}

// NewProvider returns an empty provider; Ready reports false until the
// first Swap.
func NewProvider() *Provider {
	return &Provider{}
}

// Swap publishes a new engine instance.
func (p *Provider) Swap(e *Engine) {
	p.engine.Store(e)
}

// Get returns the current engine, or false before the first load.
func (p *Provider) Get() (*Engine, bool) {
	e := p.engine.Load()
	return e, e != nil
}

// Ready reports whether an engine has been loaded.
func (p *Provider) Ready() bool {
	return p.engine.Load() != nil
}
