// Affinis - Problem Graph Embeddings and Similarity Recommendations
// Copyright 2026 Affine Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affinelabs/affinis

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// mockService implements suture.Service with controllable failures.
type mockService struct {
	name       string
	startCount atomic.Int32
	failCount  atomic.Int32
	maxFails   atomic.Int32
}

func newMockService(name string) *mockService {
	return &mockService{name: name}
}

func (m *mockService) Serve(ctx context.Context) error {
	m.startCount.Add(1)

	if max := m.maxFails.Load(); max > 0 {
		if current := m.failCount.Add(1); current <= max {
			return errors.New("simulated failure")
		}
	}

	<-ctx.Done()
	return ctx.Err()
}

func (m *mockService) setFailCount(n int) {
	m.maxFails.Store(int32(n))
}

func (m *mockService) String() string {
	return m.name
}

func testSlogLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewTreeAppliesDefaults(t *testing.T) {
	tree := NewTree(testSlogLogger(), TreeConfig{})

	if tree.Root() == nil {
		t.Fatal("root supervisor is nil")
	}
	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %f, want default 5.0", tree.config.FailureThreshold)
	}
	if tree.config.FailureDecay != 30.0 {
		t.Errorf("FailureDecay = %f, want default 30.0", tree.config.FailureDecay)
	}
	if tree.config.FailureBackoff != 15*time.Second {
		t.Errorf("FailureBackoff = %v, want default 15s", tree.config.FailureBackoff)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want default 10s", tree.config.ShutdownTimeout)
	}
}

func TestDefaultTreeConfig(t *testing.T) {
	config := DefaultTreeConfig()

	if config.FailureThreshold != 5.0 || config.FailureDecay != 30.0 {
		t.Errorf("failure params = %f/%f", config.FailureThreshold, config.FailureDecay)
	}
	if config.FailureBackoff != 15*time.Second || config.ShutdownTimeout != 10*time.Second {
		t.Errorf("durations = %v/%v", config.FailureBackoff, config.ShutdownTimeout)
	}
}

func TestTreeStartsServicesInBothLayers(t *testing.T) {
	tree := NewTree(testSlogLogger(), TreeConfig{ShutdownTimeout: time.Second})

	artifactSvc := newMockService("mock-artifacts")
	apiSvc := newMockService("mock-api")
	tree.AddArtifactService(artifactSvc)
	tree.AddAPIService(apiSvc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if artifactSvc.startCount.Load() >= 1 && apiSvc.startCount.Load() >= 1 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if artifactSvc.startCount.Load() < 1 {
		t.Error("artifact service was not started")
	}
	if apiSvc.startCount.Load() < 1 {
		t.Error("api service was not started")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("terminal error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("tree did not shut down in time")
	}
}

func TestTreeRestartsFailingService(t *testing.T) {
	tree := NewTree(testSlogLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	failing := newMockService("failing")
	failing.setFailCount(2)
	stable := newMockService("stable")

	tree.AddArtifactService(failing)
	tree.AddAPIService(stable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tree.Serve(ctx)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && failing.startCount.Load() < 3 {
		time.Sleep(5 * time.Millisecond)
	}

	if got := failing.startCount.Load(); got < 3 {
		t.Errorf("failing service starts = %d, want at least 3 (two failures then success)", got)
	}
	if stable.startCount.Load() < 1 {
		t.Error("stable service was not started")
	}
}
