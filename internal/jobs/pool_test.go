// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/config"
)

func startPool(t *testing.T, cfg config.JobsConfig) *Pool {
	t.Helper()
	pool := NewPool(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = pool.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("pool did not stop")
		}
	})
	return pool
}

func TestPoolRunsJobs(t *testing.T) {
	pool := startPool(t, config.JobsConfig{Workers: 2, QueueSize: 8})

	var ran atomic.Int64
	done := make(chan struct{}, 4)
	for i := 0; i < 4; i++ {
		err := pool.Enqueue("test", func(context.Context) {
			ran.Add(1)
			done <- struct{}{}
		})
		require.NoError(t, err)
	}

	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job did not run")
		}
	}
	assert.Equal(t, int64(4), ran.Load())
}

func TestPoolQueueFull(t *testing.T) {
	pool := NewPool(config.JobsConfig{Workers: 1, QueueSize: 1})
	// Not serving, so the single slot fills and stays full.
	require.NoError(t, pool.Enqueue("test", func(context.Context) {}))
	err := pool.Enqueue("test", func(context.Context) {})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestPoolRecoversFromPanic(t *testing.T) {
	pool := startPool(t, config.JobsConfig{Workers: 1, QueueSize: 8})

	require.NoError(t, pool.Enqueue("bad", func(context.Context) {
		panic("boom")
	}))

	done := make(chan struct{})
	require.NoError(t, pool.Enqueue("good", func(context.Context) {
		close(done)
	}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking job")
	}
}

func TestPoolRejectsAfterClose(t *testing.T) {
	pool := NewPool(config.JobsConfig{Workers: 1, QueueSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = pool.Serve(ctx)
		close(done)
	}()
	cancel()
	<-done

	err := pool.Enqueue("late", func(context.Context) {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}
