// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

// Package jobs runs background work (ingest runs, detection runs) on a
// bounded worker pool supervised by the process service tree. The queue is
// bounded so a flood of triggers backpressures at the API instead of
// accumulating unbounded goroutines.
package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/config"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/logging"
	"github.com/ToyDingo/SOC-Analyst-Workbench/internal/metrics"
)

// ErrQueueFull is returned when the pool cannot accept more work.
var ErrQueueFull = errors.New("job queue full")

// ErrPoolClosed is returned when work is submitted after shutdown began.
var ErrPoolClosed = errors.New("job pool closed")

// Job is one unit of background work. The context passed to Fn is the
// pool's serve context; it is canceled on shutdown.
type Job struct {
	Kind string
	Fn   func(ctx context.Context)
}

// Pool is a fixed-size worker pool with a bounded queue. It implements
// suture.Service via Serve.
type Pool struct {
	queue   chan Job
	workers int

	mu     sync.Mutex
	closed bool
}

// NewPool sizes a pool from configuration.
func NewPool(cfg config.JobsConfig) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 16
	}
	return &Pool{
		queue:   make(chan Job, size),
		workers: workers,
	}
}

// Enqueue submits work without blocking. A full queue is the caller's
// signal to reject the trigger upstream.
func (p *Pool) Enqueue(kind string, fn func(ctx context.Context)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.mu.Unlock()

	select {
	case p.queue <- Job{Kind: kind, Fn: fn}:
		metrics.JobsEnqueued.WithLabelValues(kind).Inc()
		metrics.JobsQueueDepth.Set(float64(len(p.queue)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Serve runs the workers until ctx is canceled, then drains nothing: queued
// jobs not yet started are dropped, since every job records its own state in
// storage and can be re-triggered.
func (p *Pool) Serve(ctx context.Context) error {
	log := logging.With().Str("component", "jobs").Logger()
	log.Info().Int("workers", p.workers).Int("queue_size", cap(p.queue)).Msg("job pool starting")

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-p.queue:
					metrics.JobsQueueDepth.Set(float64(len(p.queue)))
					p.run(ctx, job)
				}
			}
		}()
	}

	<-ctx.Done()
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	wg.Wait()
	log.Info().Msg("job pool stopped")
	return ctx.Err()
}

func (p *Pool) run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("kind", job.Kind).
				Any("panic", r).
				Msg("job panicked")
		}
	}()
	job.Fn(ctx)
}

func (p *Pool) String() string { return "jobs.Pool" }
