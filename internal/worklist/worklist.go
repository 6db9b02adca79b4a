// Package worklist provides the deduplicating FIFO scheduler that drives the
// fixed-point analyses. Items already pending are not queued twice; the
// registered analyzer may enqueue further items, including items owned by
// other routines, while the worklist is being drained.
package worklist

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

const initialCap = 256

// Worklist is a deduplicating FIFO of pending items. Enqueue is safe for
// concurrent use; the drain methods must not be called concurrently with
// each other.
type Worklist[T comparable] struct {
	analyze func(T)

	mu      sync.Mutex
	pending map[T]struct{}
	queue   []T

	visits int
}

// New returns an empty worklist that calls analyze once per dequeued item.
func New[T comparable](analyze func(T)) *Worklist[T] {
	return &Worklist[T]{
		analyze: analyze,
		pending: make(map[T]struct{}),
		queue:   make([]T, 0, initialCap),
	}
}

// Enqueue adds item unless it is already pending. It reports whether the
// item was added.
func (w *Worklist[T]) Enqueue(item T) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pending[item]; ok {
		return false
	}
	w.pending[item] = struct{}{}
	w.queue = append(w.queue, item)
	return true
}

// Len returns the number of pending items.
func (w *Worklist[T]) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Visits returns the number of items analyzed so far.
func (w *Worklist[T]) Visits() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visits
}

func (w *Worklist[T]) pop() (T, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var zero T
	if len(w.queue) == 0 {
		return zero, false
	}
	item := w.queue[0]
	w.queue[0] = zero
	w.queue = w.queue[1:]
	delete(w.pending, item)
	w.visits++
	return item, true
}

// RunToCompletion pops and analyzes items in FIFO order until the
// worklist is empty.
func (w *Worklist[T]) RunToCompletion() {
	for {
		item, ok := w.pop()
		if !ok {
			return
		}
		w.analyze(item)
	}
}

// takeAll removes every pending item and returns them in FIFO order.
// The returned slice becomes the caller's; buf is reused as the new queue.
func (w *Worklist[T]) takeAll(buf []T) []T {
	w.mu.Lock()
	defer w.mu.Unlock()
	batch := w.queue
	w.queue = buf[:0]
	for _, item := range batch {
		delete(w.pending, item)
	}
	w.visits += len(batch)
	return batch
}

// RunConcurrent drains the worklist in rounds. Each round takes every
// pending item, groups the items by partition and analyzes the groups in
// parallel, at most workers at a time (NumCPU when workers <= 0). Items of
// one partition are analyzed sequentially by a single goroutine in FIFO
// order, so state owned by a partition is never touched concurrently.
// Items enqueued during a round are picked up by the next one.
func (w *Worklist[T]) RunConcurrent(ctx context.Context, workers int, partition func(T) any) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	// Double-buffering: the drained batch and the live queue swap backing
	// arrays between rounds.
	shadow := make([]T, 0, initialCap)
	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("drain worklist: %w", err)
		}
		batch := w.takeAll(shadow)
		if len(batch) == 0 {
			return nil
		}

		var order []any
		groups := make(map[any][]T)
		for _, item := range batch {
			key := partition(item)
			if _, ok := groups[key]; !ok {
				order = append(order, key)
			}
			groups[key] = append(groups[key], item)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, key := range order {
			items := groups[key]
			g.Go(func() error {
				for _, item := range items {
					if err := gctx.Err(); err != nil {
						return err
					}
					w.analyze(item)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("drain worklist round %d: %w", round, err)
		}
		clear(batch)
		shadow = batch
	}
}
