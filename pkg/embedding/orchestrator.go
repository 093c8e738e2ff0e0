package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kb-assistant-be/internal/pkg/apperror"
)

const (
	// Dimensions every stored and queried embedding must have.
	Dimensions = 384

	defaultBatchSize = 5
	defaultTimeout   = 60 * time.Second
)

// Orchestrator coordinates a provider behind single-flight warmup,
// batched document embedding and per-question timeouts. Providers keep
// their own HTTP plumbing; the orchestrator owns concurrency and
// dimension guarantees.
type Orchestrator struct {
	provider  EmbeddingProvider
	batchSize int
	timeout   time.Duration

	mu      sync.Mutex
	ready   bool
	initErr error
	initCh  chan struct{}
}

type OrchestratorOptions struct {
	BatchSize int
	Timeout   time.Duration
}

func NewOrchestrator(provider EmbeddingProvider, opts OrchestratorOptions) *Orchestrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Orchestrator{
		provider:  provider,
		batchSize: opts.BatchSize,
		timeout:   opts.Timeout,
	}
}

// Initialize warms the provider up with a throwaway request. Concurrent
// callers share one in-flight warmup and its outcome; a failed warmup
// leaves the orchestrator cold so the next caller retries.
func (o *Orchestrator) Initialize(ctx context.Context, onProgress func(progress int)) error {
	o.mu.Lock()
	if o.ready {
		o.mu.Unlock()
		if onProgress != nil {
			onProgress(100)
		}
		return nil
	}
	if o.initCh != nil {
		ch := o.initCh
		o.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.initErr
	}

	ch := make(chan struct{})
	o.initCh = ch
	o.mu.Unlock()

	if onProgress != nil {
		onProgress(0)
	}
	_, err := o.embedWithTimeout(ctx, "warmup", TaskRetrievalQuery)
	if onProgress != nil && err == nil {
		onProgress(100)
	}

	o.mu.Lock()
	o.initErr = err
	o.ready = err == nil
	o.initCh = nil
	close(ch)
	o.mu.Unlock()

	return err
}

// EmbedBatch embeds document chunks in batches, reporting
// (completed, total) after every item. Cancellation is honored between
// batches so a long ingestion can be aborted cleanly.
func (o *Orchestrator) EmbedBatch(ctx context.Context, texts []string, onProgress func(completed, total int)) ([][]float32, error) {
	results := make([][]float32, 0, len(texts))
	total := len(texts)

	for i := 0; i < total; i += o.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := i + o.batchSize
		if end > total {
			end = total
		}
		for _, text := range texts[i:end] {
			values, err := o.embedWithTimeout(ctx, text, TaskRetrievalDocument)
			if err != nil {
				return nil, fmt.Errorf("embed chunk %d: %w", len(results), err)
			}
			results = append(results, values)
			if onProgress != nil {
				onProgress(len(results), total)
			}
		}
	}

	return results, nil
}

// EmbedQuestion embeds a single user question under the configured
// timeout.
func (o *Orchestrator) EmbedQuestion(ctx context.Context, text string) ([]float32, error) {
	return o.embedWithTimeout(ctx, text, TaskRetrievalQuery)
}

func (o *Orchestrator) embedWithTimeout(ctx context.Context, text string, taskType string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type generated struct {
		values []float32
		err    error
	}
	done := make(chan generated, 1)
	go func() {
		res, err := o.provider.Generate(text, taskType)
		if err != nil {
			done <- generated{err: err}
			return
		}
		done <- generated{values: res.Embedding.Values}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperror.ErrEmbeddingTimeout
		}
		return nil, ctx.Err()
	case g := <-done:
		if g.err != nil {
			return nil, fmt.Errorf("%w: %v", apperror.ErrEmbeddingFailure, g.err)
		}
		return conformDimensions(g.values)
	}
}

func conformDimensions(values []float32) ([]float32, error) {
	if len(values) < Dimensions {
		return nil, fmt.Errorf("%w: provider returned %d dimensions, need %d", apperror.ErrEmbeddingFailure, len(values), Dimensions)
	}
	if len(values) > Dimensions {
		return normalizeVector(values[:Dimensions]), nil
	}
	return values, nil
}
