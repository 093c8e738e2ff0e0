package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-assistant-be/internal/pkg/apperror"
)

type fakeProvider struct {
	mu       sync.Mutex
	calls    int32
	delay    time.Duration
	err      error
	failures int
	dims     int
}

func (f *fakeProvider) Generate(text string, taskType string) (*EmbeddingResponse, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil && f.failures != 0 {
		if f.failures > 0 {
			f.failures--
		}
		return nil, f.err
	}

	dims := f.dims
	if dims == 0 {
		dims = Dimensions
	}
	values := make([]float32, dims)
	for i := range values {
		values[i] = float32(len(text))
	}
	return &EmbeddingResponse{Embedding: EmbeddingResponseEmbedding{Values: values}}, nil
}

func TestInitialize_SharesSingleWarmup(t *testing.T) {
	provider := &fakeProvider{delay: 20 * time.Millisecond}
	orch := NewOrchestrator(provider, OrchestratorOptions{})

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = orch.Initialize(context.Background(), nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.calls))
}

func TestInitialize_FailureAllowsRetry(t *testing.T) {
	provider := &fakeProvider{err: errors.New("model unavailable"), failures: 1}
	orch := NewOrchestrator(provider, OrchestratorOptions{})

	err := orch.Initialize(context.Background(), nil)
	require.Error(t, err)

	require.NoError(t, orch.Initialize(context.Background(), nil))
}

func TestInitialize_ReportsProgress(t *testing.T) {
	orch := NewOrchestrator(&fakeProvider{}, OrchestratorOptions{})

	var progress []int
	require.NoError(t, orch.Initialize(context.Background(), func(p int) {
		progress = append(progress, p)
	}))

	assert.Equal(t, []int{0, 100}, progress)

	// Already warm: jumps straight to done.
	progress = nil
	require.NoError(t, orch.Initialize(context.Background(), func(p int) {
		progress = append(progress, p)
	}))
	assert.Equal(t, []int{100}, progress)
}

func TestEmbedBatch_ReportsPerItemProgress(t *testing.T) {
	orch := NewOrchestrator(&fakeProvider{}, OrchestratorOptions{BatchSize: 2})

	texts := []string{"a", "b", "c", "d", "e"}
	var completed []int
	results, err := orch.EmbedBatch(context.Background(), texts, func(done, total int) {
		assert.Equal(t, 5, total)
		completed = append(completed, done)
	})

	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, completed)
	for _, values := range results {
		assert.Len(t, values, Dimensions)
	}
}

func TestEmbedBatch_StopsOnCancel(t *testing.T) {
	orch := NewOrchestrator(&fakeProvider{}, OrchestratorOptions{BatchSize: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.EmbedBatch(ctx, []string{"a", "b"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmbedQuestion_TimesOut(t *testing.T) {
	provider := &fakeProvider{delay: 100 * time.Millisecond}
	orch := NewOrchestrator(provider, OrchestratorOptions{Timeout: 10 * time.Millisecond})

	_, err := orch.EmbedQuestion(context.Background(), "slow question")
	assert.ErrorIs(t, err, apperror.ErrEmbeddingTimeout)
}

func TestEmbedQuestion_WrapsProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("boom"), failures: -1}
	orch := NewOrchestrator(provider, OrchestratorOptions{})

	_, err := orch.EmbedQuestion(context.Background(), "question")
	assert.ErrorIs(t, err, apperror.ErrEmbeddingFailure)
}

func TestEmbedQuestion_TruncatesWideVectors(t *testing.T) {
	provider := &fakeProvider{dims: 768}
	orch := NewOrchestrator(provider, OrchestratorOptions{})

	values, err := orch.EmbedQuestion(context.Background(), "wide")
	require.NoError(t, err)
	assert.Len(t, values, Dimensions)
}

func TestEmbedQuestion_RejectsNarrowVectors(t *testing.T) {
	provider := &fakeProvider{dims: 128}
	orch := NewOrchestrator(provider, OrchestratorOptions{})

	_, err := orch.EmbedQuestion(context.Background(), "narrow")
	assert.ErrorIs(t, err, apperror.ErrEmbeddingFailure)
}
