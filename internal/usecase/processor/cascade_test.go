package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"image-ingest/internal/apperror"
	"image-ingest/internal/domain"
	"image-ingest/internal/resource"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"
)

func testLogger() *zlog.Zerolog {
	zlog.Init()
	return &zlog.Logger
}

type stubMonitor struct {
	stats    resource.Stats
	cleanups int
}

func (m *stubMonitor) Sample() resource.Stats {
	return m.stats
}

func (m *stubMonitor) Cleanup(ctx context.Context) {
	m.cleanups++
}

func fakeStrategy(name string, priority int, attempts *[]string, err error) Strategy {
	return Strategy{
		Name:             name,
		Priority:         priority,
		MemoryRequiredMB: 128,
		MaxFileSize:      domain.MaxUploadSize,
		Process: func(ctx context.Context, data []byte, filename string) (*domain.ProcessingResult, error) {
			*attempts = append(*attempts, name)
			if err != nil {
				return nil, err
			}
			return &domain.ProcessingResult{
				Data:     []byte("processed"),
				Format:   domain.FormatJPEG,
				MimeType: "image/jpeg",
			}, nil
		},
	}
}

func newTestCascade(monitor *stubMonitor, strategies ...Strategy) *Cascade {
	return NewCascade(NewSelector(strategies), monitor, testLogger(), 5*time.Second)
}

func TestCascadeFirstSuccessWins(t *testing.T) {
	var attempts []string
	monitor := &stubMonitor{stats: comfortableStats()}
	cascade := newTestCascade(monitor,
		fakeStrategy("first", 1, &attempts, nil),
		fakeStrategy("second", 2, &attempts, nil),
	)

	result, err := cascade.Process(context.Background(), []byte("data"), "a.jpg", domain.FormatJPEG)

	require.NoError(t, err)
	assert.Equal(t, "first", result.Strategy)
	assert.Equal(t, []string{"first"}, attempts)
}

func TestCascadeFallsThroughInPriorityOrder(t *testing.T) {
	var attempts []string
	monitor := &stubMonitor{stats: comfortableStats()}
	cascade := newTestCascade(monitor,
		fakeStrategy("first", 1, &attempts, errors.New("decode failed")),
		fakeStrategy("second", 2, &attempts, errors.New("decode failed")),
		fakeStrategy("third", 3, &attempts, nil),
	)

	result, err := cascade.Process(context.Background(), []byte("data"), "a.jpg", domain.FormatJPEG)

	require.NoError(t, err)
	assert.Equal(t, "third", result.Strategy)
	assert.Equal(t, []string{"first", "second", "third"}, attempts)
}

func TestCascadeExhaustionIsTerminal(t *testing.T) {
	var attempts []string
	monitor := &stubMonitor{stats: comfortableStats()}
	cascade := newTestCascade(monitor,
		fakeStrategy("first", 1, &attempts, errors.New("first broke")),
		fakeStrategy("second", 2, &attempts, errors.New("last straw")),
	)

	_, err := cascade.Process(context.Background(), []byte("data"), "a.jpg", domain.FormatJPEG)

	require.Error(t, err)
	assert.Equal(t, apperror.CategoryProcessing, apperror.CategoryOf(err))
	assert.False(t, apperror.IsRetryable(err))
	assert.Contains(t, err.Error(), "last straw")
	assert.NotEmpty(t, apperror.SuggestionsOf(err))
}

func TestCascadeDefersUnderPersistentCriticalPressure(t *testing.T) {
	var attempts []string
	monitor := &stubMonitor{stats: resource.Stats{HeapUsedMB: 950, HeapTotalMB: 1000, SystemAvailableMB: 100}}
	cascade := newTestCascade(monitor, fakeStrategy("only", 1, &attempts, nil))

	_, err := cascade.Process(context.Background(), []byte("data"), "a.jpg", domain.FormatJPEG)

	require.Error(t, err)
	assert.Equal(t, apperror.CategoryMemory, apperror.CategoryOf(err))
	assert.True(t, apperror.IsRetryable(err))
	assert.Equal(t, 10*time.Second, apperror.RetryAfter(err))
	assert.Equal(t, 1, monitor.cleanups)
	assert.Empty(t, attempts)
}

func TestCascadeCleansUpAfterMemoryFailure(t *testing.T) {
	var attempts []string
	monitor := &stubMonitor{stats: comfortableStats()}
	cascade := newTestCascade(monitor,
		fakeStrategy("first", 1, &attempts, errors.New("cannot allocate memory")),
		fakeStrategy("second", 2, &attempts, nil),
	)

	_, err := cascade.Process(context.Background(), []byte("data"), "a.jpg", domain.FormatJPEG)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, monitor.cleanups, 1)
}

func TestCascadeSkipsNewlyIneligibleCandidates(t *testing.T) {
	var attempts []string
	picky := fakeStrategy("picky", 1, &attempts, nil)
	picky.MemoryRequiredMB = 4096
	fallback := fakeStrategy("fallback", 2, &attempts, nil)

	// Selection sees plenty of memory; by attempt time it is gone.
	monitor := &stubMonitor{stats: comfortableStats()}
	selector := NewSelector([]Strategy{picky, fallback})
	cascade := NewCascade(selector, monitor, testLogger(), 5*time.Second)

	candidates := selector.Select(4, domain.FormatJPEG, comfortableStats())
	require.Len(t, candidates, 2)

	monitor.stats.SystemAvailableMB = 1024
	result, err := cascade.Process(context.Background(), []byte("data"), "a.jpg", domain.FormatJPEG)

	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Strategy)
	assert.Equal(t, []string{"fallback"}, attempts)
}
