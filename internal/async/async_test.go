package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestReturnsValue(t *testing.T) {
	r := Start(context.Background(), func(context.Context) (string, error) { return "ok", nil })
	v, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	select {
	case <-r.Done():
	default:
		t.Fatal("Done must be closed after Wait returns the value")
	}
}

func TestRequestCancelStopsCall(t *testing.T) {
	started := make(chan struct{})
	r := Start(context.Background(), func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	<-started
	r.Cancel()

	_, err := r.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestWaitGivesUpWithoutCancelling(t *testing.T) {
	release := make(chan struct{})
	r := Start(context.Background(), func(ctx context.Context) (int, error) {
		select {
		case <-release:
			return 7, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	v, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestRequestRecoversPanic(t *testing.T) {
	_, err := Do(context.Background(), func(context.Context) (int, error) { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestDoPropagatesError(t *testing.T) {
	want := errors.New("upstream")
	_, err := Do(context.Background(), func(context.Context) (struct{}, error) { return struct{}{}, want })
	assert.ErrorIs(t, err, want)
}

type recordingProcessor struct {
	mu    sync.Mutex
	paths []string
	fail  string
}

func (p *recordingProcessor) ProcessFile(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
	if path == p.fail {
		return errors.New("bad file")
	}
	return nil
}

func TestProcessorQueueDrainsOnShutdown(t *testing.T) {
	proc := &recordingProcessor{fail: "b.pdf"}
	q := NewProcessorQueue(proc, nil, WithWorkers(3), WithQueueSize(1), WithProcessTimeout(time.Second))

	for _, p := range []string{"a.pdf", "b.pdf", "c.png", "d.jpg"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{Path: p}))
	}
	q.Shutdown(context.Background())

	assert.ElementsMatch(t, []string{"a.pdf", "b.pdf", "c.png", "d.jpg"}, proc.paths)
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{Path: "late.pdf"}), ErrQueueClosed)
}
