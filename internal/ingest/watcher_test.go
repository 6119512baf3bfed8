package ingest

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}

func TestStartWatcher_ReportsNewFiles(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:    []string{root},
		Debounce: 50 * time.Millisecond,
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "skip.md"), "x")
	writeFile(t, filepath.Join(root, "order.txt"), "1번 1개")

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "order.txt"), p)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for order.txt")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatch_InitialScanAndLiveFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "existing.txt"), "1번 2개")

	r := &recorder{}
	ing := newTestIngestor(r)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, ing, WatchConfig{
			Roots:       []string{root},
			InitialScan: true,
			Debounce:    50 * time.Millisecond,
		}, slog.New(slog.DiscardHandler))
	}()

	require.Eventually(t, func() bool { return r.count() == 1 }, 5*time.Second, 10*time.Millisecond)

	writeFile(t, filepath.Join(root, "new.txt"), "2번 1개")
	require.Eventually(t, func() bool { return r.count() == 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
