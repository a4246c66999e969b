package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// collector gathers debounced batches for assertions.
type collector struct {
	mu      sync.Mutex
	batches [][]string
	notify  chan struct{}
}

func newCollector() *collector {
	return &collector{notify: make(chan struct{}, 16)}
}

func (c *collector) onChange(_ context.Context, changed []string) {
	c.mu.Lock()
	c.batches = append(c.batches, changed)
	c.mu.Unlock()
	c.notify <- struct{}{}
}

func (c *collector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func (c *collector) wait(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-c.notify:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for change callback")
	}
}

func startWatcher(t *testing.T, root string, ignore []string, c *collector) *Watcher {
	t.Helper()
	w, err := New(root, ignore, c.onChange)
	require.NoError(t, err)
	w.debounceDur = 50 * time.Millisecond
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	// Give the platform watcher a moment to register the tree.
	time.Sleep(100 * time.Millisecond)
	return w
}

func TestWatcher_DetectsFileWrite(t *testing.T) {
	root := t.TempDir()
	c := newCollector()
	startWatcher(t, root, nil, c)

	require.NoError(t, os.WriteFile(filepath.Join(root, "login.test.ts"), []byte("x"), 0644))

	c.wait(t, 5*time.Second)
	assert.Contains(t, c.all(), "login.test.ts")
}

func TestWatcher_BatchesRapidWrites(t *testing.T) {
	root := t.TempDir()
	c := newCollector()
	startWatcher(t, root, nil, c)

	path := filepath.Join(root, "app.test.ts")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	c.wait(t, 5*time.Second)
	// Rapid saves of the same file collapse into one pending entry.
	c.mu.Lock()
	first := c.batches[0]
	c.mu.Unlock()
	assert.Equal(t, []string{"app.test.ts"}, first)
}

func TestWatcher_IgnoredDirectoryNotWatched(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0755))

	c := newCollector()
	startWatcher(t, root, []string{"node_modules"}, c)

	require.NoError(t, os.WriteFile(
		filepath.Join(root, "node_modules", "pkg", "index.js"), []byte("x"), 0644))
	// A change at the root still comes through.
	require.NoError(t, os.WriteFile(filepath.Join(root, "real.test.ts"), []byte("x"), 0644))

	c.wait(t, 5*time.Second)
	got := c.all()
	assert.Contains(t, got, "real.test.ts")
	assert.NotContains(t, got, "node_modules/pkg/index.js")
}

func TestWatcher_NewDirectoryJoinsWatchSet(t *testing.T) {
	root := t.TempDir()
	c := newCollector()
	startWatcher(t, root, nil, c)

	sub := filepath.Join(root, "features")
	require.NoError(t, os.Mkdir(sub, 0755))
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "cart.test.ts"), []byte("x"), 0644))

	c.wait(t, 5*time.Second)
	assert.Contains(t, c.all(), "features/cart.test.ts")
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := New(t.TempDir(), nil, func(context.Context, []string) {})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop()
}

func TestIsEditorNoise(t *testing.T) {
	tests := []struct {
		path  string
		noise bool
	}{
		{"foo.test.ts", false},
		{"foo.test.ts~", true},
		{".foo.test.ts.swp", true},
		{".foo.test.ts.swx", true},
		{"upload.tmp", true},
		{".#lockfile", true},
		{"#buffer#", true},
		{"hash.ts", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.noise, isEditorNoise(tt.path), tt.path)
	}
}
