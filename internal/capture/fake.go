package capture

import (
	"context"
	"os"
	"sync"
	"time"
)

// FakeRecorder writes a placeholder file instead of recording.
type FakeRecorder struct {
	mu      sync.Mutex
	Paths   []string
	Lengths []time.Duration
	Err     error
	// Block makes Record wait for ctx to be done.
	Block bool
}

func (f *FakeRecorder) Record(ctx context.Context, path string, d time.Duration) error {
	f.mu.Lock()
	f.Paths = append(f.Paths, path)
	f.Lengths = append(f.Lengths, d)
	err, block := f.Err, f.Block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte("h264"), 0o644)
}

// FakeTranscoder copies src to dst.
type FakeTranscoder struct {
	mu    sync.Mutex
	Calls [][2]string
	Err   error
}

func (f *FakeTranscoder) Transcode(_ context.Context, src, dst string) error {
	f.mu.Lock()
	f.Calls = append(f.Calls, [2]string{src, dst})
	err := f.Err
	f.mu.Unlock()

	if err != nil {
		return err
	}
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0o644)
}
