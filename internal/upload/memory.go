package upload

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Memory simulates the external voucher storage: it keeps uploads in memory
// and answers after a fixed delay, like the stand-in service the portal
// ships with.
type Memory struct {
	mu    sync.Mutex
	delay time.Duration
	files map[string][]byte
	n     int
}

func NewMemory(delay time.Duration) *Memory {
	return &Memory{delay: delay, files: make(map[string][]byte)}
}

var _ Uploader = (*Memory)(nil)

func (m *Memory) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read voucher %s: %w", filename, err)
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	url := fmt.Sprintf("mem://vouchers/%d-%s", m.n, filename)
	m.files[url] = data
	return url, nil
}

// Stored returns the uploaded bytes for a URL, for tests.
func (m *Memory) Stored(url string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[url]
	return data, ok
}
