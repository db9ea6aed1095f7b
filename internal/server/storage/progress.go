package storage

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// ProgressTracker wraps an upload source, reporting cumulative bytes and
// remembering the peak value seen. Reads fail once ctx is done, including a
// read already blocked on a source that stopped sending.
type ProgressTracker struct {
	ctx        context.Context
	src        io.Reader
	onProgress func(int64)

	// buf belongs to the in-flight source read. After ctx is done no new
	// read starts, so an abandoned read keeps sole use of it.
	buf []byte

	total atomic.Int64
	peak  atomic.Int64

	mu     sync.Mutex
	srcErr error
}

func NewProgressTracker(ctx context.Context, src io.Reader, onProgress func(int64)) *ProgressTracker {
	return &ProgressTracker{ctx: ctx, src: src, onProgress: onProgress}
}

type readResult struct {
	n   int
	err error
}

func (p *ProgressTracker) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return 0, nil
	}

	if cap(p.buf) < len(b) {
		p.buf = make([]byte, len(b))
	}
	buf := p.buf[:len(b)]
	done := make(chan readResult, 1)
	go func() {
		n, err := p.src.Read(buf)
		done <- readResult{n: n, err: err}
	}()

	var r readResult
	select {
	case <-p.ctx.Done():
		return 0, p.ctx.Err()
	case r = <-done:
	}

	n, err := copy(b, buf[:r.n]), r.err
	if n > 0 {
		p.Observe(p.total.Add(int64(n)))
	}
	if err != nil && !errors.Is(err, io.EOF) {
		p.mu.Lock()
		if p.srcErr == nil {
			p.srcErr = err
		}
		p.mu.Unlock()
	}
	return n, err
}

// Observe records a cumulative transferred value. Values below the current
// peak are forwarded but do not lower it.
func (p *ProgressTracker) Observe(transferred int64) {
	for {
		cur := p.peak.Load()
		if transferred <= cur || p.peak.CompareAndSwap(cur, transferred) {
			break
		}
	}
	if p.onProgress != nil {
		p.onProgress(transferred)
	}
}

// Peak is the maximum transferred value observed so far.
func (p *ProgressTracker) Peak() int64 {
	return p.peak.Load()
}

// SourceErr is the first non-EOF error returned by the wrapped reader.
func (p *ProgressTracker) SourceErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.srcErr
}
