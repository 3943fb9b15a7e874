package trace

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/moffa90/go-opc/opc"
)

// FileRecorder appends frames to a trace file. It is safe for concurrent
// use.
type FileRecorder struct {
	file    *os.File
	encoder *cbor.Encoder
	mu      sync.Mutex
	closed  bool
	err     error
	count   int
}

// Create opens path for appending, creating it with mode 0644 if needed.
func Create(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileRecorder{
		file:    f,
		encoder: NewEncoder(f),
	}, nil
}

// Record writes one frame. Its signature matches opc.Tracer.
// Write errors do not reach the session; the first one is kept and
// returned by Err and Close.
func (r *FileRecorder) Record(f opc.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.err != nil {
		return
	}
	if err := r.encoder.Encode(f); err != nil {
		r.err = err
		return
	}
	r.count++
}

// Count returns the number of frames written.
func (r *FileRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Err returns the first write error, if any.
func (r *FileRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close closes the file. Later Record calls are ignored.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.file.Close(); err != nil {
		return err
	}
	return r.err
}
