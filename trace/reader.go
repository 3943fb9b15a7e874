package trace

import (
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/moffa90/go-opc/opc"
)

// Filter selects frames. Zero fields match everything.
type Filter struct {
	Model     string
	Operation string

	// FailedOnly keeps frames that carry an error
	FailedOnly bool

	// Since keeps frames at or after this time
	Since time.Time
}

func (f Filter) matches(fr opc.Frame) bool {
	if f.Model != "" && fr.Model != f.Model {
		return false
	}
	if f.Operation != "" && fr.Operation != f.Operation {
		return false
	}
	if f.FailedOnly && fr.Err == "" {
		return false
	}
	if !f.Since.IsZero() && fr.Time.Before(f.Since) {
		return false
	}
	return true
}

// Reader streams frames from a trace file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// Open opens a trace file for reading.
func Open(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(f),
		filter:  filter,
	}, nil
}

// Next returns the next matching frame, or io.EOF at the end of the file.
func (r *Reader) Next() (opc.Frame, error) {
	for {
		var fr opc.Frame
		if err := r.decoder.Decode(&fr); err != nil {
			return opc.Frame{}, err
		}
		if r.filter.matches(fr) {
			return fr, nil
		}
	}
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.file.Close()
}
