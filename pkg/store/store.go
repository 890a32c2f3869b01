// Package store holds the client-side copies of remote collections and
// keeps them in step with the backend.
package store

import (
	"io"
	"log"
	"sync"

	"github.com/harrisonrobin/flowdesk/pkg/api"
)

// base carries what every store shares: the loading counter, the last
// error message and the fetch sequence used to drop out-of-order answers.
type base struct {
	mu      sync.Mutex
	logger  *log.Logger
	loading int
	err     string
	issued  uint64
	applied uint64
}

func (b *base) setLogger(logger *log.Logger) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	b.logger = logger
}

// begin marks a fetch in flight and returns its sequence number. Callers hold mu.
func (b *base) begin() uint64 {
	b.issued++
	b.loading++
	return b.issued
}

// finish clears the in-flight mark and reports whether the answer to seq
// may still be applied. Callers hold mu.
func (b *base) finish(seq uint64) bool {
	b.loading--
	if seq <= b.applied {
		return false
	}
	b.applied = seq
	return true
}

// fail records err's message and returns err. Callers hold mu.
func (b *base) fail(err error, fallback string) error {
	b.err = api.Message(err, fallback)
	b.logger.Printf("Warning: %s: %v", fallback, err)
	return err
}
