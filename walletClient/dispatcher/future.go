package dispatcher

import (
	"context"
	"sync"
)

// Future is the single result of one dispatched operation. It is resolved
// exactly once; later resolve attempts are ignored.
type Future struct {
	op        Operation
	sessionID string

	once  sync.Once
	done  chan struct{}
	value string
	err   error
}

func newFuture(op Operation, sessionID string) *Future {
	return &Future{
		op:        op,
		sessionID: sessionID,
		done:      make(chan struct{}),
	}
}

// resolve stores the outcome and reports whether this call was the one
// that resolved the future.
func (f *Future) resolve(value string, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
		resolved = true
	})
	return resolved
}

// Operation returns the dispatched operation.
func (f *Future) Operation() Operation { return f.op }

// SessionID returns the protocol session id assigned at dispatch.
func (f *Future) SessionID() string { return f.sessionID }

// Done is closed once the future is resolved.
func (f *Future) Done() <-chan struct{} { return f.done }

// Resolved reports whether a result is available without blocking.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result blocks until the future is resolved.
func (f *Future) Result() (string, error) {
	<-f.done
	return f.value, f.err
}

// Await waits for the result or for ctx to end. Returning on ctx only
// abandons interest; the operation keeps running and still resolves.
func (f *Future) Await(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
