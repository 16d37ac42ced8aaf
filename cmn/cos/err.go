// Package cos provides common low-level types and utilities shared by the
// client packages: the error kinds from spec §7, plus small syscall-level
// helpers used when classifying a failed dial/send/receive.
package cos

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	ratomic "sync/atomic"
	"syscall"

	"github.com/julea-io/julea/cmn/debug"
)

type (
	// ErrNotFound: metadata lookup returned empty (spec §7).
	ErrNotFound struct {
		what string
	}
	// ErrInvalidArgument: caller bug, e.g. an item name containing '/'.
	ErrInvalidArgument struct {
		what string
	}
	// ErrConflict: a lock acquisition raced and lost.
	ErrConflict struct {
		what string
	}
	// ErrNetwork: connect, send, or receive failed.
	ErrNetwork struct {
		op  string
		err error
	}
	// ErrBackend: the metadata backend rejected a create/put/delete.
	ErrBackend struct {
		op  string
		err error
	}
	// ErrExhausted: reserved for pool-capacity diagnostics; `pop` itself
	// never returns this — per spec §4.2 it blocks instead.
	ErrExhausted struct {
		what string
	}

	// Errs aggregates up to maxErrs distinct errors accumulated across a
	// batch's per-server workers.
	Errs struct {
		errs []error
		cnt  int64
		mu   sync.Mutex
	}
)

const maxErrs = 8

func NewErrNotFound(format string, a ...any) *ErrNotFound {
	return &ErrNotFound{fmt.Sprintf(format, a...)}
}

func (e *ErrNotFound) Error() string { return e.what + " does not exist" }

func IsErrNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

func NewErrInvalidArgument(format string, a ...any) *ErrInvalidArgument {
	return &ErrInvalidArgument{fmt.Sprintf(format, a...)}
}

func (e *ErrInvalidArgument) Error() string { return "invalid argument: " + e.what }

func NewErrConflict(format string, a ...any) *ErrConflict {
	return &ErrConflict{fmt.Sprintf(format, a...)}
}

func (e *ErrConflict) Error() string { return "conflict: " + e.what }

func IsErrConflict(err error) bool {
	var e *ErrConflict
	return errors.As(err, &e)
}

func NewErrNetwork(op string, err error) *ErrNetwork { return &ErrNetwork{op, err} }

func (e *ErrNetwork) Error() string { return fmt.Sprintf("network error during %s: %v", e.op, e.err) }
func (e *ErrNetwork) Unwrap() error { return e.err }

func NewErrBackend(op string, err error) *ErrBackend { return &ErrBackend{op, err} }

func (e *ErrBackend) Error() string { return fmt.Sprintf("backend error during %s: %v", e.op, e.err) }
func (e *ErrBackend) Unwrap() error { return e.err }

func NewErrExhausted(format string, a ...any) *ErrExhausted {
	return &ErrExhausted{fmt.Sprintf(format, a...)}
}

func (e *ErrExhausted) Error() string { return "pool exhausted: " + e.what }

//
// Errs
//

func (e *Errs) Add(err error) {
	debug.Assert(err != nil)
	e.mu.Lock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			e.mu.Unlock()
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
		ratomic.StoreInt64(&e.cnt, int64(len(e.errs)))
	}
	e.mu.Unlock()
}

func (e *Errs) Cnt() int { return int(ratomic.LoadInt64(&e.cnt)) }

func (e *Errs) Err() error {
	if e.Cnt() == 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return errors.Join(e.errs...)
}

//
// syscall/conn classification of a failed dial/send/receive
//

func IsErrConnectionRefused(err error) bool { return errors.Is(err, syscall.ECONNREFUSED) }
func IsErrConnectionReset(err error) bool   { return errors.Is(err, syscall.ECONNRESET) }
func IsErrBrokenPipe(err error) bool        { return errors.Is(err, syscall.EPIPE) }

func IsRetriableConnErr(err error) bool {
	return IsErrConnectionRefused(err) || IsErrConnectionReset(err) || IsErrBrokenPipe(err)
}

func isErrDNSLookup(err error) bool {
	var e *net.DNSError
	return errors.As(err, &e)
}

func IsUnreachable(err error) bool {
	return IsErrConnectionRefused(err) || isErrDNSLookup(err) || errors.Is(err, os.ErrDeadlineExceeded)
}

//
// fatal programming errors (spec §7): invalid semantics enum, nil item
// pointer, etc. — abort loudly rather than surface as a batch failure.
//

func Assertf(cond bool, format string, a ...any) {
	if !cond {
		panic(fmt.Sprintf(format, a...))
	}
}
