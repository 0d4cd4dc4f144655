package fs

import (
	"context"
	"errors"
	"io"
	"log"
)

// Op is a single decoded filesystem operation, bound to the dispatcher
// call a Session should make for it.
type Op struct {
	// Name is the short operation name used for metrics and log lines
	// ("lookup", "mkdir", ...).
	Name string

	// Exec invokes the bound operation against fsys and reports its
	// error, if any.
	Exec func(fsys *FileSystem) error
}

// OpSource decodes the next operation from a transport. Next returns
// io.EOF once the transport has closed cleanly; any other error
// terminates the session as a transport fault. The binding of OpSource to
// the real kernel transport is out of scope here (fuseadapter instead
// lets github.com/jacobsa/fuse drive dispatch directly, matching this
// project's decision not to reimplement kernel framing); OpSource exists
// so the begin/end/log loop itself is transport-agnostic and testable.
type OpSource interface {
	Next(ctx context.Context) (Op, error)
}

// Hook is the begin/end pair a Session invokes around every dispatched
// operation. *metrics.Hook satisfies this.
type Hook interface {
	Begin(op string) (end func(err error))
}

// Session runs a synchronous fetch-dispatch-log loop over an OpSource,
// matching original_source's MetricsHook-wrapped dispatch loop: each
// operation is timed by Hook, dispatched, and any resulting error is
// logged (not fatal) before the loop fetches the next one.
type Session struct {
	FS     *FileSystem
	Hook   Hook
	Logger *log.Logger
}

// NewSession builds a Session. logger may be nil, in which case per-op
// errors are still metered via Hook but not logged.
func NewSession(fsys *FileSystem, hook Hook, logger *log.Logger) *Session {
	return &Session{FS: fsys, Hook: hook, Logger: logger}
}

// Run pulls and dispatches operations from src until it reports io.EOF
// (clean shutdown, nil returned) or any other error (returned as-is,
// ending the session).
func (s *Session) Run(ctx context.Context, src OpSource) error {
	for {
		op, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		end := s.Hook.Begin(op.Name)
		opErr := op.Exec(s.FS)
		end(opErr)

		if opErr != nil && s.Logger != nil {
			s.Logger.Printf("%s: %v", op.Name, opErr)
		}
	}
}
