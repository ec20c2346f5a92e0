package runtime

import (
	"context"
	"sync"
)

// Job is a zero-argument unit of deferred work. A job runs to completion;
// a returned error is the job's uncaught exception.
type Job func() error

// JobSource connects the engine to the host event loop (timers, I/O
// completions). It is consulted only when every engine job queue is empty.
type JobSource interface {
	// NextJob returns a ready job without blocking.
	NextJob() (Job, bool)

	// AwaitJob blocks until a job is ready. It returns false when the
	// source can produce no more work or ctx is done.
	AwaitJob(ctx context.Context) (Job, bool)
}

// DefaultJobSource is a thread-safe JobSource fed by host goroutines.
// Hosts bracket each outstanding operation with BeginExternalOp and
// EndExternalOp so AwaitJob knows whether more work can still arrive.
type DefaultJobSource struct {
	mu              sync.Mutex
	ready           []Job
	pendingExternal int
	cond            *sync.Cond
}

// NewDefaultJobSource creates an empty job source
func NewDefaultJobSource() *DefaultJobSource {
	s := &DefaultJobSource{
		ready: make([]Job, 0, 16),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Post makes job available to the engine. Safe to call from any goroutine.
func (s *DefaultJobSource) Post(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = append(s.ready, job)
	s.cond.Broadcast()
}

// Complete posts job and ends one external operation atomically, so a
// waiting engine never observes the operation gone before its result.
func (s *DefaultJobSource) Complete(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = append(s.ready, job)
	s.pendingExternal--
	s.cond.Broadcast()
}

// BeginExternalOp marks the start of an external async operation
func (s *DefaultJobSource) BeginExternalOp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingExternal++
}

// EndExternalOp marks the completion of an external async operation
func (s *DefaultJobSource) EndExternalOp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingExternal--
	s.cond.Broadcast()
}

// HasPendingExternalOps returns true if there are pending external operations
func (s *DefaultJobSource) HasPendingExternalOps() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingExternal > 0
}

// Reset drops ready jobs and forgets pending operations (useful for testing)
func (s *DefaultJobSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = s.ready[:0]
	s.pendingExternal = 0
	s.cond.Broadcast()
}

func (s *DefaultJobSource) pop() Job {
	job := s.ready[0]
	s.ready[0] = nil
	s.ready = s.ready[1:]
	return job
}

func (s *DefaultJobSource) NextJob() (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ready) == 0 {
		return nil, false
	}
	return s.pop(), true
}

func (s *DefaultJobSource) AwaitJob(ctx context.Context) (Job, bool) {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cond.Broadcast()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if len(s.ready) > 0 {
			return s.pop(), true
		}
		if s.pendingExternal <= 0 || ctx.Err() != nil {
			return nil, false
		}
		s.cond.Wait()
	}
}
