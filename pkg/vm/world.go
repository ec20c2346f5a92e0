package vm

import (
	"context"
	"fmt"
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/emirpasic/gods/stacks/arraystack"
	"github.com/sirupsen/logrus"

	"escore/pkg/errors"
	"escore/pkg/runtime"
	"escore/pkg/value"
)

// QueueKind selects one of the world's job queues. Queues are drained in
// declaration order.
type QueueKind int

const (
	ScriptQueue QueueKind = iota
	PromiseQueue
	FinalizerQueue
	AsyncQueue

	queueCount
)

func (k QueueKind) String() string {
	switch k {
	case ScriptQueue:
		return "script"
	case PromiseQueue:
		return "promise"
	case FinalizerQueue:
		return "finalizer"
	case AsyncQueue:
		return "async"
	default:
		return fmt.Sprintf("QueueKind(%d)", int(k))
	}
}

// UnhandledRejectionError ends RunJobs when a promise rejection was never
// handled by the time every queue drained.
type UnhandledRejectionError struct {
	Reason value.Value
}

func (e *UnhandledRejectionError) Error() string {
	return "unhandled promise rejection: " + value.Throw(e.Reason).Error()
}

// WorldOption configures a World.
type WorldOption func(*World)

// WithJobSource connects the host event loop.
func WithJobSource(src runtime.JobSource) WorldOption {
	return func(w *World) { w.jobSource = src }
}

// WithLogger sets the logger used by the world and its realms.
func WithLogger(logger logrus.FieldLogger) WorldOption {
	return func(w *World) { w.logger = logger }
}

// WithErrorReporter receives uncaught job errors. Without one they are
// logged at error level.
func WithErrorReporter(report func(error)) WorldOption {
	return func(w *World) { w.ReportError = report }
}

// World is the state shared by all realms of one engine instance: the job
// queues, the execution context stack, the symbol registry, weak reference
// bookkeeping and the unhandled rejection tracker. A World must only be
// used from one goroutine; host goroutines hand work in through the
// JobSource.
type World struct {
	queues   [queueCount]*linkedlistqueue.Queue
	contexts *arraystack.Stack

	symbols    map[string]*value.Symbol
	symbolKeys map[*value.Symbol]string

	kept map[*value.Object]struct{}

	// collected is fed from runtime cleanup goroutines.
	collectedMu sync.Mutex
	collected   []*FinalizationCell

	rejections *rejectionTracker

	jobSource runtime.JobSource
	// ReportError receives errors escaping jobs.
	ReportError func(error)

	realms      []*Realm
	realmSerial int
	logger      logrus.FieldLogger
}

// NewWorld creates an empty world.
func NewWorld(opts ...WorldOption) *World {
	w := &World{
		contexts:   arraystack.New(),
		symbols:    make(map[string]*value.Symbol),
		symbolKeys: make(map[*value.Symbol]string),
		kept:       make(map[*value.Object]struct{}),
		rejections: newRejectionTracker(),
		logger:     logrus.StandardLogger(),
	}
	for i := range w.queues {
		w.queues[i] = linkedlistqueue.New()
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Logger returns the world's logger.
func (w *World) Logger() logrus.FieldLogger { return w.logger }

// Realms returns the realms created in this world, in creation order.
func (w *World) Realms() []*Realm { return w.realms }

func (w *World) nextRealmID() int {
	w.realmSerial++
	return w.realmSerial
}

func (w *World) addRealm(r *Realm) { w.realms = append(w.realms, r) }

// --- Execution context stack ---

// PushContext makes ctx the running execution context.
func (w *World) PushContext(ctx *ExecutionContext) {
	w.contexts.Push(ctx)
}

// PopContext removes the running execution context.
func (w *World) PopContext() *ExecutionContext {
	v, ok := w.contexts.Pop()
	if !ok {
		errors.Invariant("pop from empty execution context stack")
	}
	return v.(*ExecutionContext)
}

// RunningContext returns the running execution context, or nil.
func (w *World) RunningContext() *ExecutionContext {
	v, ok := w.contexts.Peek()
	if !ok {
		return nil
	}
	return v.(*ExecutionContext)
}

// ContextDepth returns the height of the context stack.
func (w *World) ContextDepth() int { return w.contexts.Size() }

// SuspendRunningContext parks the running context (generator yield) and
// returns it so the generator subsystem can resume it later.
func (w *World) SuspendRunningContext(generator interface{}) *ExecutionContext {
	ctx := w.PopContext()
	ctx.Generator = generator
	return ctx
}

// ResumeContext makes a parked context running again.
func (w *World) ResumeContext(ctx *ExecutionContext) {
	w.PushContext(ctx)
}

// --- Symbol registry ---

// SymbolFor returns the registered symbol for key, creating it on first use.
func (w *World) SymbolFor(key string) *value.Symbol {
	if sym, ok := w.symbols[key]; ok {
		return sym
	}
	sym := value.NewSymbol(key)
	w.symbols[key] = sym
	w.symbolKeys[sym] = key
	return sym
}

// KeyFor returns the registry key of sym. Unregistered and well-known
// symbols report false.
func (w *World) KeyFor(sym *value.Symbol) (string, bool) {
	key, ok := w.symbolKeys[sym]
	return key, ok
}

// --- Job queues ---

// EnqueueJob appends job to the queue of the given kind.
func (w *World) EnqueueJob(kind QueueKind, job runtime.Job) {
	w.queues[kind].Enqueue(job)
}

// Pending reports the number of queued jobs per queue.
func (w *World) Pending() map[QueueKind]int {
	out := make(map[QueueKind]int, queueCount)
	for k, q := range w.queues {
		out[QueueKind(k)] = q.Size()
	}
	return out
}

func (w *World) allEmpty() bool {
	for _, q := range w.queues {
		if !q.Empty() {
			return false
		}
	}
	return true
}

// RunJobs runs the event loop. Each pass drains the script, promise,
// finalizer and async queues fully, in that order, until all four are
// empty at once. An unhandled rejection then ends the loop with an
// *UnhandledRejectionError; otherwise the job source is asked for more
// work, which runs as a script job. RunJobs returns nil when no more work
// can arrive.
func (w *World) RunJobs(ctx context.Context) error {
	for {
		for !w.allEmpty() {
			for k := ScriptQueue; k < queueCount; k++ {
				w.drain(k)
			}
		}
		if reason, ok := w.rejections.takeFirst(); ok {
			return &UnhandledRejectionError{Reason: reason}
		}
		if w.jobSource == nil {
			return nil
		}
		job, ok := w.jobSource.NextJob()
		if !ok {
			job, ok = w.jobSource.AwaitJob(ctx)
		}
		if !ok {
			return ctx.Err()
		}
		w.EnqueueJob(ScriptQueue, job)
	}
}

func (w *World) drain(kind QueueKind) {
	q := w.queues[kind]
	for {
		v, ok := q.Dequeue()
		if !ok {
			return
		}
		w.logger.WithField("queue", kind).Debug("running job")
		w.runJob(v.(runtime.Job))
	}
}

// runJob runs one job to completion and then performs the per-job weak
// reference bookkeeping.
func (w *World) runJob(job runtime.Job) {
	depth := w.contexts.Size()
	if err := job(); err != nil {
		w.reportError(err)
	}
	for w.contexts.Size() > depth {
		w.contexts.Pop()
	}
	w.ClearKeptObjects()
	w.drainCollected()
}

func (w *World) reportError(err error) {
	if w.ReportError != nil {
		w.ReportError(err)
		return
	}
	w.logger.WithError(err).Error("uncaught exception in job")
}

// --- Promise rejection tracking ---

// TrackRejection records that promise was rejected with no handler.
func (w *World) TrackRejection(promise *value.Object, reason value.Value) {
	w.rejections.add(promise, reason)
}

// HandleRejection records that a handler was attached to promise.
func (w *World) HandleRejection(promise *value.Object) {
	w.rejections.remove(promise)
}
