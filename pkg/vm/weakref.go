package vm

import (
	goruntime "runtime"
	"weak"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"escore/pkg/value"
)

// KeepDuringJob retains obj strongly until the current job finishes, so a
// WeakRef that was just created or dereferenced stays alive for the rest
// of the job.
func (w *World) KeepDuringJob(obj *value.Object) {
	w.kept[obj] = struct{}{}
}

// ClearKeptObjects drops the retention set. It runs after every job.
func (w *World) ClearKeptObjects() {
	if len(w.kept) > 0 {
		w.kept = make(map[*value.Object]struct{})
	}
}

// KeptObjects returns the size of the retention set.
func (w *World) KeptObjects() int { return len(w.kept) }

// WeakRef holds its target without keeping it alive.
type WeakRef struct {
	world  *World
	target weak.Pointer[value.Object]
}

// NewWeakRef creates a weak reference to target.
func (w *World) NewWeakRef(target *value.Object) *WeakRef {
	w.KeepDuringJob(target)
	return &WeakRef{world: w, target: weak.Make(target)}
}

// Deref returns the target, or nil once it has been collected.
func (r *WeakRef) Deref() *value.Object {
	obj := r.target.Value()
	if obj != nil {
		r.world.KeepDuringJob(obj)
	}
	return obj
}

// FinalizationCell is one registration in a FinalizationRegistry.
type FinalizationCell struct {
	registry   *FinalizationRegistry
	held       value.Value
	token      weak.Pointer[value.Object]
	hasToken   bool
	cleanup    goruntime.Cleanup
	registered bool
}

// FinalizationRegistry calls its cleanup callback with the held value of
// each registered target after the target is collected.
type FinalizationRegistry struct {
	world   *World
	cleanup value.Value
	cells   *linkedhashmap.Map // *FinalizationCell -> struct{}
}

// NewFinalizationRegistry creates a registry with the given callback.
func (w *World) NewFinalizationRegistry(cleanup value.Value) *FinalizationRegistry {
	return &FinalizationRegistry{world: w, cleanup: cleanup, cells: linkedhashmap.New()}
}

// Register arranges for cleanup(held) to run as a finalizer job after
// target is collected. token, when non-nil, can later Unregister the cell;
// it is held weakly, so token may be target itself. held must not
// reference target, or target is never collected.
func (fr *FinalizationRegistry) Register(target *value.Object, held value.Value, token *value.Object) *FinalizationCell {
	cell := &FinalizationCell{registry: fr, held: held, registered: true}
	if token != nil {
		cell.token = weak.Make(token)
		cell.hasToken = true
	}
	w := fr.world
	cell.cleanup = goruntime.AddCleanup(target, w.NotifyCollected, cell)
	fr.cells.Put(cell, struct{}{})
	return cell
}

// Unregister removes every cell registered with token.
func (fr *FinalizationRegistry) Unregister(token *value.Object) bool {
	if token == nil {
		return false
	}
	removed := false
	for _, k := range fr.cells.Keys() {
		cell := k.(*FinalizationCell)
		if cell.hasToken && cell.token.Value() == token {
			cell.registered = false
			cell.cleanup.Stop()
			fr.cells.Remove(cell)
			removed = true
		}
	}
	return removed
}

// Registered returns the number of live registrations.
func (fr *FinalizationRegistry) Registered() int { return fr.cells.Size() }

// NotifyCollected is the collector's notification that a cell's target is
// gone. It may be called from any goroutine; the cell is turned into a
// finalizer job after the next job completes.
func (w *World) NotifyCollected(cell *FinalizationCell) {
	w.collectedMu.Lock()
	defer w.collectedMu.Unlock()
	w.collected = append(w.collected, cell)
}

// drainCollected turns collector notifications into finalizer jobs.
func (w *World) drainCollected() {
	w.collectedMu.Lock()
	cells := w.collected
	w.collected = nil
	w.collectedMu.Unlock()

	for _, cell := range cells {
		if !cell.registered {
			continue
		}
		cell.registered = false
		fr := cell.registry
		fr.cells.Remove(cell)
		held := cell.held
		w.EnqueueJob(FinalizerQueue, func() error {
			_, err := value.Call(fr.cleanup, value.Undefined, held)
			return err
		})
	}
}

// rejectionTracker keeps rejected promises without handlers in rejection
// order.
type rejectionTracker struct {
	pending *linkedhashmap.Map // *value.Object -> value.Value
}

func newRejectionTracker() *rejectionTracker {
	return &rejectionTracker{pending: linkedhashmap.New()}
}

func (t *rejectionTracker) add(promise *value.Object, reason value.Value) {
	t.pending.Put(promise, reason)
}

func (t *rejectionTracker) remove(promise *value.Object) {
	t.pending.Remove(promise)
}

// takeFirst returns the oldest unhandled reason and clears the tracker.
func (t *rejectionTracker) takeFirst() (value.Value, bool) {
	if t.pending.Empty() {
		return value.Undefined, false
	}
	reason := t.pending.Values()[0].(value.Value)
	t.pending.Clear()
	return reason, true
}
