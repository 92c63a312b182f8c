package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrSuperseded is the cancellation cause of a handle replaced by a newer
// operation in the same slot.
var ErrSuperseded = errors.New("superseded by a newer operation")

// ErrCancelledByCaller is the cancellation cause of an explicit Cancel.
var ErrCancelledByCaller = errors.New("cancelled by caller")

// OperationHandle is one in-flight transcription or enhancement. Progress
// runs from 0 to 100 and never decreases.
type OperationHandle struct {
	id       string
	slot     string
	ctx      context.Context
	cancel   context.CancelCauseFunc
	progress atomic.Int32
}

func newHandle(parent context.Context, slot string) *OperationHandle {
	ctx, cancel := context.WithCancelCause(parent)
	return &OperationHandle{id: uuid.NewString(), slot: slot, ctx: ctx, cancel: cancel}
}

// ID returns the operation ID.
func (h *OperationHandle) ID() string { return h.id }

// Slot returns the owning slot's name.
func (h *OperationHandle) Slot() string { return h.slot }

// Context is cancelled when the operation is cancelled or superseded.
func (h *OperationHandle) Context() context.Context { return h.ctx }

// Progress returns the last reported percentage.
func (h *OperationHandle) Progress() int { return int(h.progress.Load()) }

// Report raises progress to pct. Lower values are ignored and values
// above 100 clamp.
func (h *OperationHandle) Report(pct int) {
	if h == nil {
		return
	}
	pct = min(pct, 100)
	for {
		cur := h.progress.Load()
		if int32(pct) <= cur || h.progress.CompareAndSwap(cur, int32(pct)) {
			return
		}
	}
}

// Cancel cancels the operation.
func (h *OperationHandle) Cancel() { h.cancel(ErrCancelledByCaller) }

// Cancelled reports whether the operation has been cancelled.
func (h *OperationHandle) Cancelled() bool { return h.ctx.Err() != nil }

// Bind returns a child of ctx that is also cancelled, with the same cause,
// when h is. The release func must be called when the work ends. A nil
// handle returns ctx unchanged.
func (h *OperationHandle) Bind(ctx context.Context) (context.Context, func()) {
	if h == nil {
		return ctx, func() {}
	}
	ctx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(h.ctx, func() { cancel(context.Cause(h.ctx)) })
	if h.Cancelled() {
		cancel(context.Cause(h.ctx))
	}
	return ctx, func() {
		stop()
		cancel(nil)
	}
}

// Slot holds at most one current operation. Beginning a new operation
// cancels the previous one.
type Slot struct {
	name    string
	mu      sync.Mutex
	current *OperationHandle
}

// Standard slot names.
const (
	SlotTranscription = "transcription"
	SlotEnhancement   = "enhancement"
)

// NewSlot creates a named slot.
func NewSlot(name string) *Slot {
	return &Slot{name: name}
}

// Name returns the slot name.
func (s *Slot) Name() string { return s.name }

// Begin starts a new operation derived from parent, cancelling the
// slot's previous operation.
func (s *Slot) Begin(parent context.Context) *OperationHandle {
	h := newHandle(parent, s.name)
	s.mu.Lock()
	prev := s.current
	s.current = h
	s.mu.Unlock()
	if prev != nil {
		prev.cancel(ErrSuperseded)
	}
	return h
}

// Current returns the current operation, or nil.
func (s *Slot) Current() *OperationHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Cancel cancels the current operation. It reports whether one was
// running.
func (s *Slot) Cancel() bool {
	s.mu.Lock()
	h := s.current
	s.current = nil
	s.mu.Unlock()
	if h == nil {
		return false
	}
	h.Cancel()
	return true
}

// Finish releases h's resources and clears it if it is still current.
func (s *Slot) Finish(h *OperationHandle) {
	s.mu.Lock()
	if s.current == h {
		s.current = nil
	}
	s.mu.Unlock()
	h.cancel(nil)
}
