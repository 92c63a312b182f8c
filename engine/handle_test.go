package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
)

func TestSlot_BeginCancelsPrevious(t *testing.T) {
	is := is.New(t)
	slot := NewSlot(SlotTranscription)

	first := slot.Begin(context.Background())
	second := slot.Begin(context.Background())

	is.True(first.Cancelled())
	is.True(errors.Is(context.Cause(first.Context()), ErrSuperseded))
	is.True(!second.Cancelled())
	is.Equal(slot.Current(), second)
	is.True(first.ID() != second.ID())
	is.Equal(second.Slot(), SlotTranscription)
}

func TestSlot_CancelAndFinish(t *testing.T) {
	is := is.New(t)
	slot := NewSlot(SlotEnhancement)

	is.True(!slot.Cancel())
	h := slot.Begin(context.Background())
	is.True(slot.Cancel())
	is.True(errors.Is(context.Cause(h.Context()), ErrCancelledByCaller))
	is.Equal(slot.Current(), nil)

	h2 := slot.Begin(context.Background())
	slot.Finish(h2)
	is.Equal(slot.Current(), nil)
}

func TestSlots_Independent(t *testing.T) {
	is := is.New(t)
	tr := NewSlot(SlotTranscription)
	en := NewSlot(SlotEnhancement)

	a := tr.Begin(context.Background())
	b := en.Begin(context.Background())
	tr.Begin(context.Background())

	is.True(a.Cancelled())
	is.True(!b.Cancelled())
}

func TestHandle_ProgressMonotonic(t *testing.T) {
	h := NewSlot(SlotTranscription).Begin(context.Background())
	if h.Progress() != 0 {
		t.Fatalf("initial progress = %d", h.Progress())
	}
	for _, p := range []int{10, 5, 40, 40, 30, 150} {
		h.Report(p)
	}
	if h.Progress() != 100 {
		t.Errorf("progress = %d, want 100", h.Progress())
	}

	var nilHandle *OperationHandle
	nilHandle.Report(50)
}

func TestHandle_Bind(t *testing.T) {
	is := is.New(t)
	slot := NewSlot(SlotEnhancement)
	h := slot.Begin(context.Background())

	ctx, release := h.Bind(context.Background())
	defer release()
	is.NoErr(ctx.Err())

	slot.Begin(context.Background())
	<-ctx.Done()
	is.True(errors.Is(context.Cause(ctx), ErrSuperseded))

	var nilHandle *OperationHandle
	bare, done := nilHandle.Bind(context.Background())
	done()
	is.NoErr(bare.Err())
}

func TestHandle_BindAlreadyCancelled(t *testing.T) {
	is := is.New(t)
	slot := NewSlot(SlotTranscription)
	h := slot.Begin(context.Background())
	slot.Cancel()

	ctx, release := h.Bind(context.Background())
	defer release()
	is.True(ctx.Err() != nil)
	is.True(errors.Is(context.Cause(ctx), ErrCancelledByCaller))
}
