package stream

import (
	"context"
	"errors"
	"iter"

	"github.com/kbukum/scribe/hallucination"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/transcription"
)

// Sink receives live output. Segments arrive at most once, in the order
// the backend produced them.
type Sink interface {
	OnSegment(seg transcription.Segment)
	OnProgress(percent float64)
}

// SinkFuncs adapts functions to Sink. Nil fields are skipped.
type SinkFuncs struct {
	Segment  func(transcription.Segment)
	Progress func(float64)
}

func (s SinkFuncs) OnSegment(seg transcription.Segment) {
	if s.Segment != nil {
		s.Segment(seg)
	}
}

func (s SinkFuncs) OnProgress(p float64) {
	if s.Progress != nil {
		s.Progress(p)
	}
}

// Discard is a Sink that drops everything.
var Discard Sink = SinkFuncs{}

// Reassembler consumes a streaming transcription, forwarding segments to a
// sink as they arrive and building the final transcript on completion.
type Reassembler struct {
	Kind  transcription.BackendKind
	Model transcription.ModelID
	log   *logger.Logger
}

// NewReassembler creates a Reassembler for output of kind running model.
func NewReassembler(kind transcription.BackendKind, model transcription.ModelID) *Reassembler {
	return &Reassembler{Kind: kind, Model: model, log: logger.WithComponent("stream")}
}

// Consume reads events until complete, shifting every segment by offset
// seconds. Segments already delivered to sink are not retracted when the
// stream fails. The returned transcript is sorted by start and filtered.
func (r *Reassembler) Consume(ctx context.Context, events iter.Seq2[transcription.Event, error], offset float64, sink Sink) (*transcription.Transcript, error) {
	if sink == nil {
		sink = Discard
	}
	var segments []transcription.Segment
	for ev, err := range events {
		if ctx.Err() != nil {
			return nil, r.contextError(ctx)
		}
		if err != nil {
			return nil, transcription.Classify(r.Kind, r.Model, err)
		}

		switch ev.Type {
		case transcription.EventProgress:
			sink.OnProgress(ev.Progress)
		case transcription.EventSegment:
			seg := ev.Segment.Shift(offset)
			sink.OnSegment(seg)
			segments = append(segments, seg)
		case transcription.EventError:
			msg := ev.Message
			if msg == "" {
				msg = "stream reported an error"
			}
			if transcription.IsTransientMessage(msg) {
				return nil, transcription.ExecutionTransient(r.Kind, r.Model, errors.New(msg))
			}
			return nil, transcription.ExecutionFatal(r.Kind, r.Model, msg, nil)
		case transcription.EventComplete:
			t, report := hallucination.CleanTranscript(transcription.Normalize(&transcription.Result{
				Text:     ev.Text,
				Segments: segments,
				Language: ev.Language,
			}, r.Kind, r.Model))
			if report.Rejected {
				r.log.Warn("streamed transcript rejected as repetitive", logger.Fields(
					logger.FieldBackend, r.Kind,
					logger.FieldModel, r.Model,
				))
			}
			return t, nil
		default:
			r.log.Debug("ignoring stream event", logger.Fields("type", ev.Type))
		}
	}
	if ctx.Err() != nil {
		return nil, r.contextError(ctx)
	}
	return nil, transcription.ExecutionFatal(r.Kind, r.Model, "stream ended before completion", nil)
}

// contextError distinguishes an expired attempt deadline, which is a fatal
// timeout, from cancellation by the operation's owner.
func (r *Reassembler) contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return transcription.ExecutionFatal(r.Kind, r.Model, "timed out", context.Cause(ctx))
	}
	return transcription.Cancelled(context.Cause(ctx))
}

// BatchFunc runs a non-streaming transcription.
type BatchFunc func(ctx context.Context, req transcription.Request) (*transcription.Result, error)

// Batch adapts a batch transcription to the streaming interface: all
// segments are emitted after the call returns, then complete.
func Batch(fn BatchFunc) transcription.Streamer {
	return batchStreamer(fn)
}

type batchStreamer BatchFunc

func (b batchStreamer) TranscribeStream(ctx context.Context, req transcription.Request) iter.Seq2[transcription.Event, error] {
	return func(yield func(transcription.Event, error) bool) {
		res, err := b(ctx, req)
		if err != nil {
			yield(transcription.Event{}, err)
			return
		}
		for _, seg := range res.Segments {
			if !yield(transcription.Event{Type: transcription.EventSegment, Segment: seg}, nil) {
				return
			}
		}
		yield(transcription.Event{Type: transcription.EventComplete, Text: res.Text, Language: res.Language}, nil)
	}
}
