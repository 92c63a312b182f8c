package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kbukum/scribe/audio"
	"github.com/kbukum/scribe/device"
	"github.com/kbukum/scribe/engine"
	"github.com/kbukum/scribe/enhance"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/observability"
	"github.com/kbukum/scribe/provider"
	"github.com/kbukum/scribe/router"
	"github.com/kbukum/scribe/stream"
	"github.com/kbukum/scribe/transcription"
)

// Profiler measures the host. *device.Profiler implements it.
type Profiler interface {
	Profile(ctx context.Context) device.Profile
	Refresh(ctx context.Context) device.Profile
}

// Deps are the components an Orchestrator coordinates.
type Deps struct {
	Profiler Profiler
	Router   *router.Router
	Engine   *engine.Engine
	Enhancer *enhance.Pipeline
	// Backends resolves streaming-capable backends by kind.
	Backends *provider.Registry[transcription.Backend]
	Metrics  *observability.Metrics
	Logger   *logger.Logger
}

// Orchestrator is the entry point for callers: it routes, executes, and
// enhances, keeping one transcription and one enhancement in flight.
type Orchestrator struct {
	deps           Deps
	transcriptions *engine.Slot
	enhancements   *engine.Slot
	log            *logger.Logger
}

// New creates an Orchestrator.
func New(deps Deps) *Orchestrator {
	log := deps.Logger
	if log == nil {
		log = logger.WithComponent("orchestrator")
	}
	return &Orchestrator{
		deps:           deps,
		transcriptions: engine.NewSlot(engine.SlotTranscription),
		enhancements:   engine.NewSlot(engine.SlotEnhancement),
		log:            log,
	}
}

// TranscribeRequest is one transcription call.
type TranscribeRequest struct {
	Model   transcription.ModelID
	Audio   transcription.Audio
	Options transcription.Options
}

// ProcessRequest transcribes and then enhances.
type ProcessRequest struct {
	TranscribeRequest
	Prompts    enhance.Prompts
	LocalModel string
}

// ProcessResult is the full pipeline output.
type ProcessResult struct {
	Title      string                    `json:"title"`
	Summary    string                    `json:"summary"`
	Source     enhance.Source            `json:"source"`
	Transcript *transcription.Transcript `json:"transcript"`
}

// Profile returns the cached capability profile.
func (o *Orchestrator) Profile(ctx context.Context) device.Profile {
	return o.deps.Profiler.Profile(ctx)
}

// RefreshProfile re-measures the host.
func (o *Orchestrator) RefreshProfile(ctx context.Context) device.Profile {
	return o.deps.Profiler.Refresh(ctx)
}

// Backends probes every configured backend.
func (o *Orchestrator) Backends(ctx context.Context) []transcription.BackendDescriptor {
	return o.deps.Router.Probe(ctx)
}

// Plan returns the attempt plan for model without running it.
func (o *Orchestrator) Plan(ctx context.Context, model transcription.ModelID, diarize bool) (router.Plan, error) {
	return o.deps.Router.Route(ctx, router.Request{Model: model, WantsDiarization: diarize})
}

// Transcribe runs a batch transcription in the transcription slot,
// superseding any transcription already running.
func (o *Orchestrator) Transcribe(ctx context.Context, req TranscribeRequest) (*transcription.Transcript, error) {
	h := o.transcriptions.Begin(ctx)
	defer o.transcriptions.Finish(h)
	return o.transcribe(h.Context(), h, req)
}

func (o *Orchestrator) transcribe(ctx context.Context, h *engine.OperationHandle, req TranscribeRequest) (*transcription.Transcript, error) {
	log := o.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldOperationID, h.ID()))
	plan, err := o.Plan(ctx, req.Model, req.Options.Diarize)
	if err != nil {
		log.Warn("routing failed", logger.Fields(logger.FieldModel, req.Model, logger.FieldError, err.Error()))
		return nil, err
	}
	return o.deps.Engine.Execute(ctx, h, engine.Job{Model: req.Model, Audio: req.Audio, Options: req.Options}, plan)
}

// TranscribeStream transcribes while delivering segments to sink. When the
// first planned backend streams, its events are relayed as they arrive; if
// that stream fails before emitting anything the remaining plan runs in
// batch. Otherwise the plan runs in batch and its segments are relayed on
// completion.
func (o *Orchestrator) TranscribeStream(ctx context.Context, req TranscribeRequest, sink stream.Sink) (*transcription.Transcript, error) {
	h := o.transcriptions.Begin(ctx)
	defer o.transcriptions.Finish(h)
	ctx = h.Context()
	if sink == nil {
		sink = stream.Discard
	}

	plan, err := o.Plan(ctx, req.Model, req.Options.Diarize)
	if err != nil {
		return nil, err
	}
	job := engine.Job{Model: req.Model, Audio: req.Audio, Options: req.Options}

	if s, first, ok := o.streamerFor(plan); ok {
		counted := &countingSink{Sink: sink}
		streamCtx, cancel := context.WithTimeout(ctx, o.deps.Engine.AttemptTimeout(first.Kind))
		t, err := stream.NewReassembler(first.Kind, job.Model.Canonical()).Consume(streamCtx, s.TranscribeStream(streamCtx, transcription.Request{
			Model:   job.Model.Canonical(),
			Audio:   job.Audio,
			Options: job.Options,
			Device:  first.Device,
		}), 0, counted)
		cancel()
		if err == nil {
			h.Report(100)
			return t, nil
		}
		err = transcription.Classify(first.Kind, job.Model.Canonical(), err)
		if transcription.IsCancelled(err) || counted.n.Load() > 0 || len(plan.Attempts) == 1 {
			return nil, err
		}
		o.log.Warn("stream failed before any segment, continuing in batch", logger.Fields(
			logger.FieldBackend, first.Kind,
			logger.FieldError, err.Error(),
		))
		plan.Attempts = plan.Attempts[1:]
	}

	t, err := o.deps.Engine.Execute(ctx, h, job, plan)
	if err != nil {
		return nil, err
	}
	for _, seg := range t.Segments {
		sink.OnSegment(seg)
	}
	return t, nil
}

// planTimeout bounds a whole batch plan: every attempt plus its possible
// retry on the fallback device.
func (o *Orchestrator) planTimeout(plan router.Plan) time.Duration {
	var total time.Duration
	for _, a := range plan.Attempts {
		total += 2 * o.deps.Engine.AttemptTimeout(a.Kind)
	}
	return total
}

func (o *Orchestrator) streamerFor(plan router.Plan) (transcription.Streamer, router.Attempt, bool) {
	if len(plan.Attempts) == 0 || o.deps.Backends == nil {
		return nil, router.Attempt{}, false
	}
	first := plan.Attempts[0]
	b, ok := transcription.Lookup(o.deps.Backends, first.Kind)
	if !ok {
		return nil, first, false
	}
	s, ok := b.(transcription.Streamer)
	return s, first, ok
}

type countingSink struct {
	stream.Sink
	n atomic.Int64
}

func (c *countingSink) OnSegment(s transcription.Segment) {
	c.n.Add(1)
	c.Sink.OnSegment(s)
}

// LiveRequest transcribes a recording as fixed-length chunks.
type LiveRequest struct {
	TranscribeRequest
	ChunkSeconds  float64
	MaxConcurrent int
}

// TranscribeLive splits the recording into chunks and transcribes them
// concurrently, delivering segments to sink as chunks complete. Failed
// chunks are reported alongside the assembled transcript.
func (o *Orchestrator) TranscribeLive(ctx context.Context, req LiveRequest, sink stream.Sink) (*transcription.Transcript, []stream.ChunkResult, error) {
	h := o.transcriptions.Begin(ctx)
	defer o.transcriptions.Finish(h)
	ctx = h.Context()

	if req.ChunkSeconds <= 0 {
		return nil, nil, fmt.Errorf("chunk duration must be positive")
	}
	plan, err := o.Plan(ctx, req.Model, req.Options.Diarize)
	if err != nil {
		return nil, nil, err
	}
	chunks, err := audio.Chunks(ctx, req.Audio, req.ChunkSeconds)
	if err != nil {
		return nil, nil, transcription.ExecutionFatal(transcription.KindLocal, req.Model, "audio could not be split into chunks", err)
	}

	streamer, first, ok := o.streamerFor(plan)
	kind := first.Kind
	timeout := o.deps.Engine.AttemptTimeout(kind)
	if !ok {
		timeout = o.planTimeout(plan)
		// Each chunk runs the whole plan, so fallbacks apply per chunk.
		streamer = stream.Batch(func(ctx context.Context, r transcription.Request) (*transcription.Result, error) {
			t, err := o.deps.Engine.Execute(ctx, nil, engine.Job{Model: req.Model, Audio: r.Audio, Options: req.Options}, plan)
			if err != nil {
				return nil, err
			}
			return &transcription.Result{Text: t.Text, Segments: t.Segments, Language: t.Language, Device: t.Device}, nil
		})
	}

	chunker := stream.NewLiveChunker(streamer, stream.LiveConfig{
		Kind:          kind,
		Model:         req.Model.Canonical(),
		Options:       req.Options,
		Device:        first.Device,
		ChunkSeconds:  req.ChunkSeconds,
		MaxConcurrent: req.MaxConcurrent,
		Timeout:       timeout,
	}, sink, o.deps.Metrics)
	for i, c := range chunks {
		chunker.Submit(ctx, i, c)
	}
	results := chunker.Wait()
	h.Report(100)
	if err := ctx.Err(); err != nil {
		return nil, results, transcription.Cancelled(context.Cause(ctx))
	}
	return chunker.Assemble(), results, nil
}

// Enhance produces a title and summary in the enhancement slot,
// superseding any enhancement already running.
func (o *Orchestrator) Enhance(ctx context.Context, text string, prompts enhance.Prompts, localModel string) (enhance.Enhancement, error) {
	h := o.enhancements.Begin(ctx)
	defer o.enhancements.Finish(h)
	return o.deps.Enhancer.Enhance(h.Context(), h, text, prompts, localModel)
}

// Process transcribes and enhances. A flagged transcript is returned
// without enhancement: its text is the diagnostic marker.
func (o *Orchestrator) Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	t, err := o.Transcribe(ctx, req.TranscribeRequest)
	if err != nil {
		return nil, err
	}
	res := &ProcessResult{Transcript: t}
	if t.Flagged {
		res.Title = enhance.UntitledTitle
		res.Source = enhance.SourceRuleBased
		return res, nil
	}
	e, err := o.Enhance(ctx, t.Text, req.Prompts, req.LocalModel)
	if err != nil {
		return nil, err
	}
	res.Title, res.Summary, res.Source = e.Title, e.Summary, e.Source
	return res, nil
}

// Cancel cancels the current operation in the named slot. It reports
// whether one was running.
func (o *Orchestrator) Cancel(slot string) (bool, error) {
	switch slot {
	case engine.SlotTranscription:
		return o.transcriptions.Cancel(), nil
	case engine.SlotEnhancement:
		return o.enhancements.Cancel(), nil
	default:
		return false, fmt.Errorf("unknown operation slot %q", slot)
	}
}

// Current returns the running operation's ID and progress in slot.
func (o *Orchestrator) Current(slot string) (id string, progress int, ok bool) {
	var s *engine.Slot
	switch slot {
	case engine.SlotTranscription:
		s = o.transcriptions
	case engine.SlotEnhancement:
		s = o.enhancements
	default:
		return "", 0, false
	}
	h := s.Current()
	if h == nil {
		return "", 0, false
	}
	return h.ID(), h.Progress(), true
}

// Health reports every backend as a service dependency.
func (o *Orchestrator) Health(ctx context.Context) []observability.Health {
	descs := o.Backends(ctx)
	out := make([]observability.Health, len(descs))
	for i, d := range descs {
		h := observability.Health{Name: string(d.Kind), Status: observability.HealthStatusUp}
		if !d.Available {
			h.Status, h.Message = observability.HealthStatusDown, d.Reason
		}
		if d.Endpoint != "" {
			h.Details = map[string]string{"endpoint": d.Endpoint}
		}
		out[i] = h
	}
	return out
}
