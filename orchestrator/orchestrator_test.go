package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/kbukum/scribe/audio"
	"github.com/kbukum/scribe/device"
	"github.com/kbukum/scribe/engine"
	apperrors "github.com/kbukum/scribe/errors"
	"github.com/kbukum/scribe/enhance"
	"github.com/kbukum/scribe/health"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/observability"
	"github.com/kbukum/scribe/router"
	"github.com/kbukum/scribe/transcription"
)

type fakeProber struct {
	available map[transcription.BackendKind]bool
}

func (f fakeProber) ProbeAll(ctx context.Context, eps []health.Endpoint) []transcription.BackendDescriptor {
	out := make([]transcription.BackendDescriptor, len(eps))
	for i, ep := range eps {
		out[i] = transcription.BackendDescriptor{
			Kind:                ep.Kind,
			Available:           f.available[ep.Kind],
			SupportsDiarization: ep.Kind == transcription.KindAligned,
			ExecutionDevice:     "cuda",
			Endpoint:            ep.URL,
		}
		if !out[i].Available {
			out[i].Reason = "connection refused"
		}
	}
	return out
}

type fixedProfiler struct{ refreshed atomic.Int32 }

func (f *fixedProfiler) Profile(context.Context) device.Profile { return device.Conservative() }
func (f *fixedProfiler) Refresh(ctx context.Context) device.Profile {
	f.refreshed.Add(1)
	return f.Profile(ctx)
}

type batchBackend struct {
	kind  transcription.BackendKind
	calls atomic.Int32
	fn    func(ctx context.Context, req transcription.Request) (*transcription.Result, error)
}

func (b *batchBackend) Name() string                       { return string(b.kind) }
func (b *batchBackend) IsAvailable(context.Context) bool     { return true }
func (b *batchBackend) Kind() transcription.BackendKind     { return b.kind }
func (b *batchBackend) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	b.calls.Add(1)
	return b.fn(ctx, req)
}

type streamingBackend struct {
	batchBackend
	events func(ctx context.Context) iter.Seq2[transcription.Event, error]
}

func (b *streamingBackend) TranscribeStream(ctx context.Context, req transcription.Request) iter.Seq2[transcription.Event, error] {
	return b.events(ctx)
}

type recordingSink struct {
	mu       sync.Mutex
	segments []transcription.Segment
}

func (s *recordingSink) OnSegment(seg transcription.Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = append(s.segments, seg)
}

func (s *recordingSink) OnProgress(float64) {}

func (s *recordingSink) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.segments))
	for i, seg := range s.segments {
		out[i] = seg.Text
	}
	return out
}

func result(segs ...transcription.Segment) *transcription.Result {
	return &transcription.Result{Segments: segs, Language: "en"}
}

func segment(start, end float64, text string) transcription.Segment {
	return transcription.Segment{Start: start, End: end, Text: text}
}

func newOrchestrator(up map[transcription.BackendKind]bool, backends ...transcription.Backend) *Orchestrator {
	return newOrchestratorWith(engine.Config{}, up, backends...)
}

func newOrchestratorWith(cfg engine.Config, up map[transcription.BackendKind]bool, backends ...transcription.Backend) *Orchestrator {
	reg := transcription.NewRegistry()
	for _, b := range backends {
		transcription.Register(reg, b)
	}
	profiler := &fixedProfiler{}
	r := router.New(fakeProber{available: up}, profiler, nil, router.Config{
		Endpoints: []health.Endpoint{
			{Kind: transcription.KindAligned, URL: "http://aligned"},
			{Kind: transcription.KindHeavy, URL: "http://heavy"},
		},
		Capabilities: router.Capabilities{transcription.KindAligned: true, transcription.KindHeavy: true},
	})
	return New(Deps{
		Profiler: profiler,
		Router:   r,
		Engine:   engine.New(reg, nil, nil, cfg, engine.WithLogger(logger.Nop())),
		Enhancer: enhance.New(enhance.Config{}, enhance.WithLogger(logger.Nop())),
		Backends: reg,
		Logger:   logger.Nop(),
	})
}

var bothUp = map[transcription.BackendKind]bool{transcription.KindAligned: true, transcription.KindHeavy: true}

func diarizedRequest() TranscribeRequest {
	return TranscribeRequest{
		Model:   "large-v3",
		Audio:   transcription.Audio{Data: []byte("RIFF"), FileName: "a.wav"},
		Options: transcription.Options{Diarize: true},
	}
}

func TestTranscribe_UsesPlannedBackend(t *testing.T) {
	is := is.New(t)
	heavy := &batchBackend{kind: transcription.KindHeavy, fn: func(context.Context, transcription.Request) (*transcription.Result, error) {
		return result(segment(0, 1, "hello there")), nil
	}}
	o := newOrchestrator(map[transcription.BackendKind]bool{transcription.KindHeavy: true}, heavy)

	tr, err := o.Transcribe(context.Background(), TranscribeRequest{Model: "whisper-large-v3", Audio: transcription.Audio{Data: []byte("RIFF")}})
	is.NoErr(err)
	is.Equal(tr.Backend, transcription.KindHeavy)
	is.Equal(tr.Model, transcription.ModelID("large-v3"))
	is.Equal(tr.Text, "hello there")
	_, _, running := o.Current(engine.SlotTranscription)
	is.True(!running)
}

func TestTranscribe_ServerRequiredWhenHeavyDown(t *testing.T) {
	is := is.New(t)
	o := newOrchestrator(nil)
	_, err := o.Transcribe(context.Background(), TranscribeRequest{Model: "large-v3"})
	is.True(err != nil)
	_, err = o.Plan(context.Background(), "large-v3", false)
	is.True(err != nil)
}

func TestTranscribeStream(t *testing.T) {
	heavyResult := result(segment(0, 2, "from the heavy server"))
	tests := []struct {
		name       string
		events     []transcription.Event
		streamErr  error
		wantErr    bool
		wantTexts  []string
		heavyCalls int32
	}{
		{
			name: "relays streamed segments",
			events: []transcription.Event{
				{Type: transcription.EventSegment, Segment: segment(0, 1, "first part")},
				{Type: transcription.EventSegment, Segment: segment(1, 2, "second part")},
				{Type: transcription.EventComplete, Language: "en"},
			},
			wantTexts: []string{"first part", "second part"},
		},
		{
			name:       "falls back to batch before any segment",
			streamErr:  errors.New("connection reset"),
			wantTexts:  []string{"from the heavy server"},
			heavyCalls: 1,
		},
		{
			name: "fails once segments were delivered",
			events: []transcription.Event{
				{Type: transcription.EventSegment, Segment: segment(0, 1, "first part")},
			},
			streamErr: errors.New("connection reset"),
			wantErr:   true,
			wantTexts: []string{"first part"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			heavy := &batchBackend{kind: transcription.KindHeavy, fn: func(context.Context, transcription.Request) (*transcription.Result, error) {
				return heavyResult, nil
			}}
			aligned := &streamingBackend{
				batchBackend: batchBackend{kind: transcription.KindAligned},
				events: func(ctx context.Context) iter.Seq2[transcription.Event, error] {
					return func(yield func(transcription.Event, error) bool) {
						for _, ev := range tt.events {
							if !yield(ev, nil) {
								return
							}
						}
						if tt.streamErr != nil {
							yield(transcription.Event{}, tt.streamErr)
						}
					}
				},
			}
			o := newOrchestrator(bothUp, aligned, heavy)
			sink := &recordingSink{}

			tr, err := o.TranscribeStream(context.Background(), diarizedRequest(), sink)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(tr.Segments) != len(tt.wantTexts) {
					t.Errorf("segments = %d, want %d", len(tr.Segments), len(tt.wantTexts))
				}
			}
			if got := sink.texts(); fmt.Sprint(got) != fmt.Sprint(tt.wantTexts) {
				t.Errorf("sink = %v, want %v", got, tt.wantTexts)
			}
			if got := heavy.calls.Load(); got != tt.heavyCalls {
				t.Errorf("heavy calls = %d, want %d", got, tt.heavyCalls)
			}
		})
	}
}

func TestTranscribeStream_BatchOnlyRelaysOnCompletion(t *testing.T) {
	is := is.New(t)
	heavy := &batchBackend{kind: transcription.KindHeavy, fn: func(context.Context, transcription.Request) (*transcription.Result, error) {
		return result(segment(0, 1, "alpha beta"), segment(1, 2, "gamma delta")), nil
	}}
	o := newOrchestrator(map[transcription.BackendKind]bool{transcription.KindHeavy: true}, heavy)
	sink := &recordingSink{}

	tr, err := o.TranscribeStream(context.Background(), diarizedRequest(), sink)
	is.NoErr(err)
	is.Equal(len(tr.Segments), 2)
	is.Equal(sink.texts(), []string{"alpha beta", "gamma delta"})
}

func TestCancel_StopsRunningTranscription(t *testing.T) {
	is := is.New(t)
	started := make(chan struct{})
	heavy := &batchBackend{kind: transcription.KindHeavy, fn: func(ctx context.Context, _ transcription.Request) (*transcription.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	o := newOrchestrator(map[transcription.BackendKind]bool{transcription.KindHeavy: true}, heavy)

	done := make(chan error, 1)
	go func() {
		_, err := o.Transcribe(context.Background(), TranscribeRequest{Model: "large-v3"})
		done <- err
	}()
	<-started
	id, _, running := o.Current(engine.SlotTranscription)
	is.True(running)
	is.True(id != "")

	cancelled, err := o.Cancel(engine.SlotTranscription)
	is.NoErr(err)
	is.True(cancelled)

	select {
	case err := <-done:
		is.True(transcription.IsCancelled(err))
	case <-time.After(2 * time.Second):
		t.Fatal("transcription did not stop")
	}

	cancelled, err = o.Cancel(engine.SlotTranscription)
	is.NoErr(err)
	is.True(!cancelled)
}

func TestCancel_UnknownSlot(t *testing.T) {
	o := newOrchestrator(nil)
	if _, err := o.Cancel("upload"); err == nil {
		t.Fatal("expected error for unknown slot")
	}
	if _, _, ok := o.Current("upload"); ok {
		t.Fatal("unknown slot reported a running operation")
	}
}

func TestTranscribeLive_ChunksAreOffset(t *testing.T) {
	is := is.New(t)
	pcm := make([]float32, 2*audio.SampleRate)
	for i := range pcm {
		pcm[i] = float32(i%100) / 200
	}
	wav, err := audio.Encode(pcm)
	is.NoErr(err)

	var n atomic.Int32
	heavy := &batchBackend{kind: transcription.KindHeavy, fn: func(context.Context, transcription.Request) (*transcription.Result, error) {
		words := []string{"opening remarks today", "closing thoughts now"}
		return result(segment(0.1, 0.9, words[(n.Add(1)-1)%2])), nil
	}}
	o := newOrchestrator(map[transcription.BackendKind]bool{transcription.KindHeavy: true}, heavy)
	sink := &recordingSink{}

	tr, results, err := o.TranscribeLive(context.Background(), LiveRequest{
		TranscribeRequest: TranscribeRequest{Model: "large-v3", Audio: transcription.Audio{Data: wav, FileName: "rec.wav"}},
		ChunkSeconds:      1,
	}, sink)
	is.NoErr(err)
	is.Equal(len(results), 2)
	for _, r := range results {
		is.NoErr(r.Err)
	}
	is.Equal(len(tr.Segments), 2)
	is.True(tr.Segments[0].Start < 1)
	is.True(tr.Segments[1].Start >= 1)
	is.Equal(len(sink.texts()), 2)
	is.Equal(heavy.calls.Load(), int32(2))
}

func TestTranscribeLive_RejectsZeroChunk(t *testing.T) {
	o := newOrchestrator(bothUp)
	if _, _, err := o.TranscribeLive(context.Background(), LiveRequest{TranscribeRequest: diarizedRequest()}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestProcess_EnhancesTranscript(t *testing.T) {
	is := is.New(t)
	heavy := &batchBackend{kind: transcription.KindHeavy, fn: func(context.Context, transcription.Request) (*transcription.Result, error) {
		return result(segment(0, 3, "We reviewed the quarterly budget. We decided to hire two engineers.")), nil
	}}
	o := newOrchestrator(map[transcription.BackendKind]bool{transcription.KindHeavy: true}, heavy)

	res, err := o.Process(context.Background(), ProcessRequest{
		TranscribeRequest: TranscribeRequest{Model: "large-v3"},
		LocalModel:        enhance.NoLocalModel,
	})
	is.NoErr(err)
	is.Equal(res.Source, enhance.SourceRuleBased)
	is.True(res.Title != "")
	is.Equal(res.Transcript.Backend, transcription.KindHeavy)
}

func TestEnhance_RuleBasedWithoutModels(t *testing.T) {
	is := is.New(t)
	o := newOrchestrator(nil)
	e, err := o.Enhance(context.Background(), "", enhance.Prompts{}, enhance.NoLocalModel)
	is.NoErr(err)
	is.Equal(e.Title, enhance.UntitledTitle)
}

func TestHealth_ReportsBackends(t *testing.T) {
	is := is.New(t)
	o := newOrchestrator(map[transcription.BackendKind]bool{transcription.KindAligned: true})
	got := o.Health(context.Background())
	is.Equal(len(got), 2)
	is.Equal(got[0].Status, observability.HealthStatusUp)
	is.Equal(got[1].Status, observability.HealthStatusDown)
	is.Equal(got[1].Message, "connection refused")
}

func TestRefreshProfile(t *testing.T) {
	is := is.New(t)
	o := newOrchestrator(nil)
	o.RefreshProfile(context.Background())
	is.Equal(o.deps.Profiler.(*fixedProfiler).refreshed.Load(), int32(1))
	is.Equal(o.Profile(context.Background()).Tier, device.Conservative().Tier)
}

// stallingEvents blocks like a sidecar that sent headers and went quiet.
func stallingEvents(sawDeadline *atomic.Bool) func(ctx context.Context) iter.Seq2[transcription.Event, error] {
	return func(ctx context.Context) iter.Seq2[transcription.Event, error] {
		return func(yield func(transcription.Event, error) bool) {
			_, ok := ctx.Deadline()
			sawDeadline.Store(ok)
			<-ctx.Done()
			yield(transcription.Event{}, ctx.Err())
		}
	}
}

func TestTranscribeStream_StalledStreamTimesOut(t *testing.T) {
	is := is.New(t)
	var sawDeadline atomic.Bool
	aligned := &streamingBackend{
		batchBackend: batchBackend{kind: transcription.KindAligned},
		events:       stallingEvents(&sawDeadline),
	}
	heavy := &batchBackend{kind: transcription.KindHeavy, fn: func(context.Context, transcription.Request) (*transcription.Result, error) {
		return result(segment(0, 2, "from the heavy server")), nil
	}}
	o := newOrchestratorWith(engine.Config{RemoteTimeout: 30 * time.Millisecond}, bothUp, aligned, heavy)

	sink := &recordingSink{}
	done := make(chan struct{})
	var (
		tr  *transcription.Transcript
		err error
	)
	go func() {
		defer close(done)
		tr, err = o.TranscribeStream(context.Background(), diarizedRequest(), sink)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stalled stream was never bounded")
	}
	is.NoErr(err)
	is.True(sawDeadline.Load())
	is.Equal(tr.Backend, transcription.KindHeavy)
	is.Equal(sink.texts(), []string{"from the heavy server"})
	is.Equal(heavy.calls.Load(), int32(1))
}

func TestTranscribeStream_StalledOnlyAttemptIsTimeout(t *testing.T) {
	is := is.New(t)
	var sawDeadline atomic.Bool
	aligned := &streamingBackend{
		batchBackend: batchBackend{kind: transcription.KindAligned},
		events:       stallingEvents(&sawDeadline),
	}
	up := map[transcription.BackendKind]bool{transcription.KindAligned: true}
	o := newOrchestratorWith(engine.Config{RemoteTimeout: 30 * time.Millisecond}, up, aligned)

	req := diarizedRequest()
	req.Model = "small"
	_, err := o.TranscribeStream(context.Background(), req, nil)
	is.True(err != nil)
	is.True(!transcription.IsCancelled(err))
	is.True(apperrors.HasCode(err, apperrors.ErrCodeExecutionFatal))
}
