package stream

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/scribe/hallucination"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/observability"
	"github.com/kbukum/scribe/resilience"
	"github.com/kbukum/scribe/transcription"
)

const (
	// DefaultMaxConcurrentChunks bounds in-flight live chunks.
	DefaultMaxConcurrentChunks = 2
	// DefaultChunkTimeout bounds one chunk's transcription.
	DefaultChunkTimeout = 15 * time.Minute
)

// LiveConfig configures a LiveChunker.
type LiveConfig struct {
	Kind    transcription.BackendKind
	Model   transcription.ModelID
	Options transcription.Options
	Device  transcription.Device
	// ChunkSeconds is the fixed duration of every chunk. Chunk k's segments
	// are shifted by k × ChunkSeconds.
	ChunkSeconds  float64
	MaxConcurrent int
	// Timeout bounds each chunk once it holds a concurrency slot. An
	// expired chunk fails as a timeout and its siblings carry on.
	Timeout time.Duration
}

// ChunkResult is the outcome of one chunk.
type ChunkResult struct {
	Index      int
	Transcript *transcription.Transcript
	Err        error
}

// LiveChunker transcribes fixed-duration chunks of an ongoing recording
// concurrently. A failing chunk is recorded and never affects its
// siblings.
type LiveChunker struct {
	streamer transcription.Streamer
	cfg      LiveConfig
	bulkhead *resilience.Bulkhead
	sink     Sink
	sinkMu   sync.Mutex
	metrics  *observability.Metrics
	log      *logger.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	results map[int]ChunkResult
}

// NewLiveChunker creates a chunker. Segments from every chunk are
// delivered to sink, one call at a time.
func NewLiveChunker(streamer transcription.Streamer, cfg LiveConfig, sink Sink, metrics *observability.Metrics) *LiveChunker {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrentChunks
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultChunkTimeout
	}
	if sink == nil {
		sink = Discard
	}
	return &LiveChunker{
		streamer: streamer,
		cfg:      cfg,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "live-chunks",
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       resilience.WaitUntilDone,
		}),
		sink:    sink,
		metrics: metrics,
		log:     logger.WithComponent("stream"),
		results: make(map[int]ChunkResult),
	}
}

// Offset returns the time offset of chunk index.
func (c *LiveChunker) Offset(index int) float64 {
	return float64(index) * c.cfg.ChunkSeconds
}

// Submit starts transcribing chunk index in the background.
func (c *LiveChunker) Submit(ctx context.Context, index int, audio transcription.Audio) {
	c.wg.Go(func() {
		t, err := c.run(ctx, index, audio)
		c.mu.Lock()
		c.results[index] = ChunkResult{Index: index, Transcript: t, Err: err}
		c.mu.Unlock()

		outcome := "ok"
		if err != nil {
			outcome = "failed"
			c.log.Warn("live chunk failed", logger.Fields(logger.FieldChunk, index, logger.FieldError, err.Error()))
		}
		c.metrics.RecordChunk(ctx, outcome)
	})
}

func (c *LiveChunker) run(ctx context.Context, index int, audio transcription.Audio) (t *transcription.Transcript, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanLiveChunk, attribute.Int(observability.AttrChunk, index))
	defer func() { observability.EndSpan(span, err) }()

	re := NewReassembler(c.cfg.Kind, c.cfg.Model)
	re.log = c.log
	return resilience.ExecuteWithResult(c.bulkhead, ctx, func() (*transcription.Transcript, error) {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		events := c.streamer.TranscribeStream(ctx, transcription.Request{
			Model:   c.cfg.Model,
			Audio:   audio,
			Options: c.cfg.Options,
			Device:  c.cfg.Device,
		})
		return re.Consume(ctx, events, c.Offset(index), c.lockedSink())
	})
}

func (c *LiveChunker) lockedSink() Sink {
	return SinkFuncs{
		Segment: func(s transcription.Segment) {
			c.sinkMu.Lock()
			defer c.sinkMu.Unlock()
			c.sink.OnSegment(s)
		},
		Progress: func(p float64) {
			c.sinkMu.Lock()
			defer c.sinkMu.Unlock()
			c.sink.OnProgress(p)
		},
	}
}

// Wait blocks until every submitted chunk finishes and returns the
// results in index order.
func (c *LiveChunker) Wait() []ChunkResult {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChunkResult, 0, len(c.results))
	for _, r := range c.results {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b ChunkResult) int { return a.Index - b.Index })
	return out
}

// Assemble waits for every chunk and merges successful chunks in index
// order into one transcript, filtered once more as a whole. Failed chunks
// leave a gap.
func (c *LiveChunker) Assemble() *transcription.Transcript {
	results := c.Wait()
	var (
		segments []transcription.Segment
		texts    []string
		language string
	)
	for _, r := range results {
		if r.Err != nil || r.Transcript == nil || r.Transcript.Flagged {
			continue
		}
		segments = append(segments, r.Transcript.Segments...)
		if txt := strings.TrimSpace(r.Transcript.Text); txt != "" {
			texts = append(texts, txt)
		}
		if language == "" {
			language = r.Transcript.Language
		}
	}
	t, _ := hallucination.CleanTranscript(transcription.Normalize(&transcription.Result{
		Text:     strings.Join(texts, " "),
		Segments: segments,
		Language: language,
		Device:   c.cfg.Device,
	}, c.cfg.Kind, c.cfg.Model))
	return t
}
