package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbukum/scribe/enhance"
	"github.com/kbukum/scribe/orchestrator"
	"github.com/kbukum/scribe/stream"
	"github.com/kbukum/scribe/transcription"
)

type transcribeOptions struct {
	model        string
	language     string
	diarize      bool
	minSpeakers  int
	maxSpeakers  int
	stream       bool
	chunkSeconds float64
	enhance      bool
	jsonOutput   bool
}

func newTranscribeCmd(opts *rootOptions) *cobra.Command {
	o := &transcribeOptions{}
	cmd := &cobra.Command{
		Use:   "transcribe <file.wav>",
		Short: "Transcribe a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := readAudio(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd.Context(), func(ctx context.Context, app *app) error {
				return runTranscribe(ctx, app, o, a, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.model, "model", "m", "", "model id (default: router.default_model or the device recommendation)")
	f.StringVarP(&o.language, "language", "l", "", "language hint, e.g. en")
	f.BoolVarP(&o.diarize, "diarize", "d", false, "label speakers")
	f.IntVar(&o.minSpeakers, "min-speakers", 0, "lower bound on speakers")
	f.IntVar(&o.maxSpeakers, "max-speakers", 0, "upper bound on speakers")
	f.BoolVar(&o.stream, "stream", false, "print segments as they arrive")
	f.Float64Var(&o.chunkSeconds, "live-chunks", 0, "transcribe in concurrent chunks of this many seconds")
	f.BoolVar(&o.enhance, "enhance", false, "also generate a title and summary")
	f.BoolVar(&o.jsonOutput, "json", false, "print JSON")
	return cmd
}

func readAudio(path string) (transcription.Audio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return transcription.Audio{}, fmt.Errorf("read audio: %w", err)
	}
	return transcription.Audio{Data: data, FileName: filepath.Base(path), ContentType: "audio/wav"}, nil
}

// segmentPrinter writes one line per segment.
type segmentPrinter struct {
	w io.Writer
}

func (p segmentPrinter) OnSegment(s transcription.Segment) {
	fmt.Fprintln(p.w, formatSegment(s))
}

func (segmentPrinter) OnProgress(float64) {}

func formatSegment(s transcription.Segment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%7.2f - %7.2f]", s.Start, s.End)
	if s.Speaker != "" {
		fmt.Fprintf(&b, " %s:", s.Speaker)
	}
	b.WriteString(" ")
	b.WriteString(s.Text)
	return b.String()
}

func runTranscribe(ctx context.Context, a *app, o *transcribeOptions, audio transcription.Audio, stdout, stderr io.Writer) error {
	model := transcription.ModelID(o.model)
	if model == "" {
		model = transcription.ModelID(a.cfg.Router.DefaultModel)
	}
	if model == "" {
		model = a.orch.Profile(ctx).RecommendedModel
	}
	req := orchestrator.TranscribeRequest{
		Model: model,
		Audio: audio,
		Options: transcription.Options{
			Language:    o.language,
			Diarize:     o.diarize,
			MinSpeakers: o.minSpeakers,
			MaxSpeakers: o.maxSpeakers,
		},
	}

	var sink stream.Sink = stream.Discard
	if o.stream && !o.jsonOutput {
		sink = segmentPrinter{w: stdout}
	}

	var (
		t   *transcription.Transcript
		err error
	)
	switch {
	case o.chunkSeconds > 0:
		var results []stream.ChunkResult
		t, results, err = a.orch.TranscribeLive(ctx, orchestrator.LiveRequest{TranscribeRequest: req, ChunkSeconds: o.chunkSeconds}, sink)
		for _, r := range results {
			if r.Err != nil {
				fmt.Fprintf(stderr, "chunk %d failed: %s\n", r.Index, describeError(r.Err))
			}
		}
	case o.stream:
		t, err = a.orch.TranscribeStream(ctx, req, sink)
	default:
		t, err = a.orch.Transcribe(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("transcription failed: %s", describeError(err))
	}

	var e *enhance.Enhancement
	if o.enhance && !t.Flagged {
		res, err := a.orch.Enhance(ctx, t.Text, a.cfg.Enhance.Prompts, a.cfg.Enhance.LocalModel)
		if err != nil {
			return fmt.Errorf("enhancement failed: %s", describeError(err))
		}
		e = &res
	}

	if o.jsonOutput {
		return printJSON(stdout, struct {
			Transcript  *transcription.Transcript `json:"transcript"`
			Enhancement *enhance.Enhancement      `json:"enhancement,omitempty"`
		}{t, e})
	}
	if e != nil {
		fmt.Fprintf(stdout, "# %s\n\n%s\n\n", e.Title, e.Summary)
	}
	if !o.stream {
		for _, s := range t.Segments {
			fmt.Fprintln(stdout, formatSegment(s))
		}
		if len(t.Segments) == 0 {
			fmt.Fprintln(stdout, t.Text)
		}
	}
	fmt.Fprintf(stderr, "backend=%s model=%s device=%s language=%s\n", t.Backend, t.Model, t.Device, t.Language)
	return nil
}
