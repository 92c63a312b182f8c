package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/kbukum/scribe/errors"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/observability"
	"github.com/kbukum/scribe/router"
	"github.com/kbukum/scribe/transcription"
)

// attemptState is the per-attempt state machine:
//
//	primary(device) --transient on accelerated--> secondary(cpu)
//	primary(device) --any other failure--------> done
//	secondary(cpu)  --any failure--------------> done
type attemptState int

const (
	statePrimary attemptState = iota
	stateSecondary
)

func (s attemptState) String() string {
	if s == stateSecondary {
		return "secondary"
	}
	return "primary"
}

// runAttempt runs one planned attempt, retrying once on the cpu device
// after a transient failure on the accelerated device. It returns the
// device that produced the result.
func (e *Engine) runAttempt(ctx context.Context, job Job, model transcription.ModelID, a router.Attempt) (*transcription.Result, transcription.Device, []transcription.AttemptFailure, error) {
	var failures []transcription.AttemptFailure
	device := a.Device
	state := statePrimary
	for {
		res, err := e.tracedOnce(ctx, job, model, a, device, state)
		if err == nil {
			return res, device, failures, nil
		}
		if ctx.Err() != nil {
			err = transcription.Cancelled(context.Cause(ctx))
		}
		err = transcription.Classify(a.Kind, model, err)
		failures = append(failures, transcription.AttemptFailure{
			Kind:   a.Kind,
			Device: device,
			Code:   string(codeOf(err)),
			Error:  err.Error(),
		})
		if transcription.IsCancelled(err) {
			return nil, device, failures, err
		}

		if state == statePrimary && device == transcription.DeviceAccelerated && transcription.IsTransient(err) {
			e.metrics.RecordFallback(ctx, string(a.Kind)+":"+string(device), string(a.Kind)+":"+string(transcription.DeviceCPU))
			e.log.Warn("accelerated execution failed, retrying on cpu", logger.Fields(
				logger.FieldBackend, a.Kind,
				logger.FieldModel, model,
				logger.FieldError, err.Error(),
			))
			device = transcription.DeviceCPU
			state = stateSecondary
			continue
		}
		return nil, device, failures, err
	}
}

func (e *Engine) tracedOnce(ctx context.Context, job Job, model transcription.ModelID, a router.Attempt, device transcription.Device, state attemptState) (res *transcription.Result, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanAttempt,
		attribute.String(observability.AttrBackend, string(a.Kind)),
		attribute.String(observability.AttrDevice, string(device)),
		attribute.String(observability.AttrModel, string(model)),
		attribute.String("scribe.state", state.String()),
	)
	start := time.Now()
	defer func() {
		outcome := "ok"
		switch {
		case err == nil:
		case transcription.IsCancelled(err):
			outcome = "cancelled"
		case transcription.IsTransient(transcription.Classify(a.Kind, model, err)):
			outcome = "transient"
		default:
			outcome = "failed"
		}
		span.SetAttributes(attribute.String(observability.AttrOutcome, outcome))
		observability.EndSpan(span, err)
		e.metrics.RecordAttempt(ctx, string(a.Kind), string(device), outcome, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.TimeoutFor(a.Kind))
	defer cancel()

	if a.Kind == transcription.KindLocal {
		return e.runLocal(ctx, job, model, device)
	}
	return e.runRemote(ctx, job, model, a, device)
}

func (e *Engine) runRemote(ctx context.Context, job Job, model transcription.ModelID, a router.Attempt, device transcription.Device) (*transcription.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	backend, ok := transcription.Lookup(e.backends, a.Kind)
	if !ok {
		return nil, transcription.ExecutionFatal(a.Kind, model, "backend not configured", nil)
	}
	return backend.Transcribe(ctx, transcription.Request{
		Model:      model,
		Audio:      job.Audio,
		Options:    job.Options,
		Device:     device,
		Credential: a.Credential,
	})
}

// runLocal acquires a session, decodes, and infers, checking cancellation
// between each step. A session acquired here is discarded when the
// attempt fails transiently or is cancelled, and released otherwise.
func (e *Engine) runLocal(ctx context.Context, job Job, model transcription.ModelID, device transcription.Device) (res *transcription.Result, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.sessions == nil || e.decoder == nil {
		return nil, transcription.ExecutionFatal(transcription.KindLocal, model, "in-process inference not configured", nil)
	}

	loadStart := time.Now()
	lease, err := e.sessions.Acquire(ctx, model, device)
	if err != nil {
		return nil, err
	}
	loadMS := time.Since(loadStart).Milliseconds()
	defer func() {
		if err != nil && (ctx.Err() != nil || transcription.IsTransient(transcription.Classify(transcription.KindLocal, model, err))) {
			lease.Discard()
			return
		}
		lease.Release()
	}()

	pcm, err := e.decoder.Decode(ctx, job.Audio)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, transcription.ExecutionFatal(transcription.KindLocal, model, "audio could not be decoded", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess, ok := lease.Session().(LocalSession)
	if !ok {
		return nil, transcription.ExecutionFatal(transcription.KindLocal, model, "session cannot run inference", nil)
	}
	inferStart := time.Now()
	res, err = sess.Infer(ctx, pcm, job.Options)
	if err != nil {
		return nil, err
	}
	if res.Timing.LoadMS == 0 {
		res.Timing.LoadMS = loadMS
	}
	if res.Timing.TranscribeMS == 0 {
		res.Timing.TranscribeMS = time.Since(inferStart).Milliseconds()
	}
	return res, nil
}

func codeOf(err error) apperrors.ErrorCode {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Code
	}
	return apperrors.ErrCodeInternal
}
