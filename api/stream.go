package api

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/scribe/errors"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/server"
	"github.com/kbukum/scribe/sse"
	"github.com/kbukum/scribe/transcription"
)

// eventSink relays segments and progress to an event stream. Write errors
// mean the client went away; the request context ends the transcription.
type eventSink struct {
	w *sse.Writer
}

func (s eventSink) OnSegment(seg transcription.Segment) {
	_ = s.w.Send(sse.EventSegment, seg)
}

func (s eventSink) OnProgress(p float64) {
	_ = s.w.Send(sse.EventProgress, gin.H{"percent": p})
}

// transcribeStream answers with an event stream: progress and segment
// events as they arrive, then one complete event carrying the transcript
// or one error event.
func (h *Handlers) transcribeStream(c *gin.Context) {
	req, err := h.bindTranscription(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	w, err := sse.NewWriter(c.Writer)
	if err != nil {
		server.RespondWithError(c, apperrors.Internal(err))
		return
	}

	done := make(chan struct{})
	defer close(done)
	go w.KeepAliveLoop(done, sse.DefaultKeepAlive)

	ctx := c.Request.Context()
	t, err := h.svc.TranscribeStream(ctx, req, eventSink{w: w})
	if err != nil {
		body := apperrors.Internal(err).ToResponse()
		if appErr, ok := apperrors.AsAppError(err); ok {
			body = appErr.ToResponse()
		}
		if sendErr := w.Send(sse.EventError, body); sendErr != nil {
			h.log.WithContext(ctx).Debug("client left before error event", logger.Fields(logger.FieldError, sendErr.Error()))
		}
		return
	}
	_ = w.Send(sse.EventComplete, t)
}
