package api

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/scribe/device"
	"github.com/kbukum/scribe/engine"
	"github.com/kbukum/scribe/enhance"
	apperrors "github.com/kbukum/scribe/errors"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/orchestrator"
	"github.com/kbukum/scribe/router"
	"github.com/kbukum/scribe/server"
	"github.com/kbukum/scribe/stream"
	"github.com/kbukum/scribe/transcription"
	"github.com/kbukum/scribe/validation"
)

// Service is the orchestrator surface the handlers use.
// *orchestrator.Orchestrator implements it.
type Service interface {
	Profile(ctx context.Context) device.Profile
	RefreshProfile(ctx context.Context) device.Profile
	Backends(ctx context.Context) []transcription.BackendDescriptor
	Plan(ctx context.Context, model transcription.ModelID, diarize bool) (router.Plan, error)
	Transcribe(ctx context.Context, req orchestrator.TranscribeRequest) (*transcription.Transcript, error)
	TranscribeStream(ctx context.Context, req orchestrator.TranscribeRequest, sink stream.Sink) (*transcription.Transcript, error)
	Enhance(ctx context.Context, text string, prompts enhance.Prompts, localModel string) (enhance.Enhancement, error)
	Cancel(slot string) (bool, error)
	Current(slot string) (id string, progress int, ok bool)
}

// Config holds request defaults.
type Config struct {
	// DefaultModel is used when a transcription request names none.
	DefaultModel transcription.ModelID
	// LocalModel is the local LLM used when an enhancement request names
	// none. enhance.NoLocalModel disables the local tier.
	LocalModel string
	Prompts    enhance.Prompts
}

// Handlers serves the /v1 API.
type Handlers struct {
	svc Service
	cfg Config
	log *logger.Logger
}

// New creates Handlers.
func New(svc Service, cfg Config, log *logger.Logger) *Handlers {
	if log == nil {
		log = logger.WithComponent("api")
	}
	return &Handlers{svc: svc, cfg: cfg, log: log}
}

// Register mounts the API routes on r.
func (h *Handlers) Register(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.GET("/device", h.device)
	v1.GET("/backends", h.backends)
	v1.POST("/transcriptions", h.transcribe)
	v1.POST("/transcriptions/stream", h.transcribeStream)
	v1.POST("/enhancements", h.enhance)
	v1.GET("/operations/:slot", h.operation)
	v1.DELETE("/operations/:slot", h.cancel)
}

func (h *Handlers) device(c *gin.Context) {
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		server.RespondOK(c, h.svc.RefreshProfile(c.Request.Context()))
		return
	}
	server.RespondOK(c, h.svc.Profile(c.Request.Context()))
}

// backends lists probed backends, or the attempt plan when a model is given.
func (h *Handlers) backends(c *gin.Context) {
	ctx := c.Request.Context()
	model := c.Query("model")
	if model == "" {
		server.RespondOK(c, h.svc.Backends(ctx))
		return
	}
	diarize, _ := strconv.ParseBool(c.Query("diarize"))
	plan, err := h.svc.Plan(ctx, transcription.ModelID(model), diarize)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, plan)
}

type transcriptionForm struct {
	Model       string                `form:"model"`
	Language    string                `form:"language" validate:"omitempty,max=16"`
	Diarize     bool                  `form:"diarize"`
	MinSpeakers int                   `form:"min_speakers" validate:"gte=0"`
	MaxSpeakers int                   `form:"max_speakers" validate:"gte=0"`
	Audio       *multipart.FileHeader `form:"audio" validate:"required"`
}

func (h *Handlers) bindTranscription(c *gin.Context) (orchestrator.TranscribeRequest, error) {
	var form transcriptionForm
	if err := c.ShouldBind(&form); err != nil {
		return orchestrator.TranscribeRequest{}, apperrors.Validation("invalid multipart form").WithCause(err)
	}
	if err := validation.Validate(form); err != nil {
		return orchestrator.TranscribeRequest{}, err
	}
	if form.MaxSpeakers > 0 && form.MaxSpeakers < form.MinSpeakers {
		return orchestrator.TranscribeRequest{}, apperrors.InvalidInput("max_speakers", "must not be less than min_speakers")
	}

	f, err := form.Audio.Open()
	if err != nil {
		return orchestrator.TranscribeRequest{}, apperrors.InvalidInput("audio", "could not be read")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return orchestrator.TranscribeRequest{}, apperrors.InvalidInput("audio", "could not be read")
	}
	if len(data) == 0 {
		return orchestrator.TranscribeRequest{}, apperrors.InvalidInput("audio", "is empty")
	}

	model := transcription.ModelID(form.Model)
	if model == "" {
		model = h.cfg.DefaultModel
	}
	if model == "" {
		return orchestrator.TranscribeRequest{}, apperrors.MissingField("model")
	}
	return orchestrator.TranscribeRequest{
		Model: model,
		Audio: transcription.Audio{
			Data:        data,
			FileName:    form.Audio.Filename,
			ContentType: form.Audio.Header.Get("Content-Type"),
		},
		Options: transcription.Options{
			Language:    form.Language,
			Diarize:     form.Diarize,
			MinSpeakers: form.MinSpeakers,
			MaxSpeakers: form.MaxSpeakers,
		},
	}, nil
}

func (h *Handlers) transcribe(c *gin.Context) {
	req, err := h.bindTranscription(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	t, err := h.svc.Transcribe(c.Request.Context(), req)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, t)
}

type enhancementRequest struct {
	Text       string          `json:"text"`
	LocalModel string          `json:"local_model" validate:"omitempty,max=128"`
	Prompts    enhance.Prompts `json:"prompts"`
}

func (h *Handlers) enhance(c *gin.Context) {
	var req enhancementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.Validation("invalid JSON body").WithCause(err))
		return
	}
	if err := validation.Validate(req); err != nil {
		server.RespondWithError(c, err)
		return
	}
	if req.LocalModel == "" {
		req.LocalModel = h.cfg.LocalModel
	}
	if req.Prompts == (enhance.Prompts{}) {
		req.Prompts = h.cfg.Prompts
	}
	e, err := h.svc.Enhance(c.Request.Context(), req.Text, req.Prompts, req.LocalModel)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, e)
}

// Operation is the state of one slot.
type Operation struct {
	Slot     string `json:"slot"`
	Running  bool   `json:"running"`
	ID       string `json:"id,omitempty"`
	Progress int    `json:"progress"`
}

func validSlot(slot string) bool {
	return slot == engine.SlotTranscription || slot == engine.SlotEnhancement
}

func (h *Handlers) operation(c *gin.Context) {
	slot := c.Param("slot")
	if !validSlot(slot) {
		server.RespondWithError(c, apperrors.NotFound("operation slot", slot))
		return
	}
	id, progress, running := h.svc.Current(slot)
	server.RespondOK(c, Operation{Slot: slot, Running: running, ID: id, Progress: progress})
}

func (h *Handlers) cancel(c *gin.Context) {
	slot := c.Param("slot")
	if !validSlot(slot) {
		server.RespondWithError(c, apperrors.NotFound("operation slot", slot))
		return
	}
	cancelled, err := h.svc.Cancel(slot)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.Info("operation cancel requested", logger.Fields(logger.FieldSlot, slot, "cancelled", cancelled))
	c.JSON(http.StatusOK, server.DataResponse{Data: gin.H{"slot": slot, "cancelled": cancelled}})
}
