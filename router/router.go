package router

import (
	"context"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/scribe/credential"
	"github.com/kbukum/scribe/device"
	"github.com/kbukum/scribe/health"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/observability"
	"github.com/kbukum/scribe/transcription"
)

// DefaultCloudProvider is the credential name used for cloud transcription.
const DefaultCloudProvider = "openai"

// Prober produces fresh backend descriptors.
type Prober interface {
	ProbeAll(ctx context.Context, eps []health.Endpoint) []transcription.BackendDescriptor
}

// ProfileSource supplies the host capability profile.
type ProfileSource interface {
	Profile(ctx context.Context) device.Profile
}

// Capabilities is the set of backend kinds the caller may use. A nil set
// allows every kind.
type Capabilities map[transcription.BackendKind]bool

// AllBackends allows every backend kind.
func AllBackends() Capabilities {
	c := make(Capabilities, len(transcription.Kinds))
	for _, k := range transcription.Kinds {
		c[k] = true
	}
	return c
}

// Allows reports whether kind is enabled.
func (c Capabilities) Allows(kind transcription.BackendKind) bool {
	return c == nil || c[kind]
}

// Request asks for a routing decision.
type Request struct {
	Model            transcription.ModelID
	WantsDiarization bool
}

// Attempt is one planned execution.
type Attempt struct {
	Kind     transcription.BackendKind `json:"kind"`
	Device   transcription.Device      `json:"device,omitempty"`
	Endpoint string                    `json:"endpoint,omitempty"`
	// Credential is the resolved provider secret for cloud attempts.
	Credential string `json:"-"`
}

// Plan is an ordered, tier-ordered attempt list plus the probe snapshot it
// was derived from.
type Plan struct {
	Model       transcription.ModelID             `json:"model"`
	Attempts    []Attempt                         `json:"attempts"`
	Descriptors []transcription.BackendDescriptor `json:"backends"`
}

// Kinds returns the attempt kinds in order.
func (p Plan) Kinds() []transcription.BackendKind {
	out := make([]transcription.BackendKind, len(p.Attempts))
	for i, a := range p.Attempts {
		out[i] = a.Kind
	}
	return out
}

// Config configures a Router.
type Config struct {
	Endpoints     []health.Endpoint
	Capabilities  Capabilities
	CloudProvider string
}

// Router turns a model and feature request into an attempt plan.
type Router struct {
	prober   Prober
	profiles ProfileSource
	creds    *credential.Resolver
	cfg      Config
	log      *logger.Logger
}

// New creates a Router.
func New(prober Prober, profiles ProfileSource, creds *credential.Resolver, cfg Config) *Router {
	if cfg.CloudProvider == "" {
		cfg.CloudProvider = DefaultCloudProvider
	}
	return &Router{
		prober:   prober,
		profiles: profiles,
		creds:    creds,
		cfg:      cfg,
		log:      logger.WithComponent("router"),
	}
}

// Probe returns fresh descriptors for every enabled endpoint.
func (r *Router) Probe(ctx context.Context) []transcription.BackendDescriptor {
	eps := make([]health.Endpoint, 0, len(r.cfg.Endpoints))
	for _, ep := range r.cfg.Endpoints {
		if r.cfg.Capabilities.Allows(ep.Kind) {
			eps = append(eps, ep)
		}
	}
	ctx, span := observability.StartSpan(ctx, observability.SpanHealthProbes)
	defer span.End()
	return r.prober.ProbeAll(ctx, eps)
}

// Route builds the attempt plan. Tiers are considered in priority order
// (aligned diarization, heavy server, cloud, in-process) and an unavailable
// tier is skipped rather than ending the plan.
func (r *Router) Route(ctx context.Context, req Request) (plan Plan, err error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, transcription.Cancelled(err)
	}
	model := req.Model.Canonical()
	tags := model.Tags()

	ctx, span := observability.StartSpan(ctx, observability.SpanRoute,
		attribute.String(observability.AttrModel, string(model)),
		attribute.Bool("scribe.diarize", req.WantsDiarization),
	)
	defer func() { observability.EndSpan(span, err) }()

	plan = Plan{Model: model, Descriptors: r.Probe(ctx)}
	byKind := make(map[transcription.BackendKind]transcription.BackendDescriptor, len(plan.Descriptors))
	for _, d := range plan.Descriptors {
		byKind[d.Kind] = d
	}
	affinity := tags.Affinity()
	eligible := func(kind transcription.BackendKind) (transcription.BackendDescriptor, bool) {
		d, ok := byKind[kind]
		return d, ok && d.Available && r.cfg.Capabilities.Allows(kind) && slices.Contains(affinity, kind)
	}
	remote := func(d transcription.BackendDescriptor) Attempt {
		return Attempt{Kind: d.Kind, Device: transcription.ParseDevice(d.ExecutionDevice), Endpoint: d.Endpoint}
	}

	if tags.CloudSemantic {
		if !r.cfg.Capabilities.Allows(transcription.KindCloud) || !slices.Contains(affinity, transcription.KindCloud) {
			return plan, transcription.NoEligibleBackend(model, req.WantsDiarization)
		}
		key, err := r.creds.Require(ctx, r.cfg.CloudProvider)
		if err != nil {
			return plan, err
		}
		plan.Attempts = append(plan.Attempts, Attempt{Kind: transcription.KindCloud, Credential: key})
		r.logPlan(model, req, plan)
		return plan, nil
	}

	whisperFamily := tags.Diarization || tags.RequiresServer
	if req.WantsDiarization && tags.Diarization {
		if d, ok := eligible(transcription.KindAligned); ok && d.SupportsDiarization {
			plan.Attempts = append(plan.Attempts, remote(d))
		}
	}
	if tags.RequiresServer || (req.WantsDiarization && whisperFamily) {
		if d, ok := eligible(transcription.KindHeavy); ok {
			plan.Attempts = append(plan.Attempts, remote(d))
		}
	}
	if tags.RequiresServer {
		if len(plan.Attempts) == 0 {
			err := transcription.ServerRequired(model)
			if d, ok := byKind[transcription.KindHeavy]; ok {
				err = err.WithCause(d.Err())
			}
			return plan, err
		}
		r.logPlan(model, req, plan)
		return plan, nil
	}

	if slices.Contains(affinity, transcription.KindLocal) && r.localEligible(byKind) {
		plan.Attempts = append(plan.Attempts, Attempt{
			Kind:   transcription.KindLocal,
			Device: r.profiles.Profile(ctx).Device(),
		})
	}
	if len(plan.Attempts) == 0 {
		return plan, transcription.NoEligibleBackend(model, req.WantsDiarization)
	}
	r.logPlan(model, req, plan)
	return plan, nil
}

// localEligible treats a missing in-process descriptor as available: the
// runtime is part of this process unless a probe says otherwise.
func (r *Router) localEligible(byKind map[transcription.BackendKind]transcription.BackendDescriptor) bool {
	if !r.cfg.Capabilities.Allows(transcription.KindLocal) {
		return false
	}
	d, probed := byKind[transcription.KindLocal]
	return !probed || d.Available
}

func (r *Router) logPlan(model transcription.ModelID, req Request, plan Plan) {
	r.log.Info("transcription routed", logger.Fields(
		logger.FieldModel, model,
		"diarize", req.WantsDiarization,
		"attempts", plan.Kinds(),
	))
}

// TierOrdered reports whether attempts never move to a higher-priority
// tier than one already planned.
func TierOrdered(attempts []Attempt) bool {
	return slices.IsSortedFunc(attempts, func(a, b Attempt) int {
		return a.Kind.Tier() - b.Kind.Tier()
	})
}
