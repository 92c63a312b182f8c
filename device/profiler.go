package device

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/scribe/logger"
)

const defaultProbeTimeout = 3 * time.Second

// Profiler computes and caches the host Profile.
type Profiler struct {
	accel    AcceleratorProbe
	memory   MemoryProbe
	cores    func() int
	platform func() string
	timeout  time.Duration
	log      *logger.Logger

	mu     sync.Mutex
	cached *Profile
}

// Option configures a Profiler.
type Option func(*Profiler)

// WithAcceleratorProbe replaces the accelerator probe.
func WithAcceleratorProbe(p AcceleratorProbe) Option {
	return func(pr *Profiler) { pr.accel = p }
}

// WithMemoryProbe replaces the memory probe. A nil probe forces the
// platform heuristic.
func WithMemoryProbe(p MemoryProbe) Option {
	return func(pr *Profiler) { pr.memory = p }
}

// WithHost overrides the platform string and core count.
func WithHost(platform string, cores int) Option {
	return func(pr *Profiler) {
		pr.platform = func() string { return platform }
		pr.cores = func() int { return cores }
	}
}

// WithProbeTimeout bounds each probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(pr *Profiler) { pr.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(pr *Profiler) { pr.log = l }
}

// NewProfiler creates a profiler probing the running host.
func NewProfiler(opts ...Option) *Profiler {
	p := &Profiler{
		accel:    NewSystemAccelerator(),
		memory:   HostMemory{},
		cores:    HostCores,
		platform: HostPlatform,
		timeout:  defaultProbeTimeout,
		log:      logger.WithComponent("device"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Profile returns the cached profile, computing it on first use.
func (p *Profiler) Profile(ctx context.Context) Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached == nil {
		prof := p.measure(ctx)
		p.cached = &prof
	}
	return *p.cached
}

// Refresh recomputes the profile and replaces the cached one.
func (p *Profiler) Refresh(ctx context.Context) Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	prof := p.measure(ctx)
	p.cached = &prof
	return prof
}

// measure never fails. A panicking probe yields the conservative profile.
func (p *Profiler) measure(ctx context.Context) (prof Profile) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn("device probe panicked, using conservative profile", logger.Fields("panic", r))
			prof = Conservative()
		}
	}()

	platform := p.platform()
	family := FamilyOf(platform)
	prof = Profile{Platform: platform, Family: family, CPUCores: p.cores()}
	if prof.CPUCores <= 0 {
		prof.CPUCores = 1
	}

	if p.accel != nil {
		actx, cancel := context.WithTimeout(ctx, p.timeout)
		adapter, err := p.accel.Probe(actx)
		cancel()
		if err != nil {
			p.log.Debug("no accelerator", logger.Fields(logger.FieldError, err.Error()))
		} else if adapter != nil {
			prof.GPUAccelerationAvailable = true
			prof.Adapter = adapter
		}
	}

	prof.EstimatedMemoryGB = EstimateMemoryGB(platform)
	if p.memory != nil {
		mctx, cancel := context.WithTimeout(ctx, p.timeout)
		gb, err := p.memory.TotalGB(mctx)
		cancel()
		if err != nil {
			p.log.Debug("memory hint unavailable, using estimate", logger.Fields(logger.FieldError, err.Error()))
		} else {
			prof.EstimatedMemoryGB = gb
		}
	}

	prof.Tier = Classify(prof.GPUAccelerationAvailable, prof.EstimatedMemoryGB, prof.CPUCores)
	prof.RecommendedModel = Recommend(prof.Tier, family)
	p.log.Debug("device profiled", logger.Fields(
		logger.FieldTier, prof.Tier,
		"memory_gb", prof.EstimatedMemoryGB,
		"cores", prof.CPUCores,
		"accelerated", prof.GPUAccelerationAvailable,
	))
	return prof
}
