package device

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/kbukum/scribe/process"
)

// ErrNoAccelerator is returned by an AcceleratorProbe that found nothing.
var ErrNoAccelerator = errors.New("no accelerated compute adapter")

// AcceleratorProbe looks for an accelerated compute adapter.
type AcceleratorProbe interface {
	Probe(ctx context.Context) (*Adapter, error)
}

// MemoryProbe reports total device memory in GB.
type MemoryProbe interface {
	TotalGB(ctx context.Context) (float64, error)
}

// SystemAccelerator detects Apple Silicon from the build target and NVIDIA
// GPUs through nvidia-smi.
type SystemAccelerator struct {
	GOOS, GOARCH string
	Brand        string
}

// NewSystemAccelerator returns a probe for the running host.
func NewSystemAccelerator() *SystemAccelerator {
	return &SystemAccelerator{GOOS: runtime.GOOS, GOARCH: runtime.GOARCH, Brand: cpuid.CPU.BrandName}
}

// Probe implements AcceleratorProbe.
func (s *SystemAccelerator) Probe(ctx context.Context) (*Adapter, error) {
	if s.GOOS == "darwin" && s.GOARCH == "arm64" {
		name := s.Brand
		if name == "" {
			name = "Apple Silicon"
		}
		return &Adapter{Name: name, Backend: "metal"}, nil
	}

	res, err := process.Run(ctx, process.Command{
		Binary: "nvidia-smi",
		Args:   []string{"--query-gpu=name,memory.total", "--format=csv,noheader,nounits"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoAccelerator, err)
	}
	return ParseNvidiaSMI(string(res.Stdout))
}

// ParseNvidiaSMI reads the first GPU from
// `nvidia-smi --query-gpu=name,memory.total --format=csv,noheader,nounits`.
func ParseNvidiaSMI(out string) (*Adapter, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	name, memStr, ok := strings.Cut(line, ",")
	if !ok || strings.TrimSpace(name) == "" {
		return nil, ErrNoAccelerator
	}
	memMB, err := strconv.ParseInt(strings.TrimSpace(memStr), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse adapter memory %q: %w", memStr, err)
	}
	return &Adapter{Name: strings.TrimSpace(name), Backend: "cuda", MemoryMB: memMB}, nil
}

// HostMemory reads total memory through gopsutil.
type HostMemory struct{}

// TotalGB implements MemoryProbe.
func (HostMemory) TotalGB(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	if vm.Total == 0 {
		return 0, errors.New("memory total unavailable")
	}
	return float64(vm.Total) / (1 << 30), nil
}

// defaultMemoryGB is the estimate used when nothing better is known.
const defaultMemoryGB = 4

// EstimateMemoryGB guesses memory from a platform string when no memory
// hint is available: Apple M-series chips 16GB, mobile devices 6GB,
// anything else 4GB.
func EstimateMemoryGB(platform string) float64 {
	switch FamilyOf(platform) {
	case FamilyApple:
		return 16
	case FamilyMobile:
		return 6
	default:
		return defaultMemoryGB
	}
}

// FamilyOf classifies a platform string.
func FamilyOf(platform string) Family {
	p := strings.ToLower(platform)
	switch {
	case strings.Contains(p, "apple m") || strings.Contains(p, "darwin/arm64"):
		return FamilyApple
	case strings.Contains(p, "android") || strings.Contains(p, "ios") ||
		strings.Contains(p, "mobile") || strings.Contains(p, "snapdragon"):
		return FamilyMobile
	default:
		return FamilyDesktop
	}
}

// HostPlatform describes the running host as "<cpu brand> <goos>/<goarch>".
func HostPlatform() string {
	return strings.TrimSpace(cpuid.CPU.BrandName + " " + runtime.GOOS + "/" + runtime.GOARCH)
}

// HostCores returns the logical core count.
func HostCores() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}
