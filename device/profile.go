package device

import (
	"fmt"

	"github.com/kbukum/scribe/transcription"
)

// Tier is a coarse capability class.
type Tier string

const (
	TierLow  Tier = "low"
	TierMid  Tier = "mid"
	TierHigh Tier = "high"
)

// Family groups platforms that share a recommended-model row.
type Family string

const (
	FamilyApple   Family = "apple"
	FamilyDesktop Family = "desktop"
	FamilyMobile  Family = "mobile"
)

// Adapter describes the accelerated compute adapter found by a probe.
type Adapter struct {
	Name    string `json:"name"`
	Backend string `json:"backend"`
	// MemoryMB is the adapter's buffer limit. Zero when memory is shared
	// with the host.
	MemoryMB int64 `json:"memory_mb,omitempty"`
}

// Profile is a snapshot of host capability. It is never mutated after
// creation.
type Profile struct {
	GPUAccelerationAvailable bool                  `json:"gpu_acceleration_available"`
	EstimatedMemoryGB        float64               `json:"estimated_memory_gb"`
	CPUCores                 int                   `json:"cpu_cores"`
	Tier                     Tier                  `json:"device_tier"`
	RecommendedModel         transcription.ModelID `json:"recommended_model"`
	// CanRunLargeModels is always false: large models are unreliable in
	// process on every tier and are served by the inference server instead.
	CanRunLargeModels bool     `json:"can_run_large_models"`
	Platform          string   `json:"platform"`
	Family            Family   `json:"platform_family"`
	Adapter           *Adapter `json:"adapter,omitempty"`
}

// Device returns the execution device in-process inference should start on.
func (p Profile) Device() transcription.Device {
	if p.GPUAccelerationAvailable {
		return transcription.DeviceAccelerated
	}
	return transcription.DeviceCPU
}

func (p Profile) String() string {
	return fmt.Sprintf("%s tier, %.0fGB, %d cores, accel=%v, recommends %s",
		p.Tier, p.EstimatedMemoryGB, p.CPUCores, p.GPUAccelerationAvailable, p.RecommendedModel)
}

// Conservative is the profile used when probing is impossible.
func Conservative() Profile {
	return Profile{
		EstimatedMemoryGB: defaultMemoryGB,
		CPUCores:          1,
		Tier:              TierLow,
		RecommendedModel:  smallestModel,
		Family:            FamilyDesktop,
	}
}

// Classify assigns a tier. High needs acceleration, 16GB and 8 cores; mid
// needs acceleration, 8GB and 4 cores.
func Classify(accelerated bool, memoryGB float64, cores int) Tier {
	switch {
	case accelerated && memoryGB >= 16 && cores >= 8:
		return TierHigh
	case accelerated && memoryGB >= 8 && cores >= 4:
		return TierMid
	default:
		return TierLow
	}
}

const smallestModel transcription.ModelID = "tiny"

var recommendations = map[Family]map[Tier]transcription.ModelID{
	FamilyApple:   {TierHigh: "small", TierMid: "base", TierLow: "tiny"},
	FamilyDesktop: {TierHigh: "small", TierMid: "base", TierLow: "tiny"},
	FamilyMobile:  {TierHigh: "base", TierMid: "tiny", TierLow: "tiny"},
}

// Recommend returns the default model for a tier on a platform family.
func Recommend(tier Tier, family Family) transcription.ModelID {
	if row, ok := recommendations[family]; ok {
		if m, ok := row[tier]; ok {
			return m
		}
	}
	return smallestModel
}
