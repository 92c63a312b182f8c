package transcription

import (
	"context"
	"iter"

	"github.com/kbukum/scribe/provider"
)

// BackendKind names one execution path.
type BackendKind string

const (
	KindAligned BackendKind = "aligned_diarization"
	KindHeavy   BackendKind = "heavy_server"
	KindLocal   BackendKind = "in_process"
	KindCloud   BackendKind = "cloud_semantic"
)

// Kinds lists every backend kind in routing priority order.
var Kinds = []BackendKind{KindAligned, KindHeavy, KindCloud, KindLocal}

// Tier returns the routing priority of the kind. Lower runs first.
func (k BackendKind) Tier() int {
	switch k {
	case KindAligned:
		return 1
	case KindHeavy:
		return 2
	case KindCloud:
		return 3
	case KindLocal:
		return 4
	default:
		return 99
	}
}

// Device is an execution device.
type Device string

const (
	DeviceAccelerated Device = "accelerated"
	DeviceCPU         Device = "cpu"
)

// ParseDevice maps a runtime device name reported by a service to a Device.
// Unknown names yield "".
func ParseDevice(name string) Device {
	switch name {
	case "cuda", "gpu", "mps", "metal", "coreml", "accelerated":
		return DeviceAccelerated
	case "cpu":
		return DeviceCPU
	default:
		return ""
	}
}

// BackendDescriptor is the availability snapshot of one backend, produced
// fresh for every routing decision.
type BackendDescriptor struct {
	Kind                BackendKind `json:"kind"`
	Available           bool        `json:"available"`
	SupportsDiarization bool        `json:"supports_diarization"`
	ExecutionDevice     string      `json:"execution_device,omitempty"`
	Endpoint            string      `json:"endpoint,omitempty"`
	Models              []string    `json:"models,omitempty"`
	LatencyMS           int64       `json:"latency_ms"`
	// Reason explains unavailability.
	Reason string `json:"reason,omitempty"`
}

// Err is nil for an available backend and a ProbeUnavailable error
// carrying Reason otherwise.
func (d BackendDescriptor) Err() error {
	if d.Available {
		return nil
	}
	return ProbeUnavailable(d.Kind, d.Reason)
}

// Backend runs batch transcription.
type Backend interface {
	provider.Provider
	Kind() BackendKind
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// EventType tags a streaming event.
type EventType string

const (
	EventProgress EventType = "progress"
	EventSegment  EventType = "segment"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one item of a streaming transcription.
type Event struct {
	Type     EventType `json:"type"`
	Progress float64   `json:"progress,omitempty"`
	Segment  Segment   `json:"segment,omitzero"`
	Text     string    `json:"text,omitempty"`
	Language string    `json:"language,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// Streamer is implemented by backends that push segments as they decode.
// The sequence is lazy; breaking out of the range loop releases the
// underlying connection.
type Streamer interface {
	TranscribeStream(ctx context.Context, req Request) iter.Seq2[Event, error]
}
