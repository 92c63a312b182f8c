package transcription

// Segment is a timed span of recognized speech. Times are in seconds.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker,omitempty"`
	Text    string  `json:"text"`
}

// Timing is the per-stage breakdown reported by a backend.
type Timing struct {
	LoadMS       int64 `json:"load_ms,omitempty"`
	TranscribeMS int64 `json:"transcribe_ms,omitempty"`
	AlignMS      int64 `json:"align_ms,omitempty"`
	DiarizeMS    int64 `json:"diarize_ms,omitempty"`
}

// Transcript is the canonical output of every backend after normalization.
// Text and Segments agree: when segments exist, Text is their joined text.
type Transcript struct {
	Text     string      `json:"text"`
	Segments []Segment   `json:"segments"`
	Language string      `json:"language,omitempty"`
	Backend  BackendKind `json:"backend"`
	Model    ModelID     `json:"model"`
	Device   Device      `json:"device,omitempty"`
	Timing   Timing      `json:"timing"`
	// Flagged marks output rejected as repetitive hallucination. Text then
	// holds the diagnostic marker.
	Flagged bool `json:"flagged,omitempty"`
}

// Options are per-request transcription options.
type Options struct {
	Language    string `json:"language,omitempty"`
	Diarize     bool   `json:"diarize"`
	MinSpeakers int    `json:"min_speakers,omitempty"`
	MaxSpeakers int    `json:"max_speakers,omitempty"`
}

// Audio is an encoded audio payload as received from the caller.
type Audio struct {
	Data        []byte
	FileName    string
	ContentType string
}

// Request is what a backend receives for one attempt.
type Request struct {
	Model   ModelID
	Audio   Audio
	Options Options
	// Device is the execution device the attempt asks for. Remote backends
	// forward it as a hint.
	Device Device
	// Credential is the resolved secret for backends that need one.
	Credential string
}

// Result is a backend's raw output before normalization.
type Result struct {
	Text     string
	Segments []Segment
	Language string
	Device   Device
	Timing   Timing
}
