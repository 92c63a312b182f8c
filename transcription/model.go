package transcription

import "strings"

// ModelID names a transcription model.
type ModelID string

// SizeClass is the rough parameter-count class of a model.
type SizeClass string

const (
	SizeTiny   SizeClass = "tiny"
	SizeSmall  SizeClass = "small"
	SizeMedium SizeClass = "medium"
	SizeLarge  SizeClass = "large"
	SizeCloud  SizeClass = "cloud"
)

// ModelTags are the routing properties of a model.
type ModelTags struct {
	// Diarization means the model can feed the aligned-diarization service.
	Diarization bool
	// RequiresServer means the model is too large for in-process inference.
	RequiresServer bool
	// CloudSemantic means the model is hosted by a cloud provider.
	CloudSemantic bool
	Size          SizeClass
}

// Affinity returns the backend kinds able to run a model with these tags,
// in routing priority order. It is never empty, and routing never plans a
// kind outside it.
func (t ModelTags) Affinity() []BackendKind {
	switch {
	case t.CloudSemantic:
		return []BackendKind{KindCloud}
	case t.RequiresServer && t.Diarization:
		return []BackendKind{KindAligned, KindHeavy}
	case t.RequiresServer:
		return []BackendKind{KindHeavy}
	case t.Diarization:
		return []BackendKind{KindAligned, KindHeavy, KindLocal}
	default:
		return []BackendKind{KindLocal}
	}
}

var catalog = map[ModelID]ModelTags{
	"tiny":                   {Diarization: true, Size: SizeTiny},
	"base":                   {Diarization: true, Size: SizeTiny},
	"small":                  {Diarization: true, Size: SizeSmall},
	"medium":                 {Diarization: true, RequiresServer: true, Size: SizeMedium},
	"large-v2":               {Diarization: true, RequiresServer: true, Size: SizeLarge},
	"large-v3":               {Diarization: true, RequiresServer: true, Size: SizeLarge},
	"large-v3-turbo":         {Diarization: true, RequiresServer: true, Size: SizeLarge},
	"distil-large-v3":        {Diarization: true, RequiresServer: true, Size: SizeLarge},
	"wav2vec2-base-960h":     {Size: SizeSmall},
	"whisper-1":              {CloudSemantic: true, Size: SizeCloud},
	"gpt-4o-transcribe":      {CloudSemantic: true, Size: SizeCloud},
	"gpt-4o-mini-transcribe": {CloudSemantic: true, Size: SizeCloud},
}

// Canonical strips the "whisper-" alias prefix used by some callers, so
// "whisper-large-v3" and "large-v3" name the same model. "whisper-1" is a
// cloud model name and is kept.
func (m ModelID) Canonical() ModelID {
	s := strings.ToLower(strings.TrimSpace(string(m)))
	if rest, ok := strings.CutPrefix(s, "whisper-"); ok {
		if _, known := catalog[ModelID(rest)]; known {
			return ModelID(rest)
		}
	}
	return ModelID(s)
}

// Known reports whether the model is in the catalog.
func (m ModelID) Known() bool {
	_, ok := catalog[m.Canonical()]
	return ok
}

// Tags returns the model's routing tags. Models outside the catalog are
// tagged from their name: large or medium models require the server,
// gpt- and gemini models are cloud models, everything else runs in process.
func (m ModelID) Tags() ModelTags {
	id := m.Canonical()
	if tags, ok := catalog[id]; ok {
		return tags
	}
	name := string(id)
	switch {
	case strings.HasPrefix(name, "gpt-") || strings.HasPrefix(name, "gemini"):
		return ModelTags{CloudSemantic: true, Size: SizeCloud}
	case strings.Contains(name, "large"):
		return ModelTags{Diarization: true, RequiresServer: true, Size: SizeLarge}
	case strings.Contains(name, "medium"):
		return ModelTags{Diarization: true, RequiresServer: true, Size: SizeMedium}
	default:
		return ModelTags{Size: SizeSmall}
	}
}

// Catalog returns the known model IDs.
func Catalog() []ModelID {
	ids := make([]ModelID, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	return ids
}
