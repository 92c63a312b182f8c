package onnx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/kbukum/scribe/engine"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/session"
	"github.com/kbukum/scribe/transcription"
)

const (
	// ProviderName is the registered name for in-process inference.
	ProviderName = "onnx"

	modelFile = "model.onnx"
	vocabFile = "vocab.json"

	// SampleRate is the PCM rate the models expect.
	SampleRate = 16000
)

// ErrModelNotInstalled is returned when a model has no files under the
// model directory.
var ErrModelNotInstalled = errors.New("model not installed")

// Config holds in-process inference settings.
type Config struct {
	// ModelDir holds one directory per model with model.onnx and vocab.json.
	ModelDir    string `json:"model_dir" yaml:"model_dir" mapstructure:"model_dir"`
	LibraryPath string `json:"library_path,omitempty" yaml:"library_path" mapstructure:"library_path"`
	// Threads bounds intra-op parallelism. Zero uses half the cores.
	Threads int `json:"threads" yaml:"threads" mapstructure:"threads"`
	// CUDADevice selects the GPU for accelerated sessions off Apple.
	CUDADevice string `json:"cuda_device,omitempty" yaml:"cuda_device" mapstructure:"cuda_device"`
}

// Runtime loads ONNX speech models. It implements session.Loader for the
// session cache and provider.Provider for health probes.
type Runtime struct {
	cfg Config
	log *logger.Logger
}

var _ session.Loader = (*Runtime)(nil)

// New creates a Runtime.
func New(cfg Config, log *logger.Logger) *Runtime {
	if cfg.Threads <= 0 {
		cfg.Threads = max(1, runtime.NumCPU()/2)
	}
	if cfg.CUDADevice == "" {
		cfg.CUDADevice = "0"
	}
	if log == nil {
		log = logger.WithComponent("onnx")
	}
	return &Runtime{cfg: cfg, log: log}
}

func (r *Runtime) Name() string { return ProviderName }

// IsAvailable reports whether the runtime library and model directory are
// present. Nothing is loaded.
func (r *Runtime) IsAvailable(_ context.Context) bool {
	if !LibraryPresent(r.cfg.LibraryPath) {
		return false
	}
	info, err := os.Stat(r.cfg.ModelDir)
	return err == nil && info.IsDir()
}

// Installed lists models with files under the model directory.
func (r *Runtime) Installed() []transcription.ModelID {
	entries, err := os.ReadDir(r.cfg.ModelDir)
	if err != nil {
		return nil
	}
	var out []transcription.ModelID
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.cfg.ModelDir, e.Name(), modelFile)); err == nil {
			out = append(out, transcription.ModelID(e.Name()))
		}
	}
	return out
}

// Load creates an inference session for model on device. Accelerated
// sessions use CoreML on macOS and CUDA elsewhere; a provider that fails
// to attach surfaces as an execution provider error so the caller can
// retry on CPU.
func (r *Runtime) Load(ctx context.Context, model transcription.ModelID, device transcription.Device) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Join(r.cfg.ModelDir, string(model.Canonical()))
	modelPath := filepath.Join(dir, modelFile)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, transcription.ExecutionFatal(transcription.KindLocal, model, ErrModelNotInstalled.Error(), err)
	}
	vocab, err := LoadVocab(filepath.Join(dir, vocabFile))
	if err != nil {
		return nil, transcription.ExecutionFatal(transcription.KindLocal, model, "vocabulary unreadable", err)
	}

	if err := ensureRuntime(r.cfg.LibraryPath); err != nil {
		return nil, transcription.ExecutionFatal(transcription.KindLocal, model, "onnxruntime unavailable", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()
	if err := options.SetIntraOpNumThreads(r.cfg.Threads); err != nil {
		return nil, fmt.Errorf("set intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("set inter-op threads: %w", err)
	}
	if device == transcription.DeviceAccelerated {
		if err := r.attachAccelerator(options); err != nil {
			return nil, fmt.Errorf("execution provider: %w", err)
		}
	}

	sess, err := ort.NewDynamicAdvancedSession(modelPath, []string{"input_values"}, []string{"logits"}, options)
	if err != nil {
		return nil, fmt.Errorf("onnxruntime session: %w", err)
	}
	r.log.Debug("onnx session created", logger.Fields(logger.FieldModel, model, logger.FieldDevice, device))
	return &Session{model: model, device: device, sess: sess, vocab: vocab}, nil
}

func (r *Runtime) attachAccelerator(options *ort.SessionOptions) error {
	if runtime.GOOS == "darwin" {
		return options.AppendExecutionProviderCoreML(0)
	}
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return err
	}
	defer cuda.Destroy()
	if err := cuda.Update(map[string]string{"device_id": r.cfg.CUDADevice}); err != nil {
		return err
	}
	return options.AppendExecutionProviderCUDA(cuda)
}

// Session is a loaded CTC speech model.
type Session struct {
	model  transcription.ModelID
	device transcription.Device
	sess   *ort.DynamicAdvancedSession
	vocab  *Vocab
}

var _ engine.LocalSession = (*Session)(nil)

func (s *Session) Model() transcription.ModelID { return s.model }

func (s *Session) Device() transcription.Device { return s.device }

func (s *Session) Close() error { return s.sess.Destroy() }

// Infer runs the model over mono 16 kHz PCM. The language option is
// ignored; CTC models are single-language.
func (s *Session) Infer(ctx context.Context, pcm []float32, _ transcription.Options) (*transcription.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return &transcription.Result{Device: s.device}, nil
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(len(pcm))), pcm)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := s.sess.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("onnxruntime run: %w", err)
	}
	defer outputs[0].Destroy()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logits, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected logits type %T", outputs[0])
	}
	shape := logits.GetShape()
	if len(shape) != 3 || int(shape[2]) != s.vocab.Size() {
		return nil, fmt.Errorf("unexpected logits shape %v for vocabulary of %d", shape, s.vocab.Size())
	}
	frames := int(shape[1])
	duration := float64(len(pcm)) / SampleRate
	segments := s.vocab.Decode(logits.GetData(), frames, duration/float64(frames))

	return &transcription.Result{
		Segments: segments,
		Text:     transcription.JoinSegments(segments),
		Device:   s.device,
	}, nil
}
