package transcription

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/kbukum/scribe/errors"
	"github.com/kbukum/scribe/httpclient"
)

// ProbeUnavailable reports a failed health probe. Routing treats it as
// ineligibility, never as a terminal error.
func ProbeUnavailable(kind BackendKind, reason string) *errors.AppError {
	return errors.New(errors.ErrCodeProbeUnavailable,
		fmt.Sprintf("The %s backend is not reachable: %s.", kind, reason), http.StatusServiceUnavailable).
		WithDetail("backend", string(kind))
}

// CredentialMissing reports an absent secret for a provider that has no
// fallback.
func CredentialMissing(provider string) *errors.AppError {
	env := strings.ToUpper(provider) + "_API_KEY"
	return errors.New(errors.ErrCodeCredentialMissing,
		fmt.Sprintf("No API key configured for %s. Set %s or run `scribe credentials set %s`.", provider, env, provider),
		http.StatusUnauthorized).
		WithDetail("provider", provider)
}

// ExecutionTransient reports an accelerated-runtime failure that may
// succeed on the fallback device.
func ExecutionTransient(kind BackendKind, model ModelID, cause error) *errors.AppError {
	return errors.New(errors.ErrCodeExecutionTransient,
		fmt.Sprintf("The %s backend failed on the accelerated device while running %s.", kind, model),
		http.StatusServiceUnavailable).
		WithCause(cause).
		WithDetail("backend", string(kind)).
		WithDetail("model", string(model))
}

// ExecutionFatal reports a failure that will not succeed on retry with the
// same backend.
func ExecutionFatal(kind BackendKind, model ModelID, reason string, cause error) *errors.AppError {
	return errors.New(errors.ErrCodeExecutionFatal,
		fmt.Sprintf("The %s backend could not transcribe with %s: %s.", kind, model, reason),
		http.StatusBadGateway).
		WithCause(cause).
		WithDetail("backend", string(kind)).
		WithDetail("model", string(model)).
		WithDetail("reason", reason)
}

// Cancelled reports that the operation's owner cancelled it.
func Cancelled(cause error) *errors.AppError {
	return errors.New(errors.ErrCodeCancelled, "The operation was cancelled.", 499).WithCause(cause)
}

// ServerRequired reports a model that only the heavy inference server can
// run while that server is down.
func ServerRequired(model ModelID) *errors.AppError {
	return errors.New(errors.ErrCodeServerRequired,
		fmt.Sprintf("Model %s needs the inference server, which is not available. Start the server or choose a smaller model such as small or base.", model),
		http.StatusServiceUnavailable).
		WithDetail("model", string(model))
}

// NoEligibleBackend reports a routing decision with no candidate.
func NoEligibleBackend(model ModelID, diarize bool) *errors.AppError {
	return errors.New(errors.ErrCodeNoEligibleBackend,
		fmt.Sprintf("No backend can run %s right now. Check that a transcription service is running or choose another model.", model),
		http.StatusServiceUnavailable).
		WithDetail("model", string(model)).
		WithDetail("diarize", diarize)
}

// AttemptFailure records one failed attempt for AllAttemptsFailed.
type AttemptFailure struct {
	Kind   BackendKind `json:"kind"`
	Device Device      `json:"device,omitempty"`
	Code   string      `json:"code"`
	Error  string      `json:"error"`
}

// AllAttemptsFailed is the terminal error once every attempt is exhausted.
// Its code is the code of the last failure so callers can react to the cause.
func AllAttemptsFailed(model ModelID, failures []AttemptFailure, last error) *errors.AppError {
	code := errors.ErrCodeExecutionFatal
	if appErr, ok := errors.AsAppError(last); ok {
		code = appErr.Code
	}
	return errors.New(code,
		fmt.Sprintf("Every backend failed to transcribe with %s. Try a smaller model or a different provider.", model),
		http.StatusBadGateway).
		WithCause(last).
		WithDetail("model", string(model)).
		WithDetail("attempts", failures)
}

// transientPattern matches accelerated-runtime failures: CUDA, Metal and
// CoreML error phrasing, out-of-memory signals and bare numeric runtime
// codes. A message that only mentions a GPU does not match.
var transientPattern = regexp.MustCompile(`(?i)(` +
	`\bcuda[\s_]?(error|failure|oom)|\bcuda out of memory|\b(cudnn|cublas)[\s_](status|error|failure)|` +
	`\bgpu\s+(error|fault|failure|memory|hang|lost)|\bmetal\s+(error|device lost|command buffer)|` +
	`\bcoreml\s+(error|failure|failed)|\bmps backend|execution provider|` +
	`out of memory|\boom\b|onnxruntime.*status|error code[: ]*-?\d+|^\s*-?\d+\s*$)`)

// IsTransientMessage reports whether msg looks like an accelerated-runtime
// failure.
func IsTransientMessage(msg string) bool {
	return transientPattern.MatchString(msg)
}

// Classify maps a backend failure into the error taxonomy. Errors already
// classified pass through.
func Classify(kind BackendKind, model ModelID, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsAppError(err); ok {
		return err
	}
	if stderrors.Is(err, context.Canceled) {
		return Cancelled(err)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ExecutionFatal(kind, model, "timed out", err)
	}

	if hErr, ok := httpclient.AsError(err); ok {
		if IsTransientMessage(string(hErr.Body)) {
			return ExecutionTransient(kind, model, err)
		}
		switch hErr.Code {
		case httpclient.ErrCodeTimeout:
			return ExecutionFatal(kind, model, "timed out", err)
		case httpclient.ErrCodeConnection:
			return ExecutionFatal(kind, model, "service unreachable", err)
		case httpclient.ErrCodeNotFound:
			return ExecutionFatal(kind, model, "model not found", err)
		case httpclient.ErrCodeAuth:
			return ExecutionFatal(kind, model, "credential rejected", err)
		case httpclient.ErrCodeValidation:
			return ExecutionFatal(kind, model, "request rejected", err)
		default:
			return ExecutionFatal(kind, model, "service error", err)
		}
	}

	if IsTransientMessage(err.Error()) {
		return ExecutionTransient(kind, model, err)
	}
	return ExecutionFatal(kind, model, err.Error(), err)
}

// IsTransient reports an ExecutionTransient error.
func IsTransient(err error) bool {
	return errors.HasCode(err, errors.ErrCodeExecutionTransient)
}

// IsCancelled reports a Cancelled error or a bare context cancellation.
func IsCancelled(err error) bool {
	return errors.HasCode(err, errors.ErrCodeCancelled) || stderrors.Is(err, context.Canceled)
}
