package onnx

import (
	"os"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// LibraryEnv names the environment variable holding the shared library path.
const LibraryEnv = "ONNXRUNTIME_LIB"

var (
	ortOnce    sync.Once
	ortInitErr error
)

// LibraryPath returns the configured shared library path, falling back to
// LibraryEnv and then the Homebrew location on macOS.
func LibraryPath(configured string) string {
	if configured != "" {
		return configured
	}
	if p := os.Getenv(LibraryEnv); p != "" {
		return p
	}
	if runtime.GOOS == "darwin" {
		return "/opt/homebrew/lib/libonnxruntime.dylib"
	}
	return ""
}

// LibraryPresent reports whether the shared library exists on disk.
func LibraryPresent(configured string) bool {
	p := LibraryPath(configured)
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}

// ensureRuntime initializes the ONNX runtime environment once per process.
func ensureRuntime(libPath string) error {
	ortOnce.Do(func() {
		if p := LibraryPath(libPath); p != "" {
			ort.SetSharedLibraryPath(p)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}
