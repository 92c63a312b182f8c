// Package onnx runs CTC speech models in process through onnxruntime. The
// shared library is located through ONNXRUNTIME_LIB and initialized once
// per process.
package onnx
