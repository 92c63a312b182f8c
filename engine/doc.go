// Package engine executes a routing plan. Each attempt runs under a
// per-class timeout; a transient failure on the accelerated device is
// retried once on cpu before moving to the next attempt. Successful
// output is normalized and passed through the hallucination filter.
//
// Slots hold the current OperationHandle for transcription and
// enhancement; beginning a new operation in a slot cancels the previous
// one.
package engine
