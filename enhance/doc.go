// Package enhance turns a finished transcript into a title and summary.
//
// A Pipeline tries, in order, a local model served by Ollama, a cloud
// semantic model reachable with a stored API key, and deterministic rules.
// A model tier that times out, fails or returns something unusable is
// logged and skipped, so Enhance always produces a result unless the
// operation is cancelled. Titles from every tier go through NormalizeTitle.
package enhance
