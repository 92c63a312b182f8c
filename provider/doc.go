// Package provider defines the minimal contract shared by scribe's
// pluggable backends and a generic registry to hold them by name.
package provider
