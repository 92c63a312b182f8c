// Package version reports the build version of the scribe binary.
package version
