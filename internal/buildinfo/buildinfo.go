// Package buildinfo carries release metadata set with -ldflags -X.
package buildinfo

// Empty in development builds.
var (
	Version = ""
	Commit  = ""
	Date    = ""
)
