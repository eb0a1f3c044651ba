// Package version carries the build-time identity of this module, the way
// distribution's version package does for the registry binary.
package version

// Package is the canonical import path this binary was built from.
var Package = "github.com/distribution/sealedblock"

// Version is replaced at link time with the release tag; this default is
// used for local builds and `go run`.
var Version = "v0.1.0+unknown"

// Revision is filled in at link time with the VCS revision used to build
// the binary.
var Revision = ""
