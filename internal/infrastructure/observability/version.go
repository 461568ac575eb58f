package observability

// Binary identity for logs, metrics and archive provenance.
// Version values are overwritten via -ldflags during build.
const Name = "scoop"

var (
	Version = "dev"  // release version
	Commit  = "none" // short commit
	Date    = ""     // ISO8601 UTC build time
)
