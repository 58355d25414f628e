package version

var (
	// Version is the semantic version of the binary. Overridden at build time.
	Version = "dev"
	// Commit is the git commit hash. Overridden at build time.
	Commit = "unknown"
)

// UserAgent is sent with price service requests.
func UserAgent() string {
	return "spot-outlet/" + Version
}
