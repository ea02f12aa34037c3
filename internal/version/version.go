package version

// Set at build time, e.g.
// go build -ldflags "-X github.com/pysugar/photo-slideshow/internal/version.Version=v0.2.0"
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// String renders the build information on one line for the CLI and logs.
func String() string {
	return Version + " (" + Commit + ", built " + BuildTime + ")"
}
