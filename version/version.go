package version

import "fmt"

// set via ldflags during build
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

var FullVersion = fmt.Sprintf("%s Build: %s Commit: %s", Version, BuildDate, GitCommit)
