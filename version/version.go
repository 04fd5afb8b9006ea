package version

import "fmt"

// Set at build time via -ldflags "-X github.com/OdyseeTeam/mintstudio/version.version=..."
var (
	version string
	commit  string
	date    string
)

// GetVersion returns current application version
func GetVersion() string {
	if version == "" {
		return "dev"
	}
	return version
}

// GetDevVersion returns current app version plus short commit
func GetDevVersion() string {
	if len(commit) >= 6 {
		return fmt.Sprintf("%v-%v", GetVersion(), commit[:6])
	}
	return GetVersion()
}

// GetFullBuildName returns current app version, commit and build time
func GetFullBuildName() string {
	return fmt.Sprintf("%v, commit %v, built at %v", GetVersion(), commit, date)
}

// BuildInfo returns build details as logger key/value pairs.
func BuildInfo() []any {
	return []any{"version", GetVersion(), "commit", commit, "build_date", date}
}
