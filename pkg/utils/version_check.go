package utils

import (
	"strings"

	"golang.org/x/mod/semver"
)

const (
	RequiredClientVersion string = "v0.1.0"
)

// CheckClientVersion reports whether toCheck is at least minVersion.
// An empty minVersion falls back to RequiredClientVersion.
func CheckClientVersion(toCheck, minVersion string) bool {
	if minVersion == "" {
		minVersion = RequiredClientVersion
	}
	res := semver.Compare(withPrefix(toCheck), withPrefix(minVersion))
	return res >= 0
}

func withPrefix(v string) string {
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
