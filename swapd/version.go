package swapd

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Commit is the commit the binary was built from. It is set with
// -ldflags "-X github.com/lightninglabs/xswap/swapd.Commit=<hash>" and falls
// back to the VCS revision recorded by the Go toolchain.
var Commit string

const (
	appMajor uint = 0
	appMinor uint = 1
	appPatch uint = 0

	// appPreRelease is appended to the version after a hyphen. Characters
	// outside of [0-9A-Za-z-] are dropped.
	appPreRelease = "alpha"
)

// Version returns the semantic version of swapd followed by the commit it
// was built from.
func Version() string {
	return fmt.Sprintf("%s commit=%s", semanticVersion(), commit())
}

// semanticVersion returns the SemVer part of the version.
func semanticVersion() string {
	version := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)

	if pre := normalizeVerString(appPreRelease); pre != "" {
		version += "-" + pre
	}

	return version
}

// commit returns the build commit, or an empty string if it is unknown.
func commit() string {
	if Commit != "" {
		return Commit
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			return setting.Value
		}
	}

	return ""
}

// normalizeVerString drops all characters that are not allowed in a SemVer
// pre-release identifier.
func normalizeVerString(str string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z', r == '-':

			return r

		default:
			return -1
		}
	}, str)
}
