// Package cienv detects whether the current process runs under a CI
// pipeline or an interactive terminal. Interactive auth flows and prompts
// are only permitted when no CI marker is present and stdin is a TTY.
package cienv

import (
	"os"

	"github.com/mattn/go-isatty"
)

// ciEnvVars are well-known variables set by CI providers. A non-empty
// value for any one of them marks the environment as CI.
var ciEnvVars = []string{
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"BUILDKITE",
	"CIRCLECI",
	"TRAVIS",
	"JENKINS_URL",
	"TEAMCITY_VERSION",
	"TF_BUILD",
}

// IsCI reports whether a well-known CI environment variable is set.
func IsCI() bool {
	return detectCI(os.Getenv)
}

// detectCI is the testable core of IsCI with an injected lookup.
func detectCI(getenv func(string) string) bool {
	for _, name := range ciEnvVars {
		if getenv(name) != "" {
			return true
		}
	}

	return false
}

// IsInteractive reports whether the process may prompt the operator:
// no CI marker present and stdin attached to a terminal.
func IsInteractive() bool {
	if IsCI() {
		return false
	}

	fd := os.Stdin.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
