// Package attribution identifies the person asking, so queries can be
// attributed to a user without requiring explicit flags.
package attribution

import (
	"os"
	"os/exec"
	"strings"
	"sync"
)

var (
	cachedUser string
	once       sync.Once
)

// DetectUser returns the best available user identifier for query
// attribution. Checks in order: AGROQA_USER env, git config user.name,
// "anonymous". The git config result is cached after first call.
func DetectUser() string {
	once.Do(func() {
		cachedUser = detectUserUncached()
	})
	return cachedUser
}

// detectUserUncached performs detection without caching. Used for testing.
func detectUserUncached() string {
	if name := os.Getenv("AGROQA_USER"); name != "" {
		return name
	}
	if name := gitUserName(); name != "" {
		return name
	}
	return "anonymous"
}

// gitUserName runs `git config --get user.name` and returns the trimmed result.
// Returns empty string on any error.
func gitUserName() string {
	out, err := exec.Command("git", "config", "--get", "user.name").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
