package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	usernameMinLen = 3
	usernameMaxLen = 20

	// After this many numeric-suffix collisions the derivation gives up and
	// falls back to a timestamp suffix.
	usernameMaxCollisions = 999
)

var (
	usernameInvalidRuns   = regexp.MustCompile(`[^a-z0-9._-]+`)
	usernameUnderscoreRun = regexp.MustCompile(`_{2,}`)
)

// DeriveUsername builds a username from the local part of an email address:
// lower-cased, disallowed runs collapsed to single underscores, trimmed of
// leading/trailing underscores, clamped to [3,20] characters with trailing
// zero padding when too short.
func DeriveUsername(email string) string {
	local, _, _ := strings.Cut(email, "@")
	name := strings.ToLower(local)
	name = usernameInvalidRuns.ReplaceAllString(name, "_")
	name = usernameUnderscoreRun.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if len(name) > usernameMaxLen {
		name = name[:usernameMaxLen]
	}
	for len(name) < usernameMinLen {
		name += "0"
	}
	return name
}

// uniqueUsername appends an incrementing numeric suffix until taken reports
// the candidate free. taken is expected to be cheap (a store lookup).
func uniqueUsername(email string, taken func(username string) bool) string {
	base := DeriveUsername(email)
	if !taken(base) {
		return base
	}
	for n := 1; n <= usernameMaxCollisions; n++ {
		candidate := fmt.Sprintf("%s%d", base, n)
		if !taken(candidate) {
			return candidate
		}
	}
	ts := fmt.Sprintf("%d", time.Now().UnixMilli())
	return fmt.Sprintf("%s_%s", base, ts[len(ts)-6:])
}
