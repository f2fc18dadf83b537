package cloudsign

import "regexp"

var (
	numericIDPattern = regexp.MustCompile(`^[0-9]+$`)

	allowedPlatforms = map[string]struct{}{
		"qq":     {},
		"onebot": {},
	}
)

// Accept decides whether msg is a command for the game service. The grammar is
// checked against the raw text, mention markup included.
func Accept(msg IncomingMessage) (Command, bool) {
	cmd, ok := MatchCommand(msg.RawText)
	if !ok {
		return cmd, false
	}
	if !numericIDPattern.MatchString(msg.GroupID) {
		return cmd, false
	}
	if !IsPlatformAllowed(msg.Platform) {
		return cmd, false
	}
	return cmd, true
}

// IsPlatformAllowed reports whether the service serves platform.
func IsPlatformAllowed(platform string) bool {
	_, ok := allowedPlatforms[platform]
	return ok
}
