package cloudsign

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf16"
)

// MaxCommandLength is measured in UTF-16 code units, the unit the game
// service counts in.
const MaxCommandLength = 33

// mentionMarkup covers OneBot CQ mentions and element-style <at> tags.
var mentionMarkup = regexp.MustCompile(`<at[^>]*>|\[CQ:at,[^\]]*\]`)

type Normalized struct {
	Command    string
	TargetID   string
	SenderName string
}

// Normalize strips mention markup from an accepted message and resolves the
// target user. It returns false when the command must be dropped silently.
func Normalize(msg IncomingMessage) (Normalized, bool) {
	command := trimSpace(mentionMarkup.ReplaceAllString(msg.RawText, ""))

	if utf16Len(command) > MaxCommandLength {
		return Normalized{}, false
	}
	if trimSpace(strings.ReplaceAll(command, "#", "")) == "" {
		return Normalized{}, false
	}

	target, ok := msg.FirstMention()
	if !ok {
		target = msg.SenderID
	}

	return Normalized{
		Command:    command,
		TargetID:   target,
		SenderName: msg.SenderName,
	}, true
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

func trimSpace(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})
}
