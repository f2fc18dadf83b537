package cloudsign

import (
	"regexp"
	"strings"
)

var imageMarker = regexp.MustCompile(`\[CQ:image,file=(` + anyLine + `+?)\]`)

// sentinelMarkers show up in bodies served by a broken or misconfigured backend.
var sentinelMarkers = []string{"wwwroot", "html"}

// IsSentinelReply reports whether raw carries no usable content: empty or
// blank, exactly one character, or an error page.
func IsSentinelReply(raw string) bool {
	for _, marker := range sentinelMarkers {
		if strings.Contains(raw, marker) {
			return true
		}
	}
	if utf16Len(raw) == 1 {
		return true
	}
	return trimSpace(raw) == ""
}

// TranslateReply turns a raw service response into reply elements for msg.
// Image markers win: if any is present the reply is the images alone.
// It returns false when nothing should be sent.
func TranslateReply(raw string, mode ReplyMode, msg IncomingMessage) (Reply, bool) {
	if IsSentinelReply(raw) {
		return Reply{}, false
	}

	var images []Element
	rest := imageMarker.ReplaceAllStringFunc(raw, func(match string) string {
		sub := imageMarker.FindStringSubmatch(match)
		images = append(images, Image(sub[1]))
		return ""
	})

	if len(images) > 0 {
		return Reply{Elements: images, Separate: true}, true
	}

	elements := make([]Element, 0, 3)
	switch mode {
	case ReplyModeQuote:
		elements = append(elements, Quote(msg.MessageID))
	case ReplyModeAt:
		elements = append(elements, Mention(msg.SenderID), Text("\n"))
	}
	if text := trimSpace(rest); text != "" {
		elements = append(elements, Text(text))
	}

	if len(elements) == 0 {
		return Reply{}, false
	}
	return Reply{Elements: elements}, true
}
