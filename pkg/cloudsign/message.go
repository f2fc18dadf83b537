package cloudsign

import (
	"fmt"
	"strings"
)

// IncomingMessage is what the chat-session layer hands to the relay.
// RawText still carries mention markup such as [CQ:at,qq=42].
type IncomingMessage struct {
	RawText          string
	SenderID         string
	SenderName       string
	GroupID          string
	BotID            string
	Platform         string
	MentionedUserIDs []string
	MessageID        string
}

// FirstMention returns the first mentioned user id, if any.
func (m IncomingMessage) FirstMention() (string, bool) {
	for _, id := range m.MentionedUserIDs {
		if id != "" {
			return id, true
		}
	}
	return "", false
}

type ReplyMode string

const (
	ReplyModeQuote ReplyMode = "quote"
	ReplyModeAt    ReplyMode = "at"
	ReplyModeNone  ReplyMode = "none"
)

func ParseReplyMode(s string) (ReplyMode, error) {
	switch ReplyMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReplyModeQuote:
		return ReplyModeQuote, nil
	case ReplyModeAt:
		return ReplyModeAt, nil
	case ReplyModeNone:
		return ReplyModeNone, nil
	}
	return "", fmt.Errorf("invalid reply mode %q (want quote, at or none)", s)
}

type ElementKind int

const (
	ElementText ElementKind = iota
	ElementImage
	ElementQuote
	ElementMention
)

func (k ElementKind) String() string {
	switch k {
	case ElementText:
		return "text"
	case ElementImage:
		return "image"
	case ElementQuote:
		return "quote"
	case ElementMention:
		return "mention"
	}
	return "unknown"
}

// Element is one piece of an outbound reply. Text is used by text elements,
// URL by images, ID by quotes (message id) and mentions (user id).
type Element struct {
	Kind ElementKind
	Text string
	URL  string
	ID   string
}

func Text(s string) Element { return Element{Kind: ElementText, Text: s} }

func Image(url string) Element { return Element{Kind: ElementImage, URL: url} }

func Quote(messageID string) Element { return Element{Kind: ElementQuote, ID: messageID} }

func Mention(userID string) Element { return Element{Kind: ElementMention, ID: userID} }

// Reply is the translated response. Separate is set for image replies, where
// each image goes out as its own chat message.
type Reply struct {
	Elements []Element
	Separate bool
}

// PlainText renders the reply for terminals and logs.
func (r Reply) PlainText() string {
	var b strings.Builder
	for _, el := range r.Elements {
		switch el.Kind {
		case ElementText:
			b.WriteString(el.Text)
		case ElementImage:
			b.WriteString("[image:" + el.URL + "]")
		case ElementQuote:
			b.WriteString("[quote:" + el.ID + "]")
		case ElementMention:
			b.WriteString("@" + el.ID)
		}
		if r.Separate {
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
