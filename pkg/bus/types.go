package bus

// InboundMessage is a chat message normalized by a channel.
// Content keeps the platform's inline markup (mentions, images) intact.
type InboundMessage struct {
	Channel    string            `json:"channel"`
	Platform   string            `json:"platform"`
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name"`
	ChatID     string            `json:"chat_id"`
	GroupID    string            `json:"group_id,omitempty"`
	BotID      string            `json:"bot_id"`
	MessageID  string            `json:"message_id"`
	Content    string            `json:"content"`
	Mentions   []string          `json:"mentions,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

const (
	SegmentText  = "text"
	SegmentImage = "image"
	SegmentReply = "reply"
	SegmentAt    = "at"
)

// Segment is one element of an outbound message, shaped after OneBot segments.
type Segment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

type OutboundMessage struct {
	Channel  string    `json:"channel"`
	ChatID   string    `json:"chat_id"`
	Content  string    `json:"content,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
	// Separate asks the channel to send every segment as its own message.
	Separate bool `json:"separate,omitempty"`
}

func TextSegment(text string) Segment {
	return Segment{Type: SegmentText, Data: map[string]string{"text": text}}
}

func ImageSegment(file string) Segment {
	return Segment{Type: SegmentImage, Data: map[string]string{"file": file}}
}

func ReplySegment(messageID string) Segment {
	return Segment{Type: SegmentReply, Data: map[string]string{"id": messageID}}
}

func AtSegment(userID string) Segment {
	return Segment{Type: SegmentAt, Data: map[string]string{"qq": userID}}
}
