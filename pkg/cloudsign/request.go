package cloudsign

import (
	"net/url"
	"strconv"
	"time"
)

const (
	// ProtocolVersion identifies the request field set. Bump it whenever the
	// fields below change so the service can keep older clients working.
	ProtocolVersion = "1.0.1"
	PlatformTag     = "koishi"
)

// Options is the read-only per-deployment configuration of the relay.
type Options struct {
	Key       string
	Master    string
	ReplyMode ReplyMode
}

type CommandRequest struct {
	Command         string
	TargetID        string
	SenderID        string
	GroupID         string
	BotID           string
	SenderName      string
	ProtocolVersion string
	Platform        string
	Timestamp       int64
	SharedKey       string
	MasterID        string
}

// BuildRequest assembles the request for one accepted message. now is read
// on every call; the timestamp is whole seconds since the epoch.
func BuildRequest(n Normalized, msg IncomingMessage, opts Options, now time.Time) CommandRequest {
	return CommandRequest{
		Command:         n.Command,
		TargetID:        n.TargetID,
		SenderID:        msg.SenderID,
		GroupID:         msg.GroupID,
		BotID:           msg.BotID,
		SenderName:      n.SenderName,
		ProtocolVersion: ProtocolVersion,
		Platform:        PlatformTag,
		Timestamp:       now.Unix(),
		SharedKey:       opts.Key,
		MasterID:        opts.Master,
	}
}

// FormData returns the wire fields. Every field is always present, empty
// values included.
func (r CommandRequest) FormData() map[string]string {
	return map[string]string{
		"command":  r.Command,
		"at":       r.TargetID,
		"qq":       r.SenderID,
		"qun":      r.GroupID,
		"botqq":    r.BotID,
		"username": r.SenderName,
		"version":  r.ProtocolVersion,
		"platform": r.Platform,
		"token":    strconv.FormatInt(r.Timestamp, 10),
		"key":      r.SharedKey,
		"master":   r.MasterID,
	}
}

func (r CommandRequest) Values() url.Values {
	values := make(url.Values, 11)
	for k, v := range r.FormData() {
		values.Set(k, v)
	}
	return values
}
