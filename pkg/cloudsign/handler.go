package cloudsign

import (
	"context"
	"time"

	"github.com/monarchdos/cloudsign/pkg/logger"
)

// Replier sends a translated reply back into the chat msg came from.
type Replier interface {
	Reply(ctx context.Context, msg IncomingMessage, reply Reply) error
}

type ReplierFunc func(ctx context.Context, msg IncomingMessage, reply Reply) error

func (f ReplierFunc) Reply(ctx context.Context, msg IncomingMessage, reply Reply) error {
	return f(ctx, msg, reply)
}

type Result int

const (
	// ResultPassthrough: not a command, next was called.
	ResultPassthrough Result = iota
	// ResultDropped: a command that produced no request or no usable reply.
	ResultDropped
	// ResultFailed: the service or the reply send failed.
	ResultFailed
	ResultReplied
)

func (r Result) String() string {
	switch r {
	case ResultPassthrough:
		return "passthrough"
	case ResultDropped:
		return "dropped"
	case ResultFailed:
		return "failed"
	case ResultReplied:
		return "replied"
	}
	return "unknown"
}

// Handler runs one message through filter, normalizer, request builder,
// transport and reply translator. It holds only read-only state and is safe
// for concurrent use.
type Handler struct {
	opts      Options
	transport Transport
	replier   Replier
	now       func() time.Time
}

func NewHandler(opts Options, transport Transport, replier Replier) *Handler {
	if opts.ReplyMode == "" {
		opts.ReplyMode = ReplyModeQuote
	}
	return &Handler{
		opts:      opts,
		transport: transport,
		replier:   replier,
		now:       time.Now,
	}
}

func (h *Handler) Options() Options {
	return h.opts
}

// Handle processes msg. Messages that are not commands are handed to next
// (which may be nil). No error ever leaves Handle.
func (h *Handler) Handle(ctx context.Context, msg IncomingMessage, next func()) Result {
	cmd, ok := Accept(msg)
	if !ok {
		if next != nil {
			next()
		}
		return ResultPassthrough
	}

	normalized, ok := Normalize(msg)
	if !ok {
		return ResultDropped
	}

	req := BuildRequest(normalized, msg, h.opts, h.now())

	logger.DebugCF("cloudsign", "Forwarding command", map[string]interface{}{
		"kind":    cmd.Kind.String(),
		"command": req.Command,
		"group":   req.GroupID,
		"sender":  req.SenderID,
		"target":  req.TargetID,
	})

	raw, err := h.transport.Send(ctx, req)
	if err != nil {
		logger.WarnCF("cloudsign", "Server connection failed.", map[string]interface{}{
			"error": err.Error(),
		})
		return ResultFailed
	}

	reply, ok := TranslateReply(raw, h.opts.ReplyMode, msg)
	if !ok {
		logger.DebugCF("cloudsign", "No usable reply from server", map[string]interface{}{
			"kind":   cmd.Kind.String(),
			"length": len(raw),
		})
		return ResultDropped
	}

	if err := h.replier.Reply(ctx, msg, reply); err != nil {
		logger.WarnCF("cloudsign", "Server connection failed.", map[string]interface{}{
			"stage": "reply",
			"error": err.Error(),
		})
		return ResultFailed
	}
	return ResultReplied
}
