// CloudSign - group game relay for chat bots
// License: MIT
//
// Copyright (c) 2026 CloudSign contributors

package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/monarchdos/cloudsign/pkg/bus"
	"github.com/monarchdos/cloudsign/pkg/cloudsign"
	"github.com/monarchdos/cloudsign/pkg/logger"
	"github.com/monarchdos/cloudsign/pkg/utils"
)

// Fallback receives messages the relay does not claim.
type Fallback func(ctx context.Context, msg bus.InboundMessage)

// Loop feeds inbound bus messages through a cloudsign.Handler. Each message
// is handled on its own goroutine; there is no ordering between messages.
type Loop struct {
	bus      *bus.MessageBus
	handler  *cloudsign.Handler
	fallback Fallback
	inflight sync.WaitGroup
}

// NewLoop builds a loop whose replies are published back on msgBus.
// fallback may be nil.
func NewLoop(msgBus *bus.MessageBus, opts cloudsign.Options, transport cloudsign.Transport, fallback Fallback) *Loop {
	if fallback == nil {
		fallback = logPassthrough
	}
	return &Loop{
		bus:      msgBus,
		handler:  cloudsign.NewHandler(opts, transport, NewBusReplier(msgBus)),
		fallback: fallback,
	}
}

// Run consumes until ctx is cancelled or the bus is closed. It does not wait
// for in-flight messages; call Wait for that.
func (l *Loop) Run(ctx context.Context) error {
	logger.InfoCF("relay", "Relay started", map[string]interface{}{
		"reply_mode": string(l.handler.Options().ReplyMode),
	})

	for {
		msg, ok := l.bus.ConsumeInbound(ctx)
		if !ok {
			logger.InfoC("relay", "Relay stopped")
			return nil
		}

		l.inflight.Add(1)
		go func(msg bus.InboundMessage) {
			defer l.inflight.Done()
			l.Process(ctx, msg)
		}(msg)
	}
}

func (l *Loop) Wait() {
	l.inflight.Wait()
}

// Process handles one message synchronously.
func (l *Loop) Process(ctx context.Context, msg bus.InboundMessage) cloudsign.Result {
	ctx = withRoute(ctx, msg.Channel, msg.ChatID)
	result := l.handler.Handle(ctx, ToIncoming(msg), func() {
		l.fallback(ctx, msg)
	})

	if result != cloudsign.ResultPassthrough {
		logger.DebugCF("relay", "Command handled", map[string]interface{}{
			"channel": msg.Channel,
			"chat_id": msg.ChatID,
			"result":  result.String(),
			"content": utils.Truncate(msg.Content, 40),
		})
	}
	return result
}

func logPassthrough(_ context.Context, msg bus.InboundMessage) {
	logger.DebugCF("relay", "Not a game command, passing through", map[string]interface{}{
		"channel": msg.Channel,
		"chat_id": msg.ChatID,
		"content": utils.Truncate(msg.Content, 40),
	})
}

// ToIncoming maps a bus message onto the relay's view of it.
func ToIncoming(msg bus.InboundMessage) cloudsign.IncomingMessage {
	return cloudsign.IncomingMessage{
		RawText:          msg.Content,
		SenderID:         msg.SenderID,
		SenderName:       msg.SenderName,
		GroupID:          msg.GroupID,
		BotID:            msg.BotID,
		Platform:         msg.Platform,
		MentionedUserIDs: msg.Mentions,
		MessageID:        msg.MessageID,
	}
}

type routeKey struct{}

type route struct {
	channel string
	chatID  string
}

func withRoute(ctx context.Context, channel, chatID string) context.Context {
	return context.WithValue(ctx, routeKey{}, route{channel: channel, chatID: chatID})
}

// BusReplier publishes replies as outbound bus messages addressed to the chat
// the command came from.
type BusReplier struct {
	bus *bus.MessageBus
}

func NewBusReplier(msgBus *bus.MessageBus) *BusReplier {
	return &BusReplier{bus: msgBus}
}

func (r *BusReplier) Reply(ctx context.Context, msg cloudsign.IncomingMessage, reply cloudsign.Reply) error {
	rt, ok := ctx.Value(routeKey{}).(route)
	if !ok || rt.channel == "" || rt.chatID == "" {
		return fmt.Errorf("no route for reply to message %s", msg.MessageID)
	}
	r.bus.PublishOutbound(ToOutbound(rt.channel, rt.chatID, reply))
	return nil
}

// ToOutbound converts reply elements into bus segments.
func ToOutbound(channel, chatID string, reply cloudsign.Reply) bus.OutboundMessage {
	segments := make([]bus.Segment, 0, len(reply.Elements))
	for _, el := range reply.Elements {
		switch el.Kind {
		case cloudsign.ElementText:
			segments = append(segments, bus.TextSegment(el.Text))
		case cloudsign.ElementImage:
			segments = append(segments, bus.ImageSegment(el.URL))
		case cloudsign.ElementQuote:
			segments = append(segments, bus.ReplySegment(el.ID))
		case cloudsign.ElementMention:
			segments = append(segments, bus.AtSegment(el.ID))
		}
	}
	return bus.OutboundMessage{
		Channel:  channel,
		ChatID:   chatID,
		Content:  reply.PlainText(),
		Segments: segments,
		Separate: reply.Separate,
	}
}
