package channels

import (
	"context"
	"encoding/json"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/monarchdos/cloudsign/pkg/bus"
	"github.com/monarchdos/cloudsign/pkg/config"
)

func newTestOneBot(t *testing.T, cfg config.OneBotConfig) (*OneBotChannel, *bus.MessageBus) {
	t.Helper()
	msgBus := bus.NewMessageBus()
	ch, err := NewOneBotChannel(cfg, msgBus)
	if err != nil {
		t.Fatalf("NewOneBotChannel() error = %v", err)
	}
	return ch, msgBus
}

func consumeWithin(msgBus *bus.MessageBus, d time.Duration) (bus.InboundMessage, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return msgBus.ConsumeInbound(ctx)
}

func TestOneBotHandleMessage_GroupAllowedByDefault(t *testing.T) {
	ch, msgBus := newTestOneBot(t, config.OneBotConfig{})

	ch.handleMessage(&oneBotEvent{
		MessageType: "group",
		MessageID:   "m1",
		UserID:      2002,
		GroupID:     1001,
		SelfID:      9999,
		RawText:     "打劫[CQ:at,qq=42]",
		Mentions:    []string{"42"},
		Sender:      oneBotSender{Nickname: "nick", Card: "群名片"},
	})

	msg, ok := consumeWithin(msgBus, 200*time.Millisecond)
	if !ok {
		t.Fatal("expected inbound message, got none")
	}

	want := bus.InboundMessage{
		Channel:    "onebot",
		Platform:   "onebot",
		SenderID:   "2002",
		SenderName: "群名片",
		ChatID:     "group:1001",
		GroupID:    "1001",
		BotID:      "9999",
		MessageID:  "m1",
		Content:    "打劫[CQ:at,qq=42]",
		Mentions:   []string{"42"},
		Metadata:   map[string]string{"message_type": "group", "nickname": "nick"},
	}
	if !reflect.DeepEqual(msg, want) {
		t.Fatalf("inbound = %+v\nwant     %+v", msg, want)
	}
}

func TestOneBotHandleMessage_NicknameWhenNoCard(t *testing.T) {
	ch, msgBus := newTestOneBot(t, config.OneBotConfig{})

	ch.handleMessage(&oneBotEvent{
		MessageType: "group",
		MessageID:   "m-nick",
		UserID:      2002,
		GroupID:     1001,
		RawText:     "签到",
		Sender:      oneBotSender{Nickname: "nick"},
	})

	msg, ok := consumeWithin(msgBus, 200*time.Millisecond)
	if !ok {
		t.Fatal("expected inbound message, got none")
	}
	if msg.SenderName != "nick" {
		t.Fatalf("sender name = %q, want nick", msg.SenderName)
	}
	if msg.BotID != "" {
		t.Fatalf("bot id = %q, want empty when self id is unknown", msg.BotID)
	}
}

func TestOneBotHandleMessage_GroupNotAllowed(t *testing.T) {
	ch, msgBus := newTestOneBot(t, config.OneBotConfig{
		AllowGroups: config.FlexibleStringSlice{"1001"},
	})

	ch.handleMessage(&oneBotEvent{
		MessageType: "group",
		MessageID:   "m2",
		UserID:      2002,
		GroupID:     1002,
		RawText:     "签到",
	})

	if msg, ok := consumeWithin(msgBus, 100*time.Millisecond); ok {
		t.Fatalf("unexpected inbound message: %+v", msg)
	}
}

func TestOneBotHandleMessage_GroupAllowedWithPrefixFormat(t *testing.T) {
	ch, msgBus := newTestOneBot(t, config.OneBotConfig{
		AllowGroups: config.FlexibleStringSlice{"group:1001"},
	})

	ch.handleMessage(&oneBotEvent{
		MessageType: "group",
		MessageID:   "m3",
		UserID:      2002,
		GroupID:     1001,
		RawText:     "签到",
	})

	if _, ok := consumeWithin(msgBus, 200*time.Millisecond); !ok {
		t.Fatal("expected inbound message, got none")
	}
}

func TestOneBotHandleMessage_SenderNotAllowed(t *testing.T) {
	ch, msgBus := newTestOneBot(t, config.OneBotConfig{
		AllowFrom: config.FlexibleStringSlice{"1"},
	})

	ch.handleMessage(&oneBotEvent{
		MessageType: "group",
		MessageID:   "m4",
		UserID:      2002,
		GroupID:     1001,
		RawText:     "签到",
	})

	if msg, ok := consumeWithin(msgBus, 100*time.Millisecond); ok {
		t.Fatalf("unexpected inbound message: %+v", msg)
	}
}

func TestOneBotHandleMessage_PrivateHasNoGroup(t *testing.T) {
	ch, msgBus := newTestOneBot(t, config.OneBotConfig{})

	ch.handleMessage(&oneBotEvent{
		MessageType: "private",
		MessageID:   "p1",
		UserID:      2002,
		RawText:     "签到",
	})

	msg, ok := consumeWithin(msgBus, 200*time.Millisecond)
	if !ok {
		t.Fatal("expected inbound message, got none")
	}
	if msg.ChatID != "private:2002" || msg.GroupID != "" {
		t.Fatalf("chat = %q group = %q", msg.ChatID, msg.GroupID)
	}
}

func TestOneBotHandleMessage_DuplicateAndEmptySkipped(t *testing.T) {
	ch, msgBus := newTestOneBot(t, config.OneBotConfig{})

	evt := &oneBotEvent{MessageType: "group", MessageID: "dup", UserID: 1, GroupID: 2, RawText: "积分"}
	ch.handleMessage(evt)
	ch.handleMessage(evt)
	ch.handleMessage(&oneBotEvent{MessageType: "group", MessageID: "blank", UserID: 1, GroupID: 2, RawText: "  "})

	if _, ok := consumeWithin(msgBus, 200*time.Millisecond); !ok {
		t.Fatal("expected the first copy to be forwarded")
	}
	if msg, ok := consumeWithin(msgBus, 100*time.Millisecond); ok {
		t.Fatalf("unexpected second inbound message: %+v", msg)
	}
}

func TestOneBotIsDuplicate_RingEvictsOldest(t *testing.T) {
	ch, _ := newTestOneBot(t, config.OneBotConfig{})

	if ch.isDuplicate("first") {
		t.Fatal("first sighting reported as duplicate")
	}
	for i := 0; i < len(ch.dedupRing); i++ {
		ch.isDuplicate("filler-" + strconv.Itoa(i))
	}
	if ch.isDuplicate("first") {
		t.Fatal("evicted id should no longer be a duplicate")
	}
	if ch.isDuplicate("") || ch.isDuplicate("0") {
		t.Fatal("empty ids are never duplicates")
	}
}

func TestOneBotHandleRawEvent_UsesKnownSelfID(t *testing.T) {
	ch, msgBus := newTestOneBot(t, config.OneBotConfig{})
	ch.selfID.Store(4242)

	ch.handleRawEvent(&oneBotRawEvent{
		PostType:    "message",
		MessageType: "group",
		MessageID:   json.RawMessage(`123`),
		UserID:      json.RawMessage(`"2002"`),
		GroupID:     json.RawMessage(`1001`),
		RawMessage:  "打劫[CQ:at,qq=5]",
		Message:     json.RawMessage(`[{"type":"text","data":{"text":"打劫"}},{"type":"at","data":{"qq":"5"}}]`),
		Sender:      json.RawMessage(`{"user_id":2002,"nickname":"n","card":""}`),
	})

	msg, ok := consumeWithin(msgBus, 200*time.Millisecond)
	if !ok {
		t.Fatal("expected inbound message, got none")
	}
	if msg.BotID != "4242" {
		t.Fatalf("bot id = %q, want 4242", msg.BotID)
	}
	if msg.MessageID != "123" || msg.SenderID != "2002" || msg.GroupID != "1001" {
		t.Fatalf("unexpected ids: %+v", msg)
	}
	if msg.Content != "打劫[CQ:at,qq=5]" || !reflect.DeepEqual(msg.Mentions, []string{"5"}) {
		t.Fatalf("content = %q mentions = %v", msg.Content, msg.Mentions)
	}
}

func TestOneBotHandleRawEvent_LifecycleRecordsSelfID(t *testing.T) {
	ch, _ := newTestOneBot(t, config.OneBotConfig{})

	ch.handleRawEvent(&oneBotRawEvent{
		PostType:      "meta_event",
		MetaEventType: "lifecycle",
		SubType:       "connect",
		SelfID:        json.RawMessage(`777`),
	})

	if got := ch.selfID.Load(); got != 777 {
		t.Fatalf("self id = %d, want 777", got)
	}
}
