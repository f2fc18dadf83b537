package relay

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/monarchdos/cloudsign/pkg/bus"
	"github.com/monarchdos/cloudsign/pkg/cloudsign"
)

type fixedTransport struct {
	body  string
	calls atomic.Int32
}

func (f *fixedTransport) Send(_ context.Context, _ cloudsign.CommandRequest) (string, error) {
	f.calls.Add(1)
	return f.body, nil
}

func groupInbound(content string, mentions ...string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:    "onebot",
		Platform:   "onebot",
		SenderID:   "10001",
		SenderName: "阿强",
		ChatID:     "group:123456",
		GroupID:    "123456",
		BotID:      "99999",
		MessageID:  "771",
		Content:    content,
		Mentions:   mentions,
	}
}

func TestLoopRun_RepliesOnBus(t *testing.T) {
	msgBus := bus.NewMessageBus()
	tr := &fixedTransport{body: "签到成功"}
	loop := NewLoop(msgBus, cloudsign.Options{Key: "null", ReplyMode: cloudsign.ReplyModeQuote}, tr, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	msgBus.PublishInbound(groupInbound("签到"))

	outCtx, outCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer outCancel()
	out, ok := msgBus.SubscribeOutbound(outCtx)
	if !ok {
		t.Fatal("expected an outbound reply")
	}

	want := bus.OutboundMessage{
		Channel:  "onebot",
		ChatID:   "group:123456",
		Content:  "[quote:771]签到成功",
		Segments: []bus.Segment{bus.ReplySegment("771"), bus.TextSegment("签到成功")},
	}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("outbound = %+v\nwant      %+v", out, want)
	}
}

func TestLoopProcess_PassthroughCallsFallback(t *testing.T) {
	msgBus := bus.NewMessageBus()
	tr := &fixedTransport{body: "ok!"}

	var fallbackCalls atomic.Int32
	loop := NewLoop(msgBus, cloudsign.Options{}, tr, func(_ context.Context, msg bus.InboundMessage) {
		if msg.Content != "早上好" {
			t.Errorf("fallback got %q", msg.Content)
		}
		fallbackCalls.Add(1)
	})

	if res := loop.Process(context.Background(), groupInbound("早上好")); res != cloudsign.ResultPassthrough {
		t.Fatalf("result = %v, want passthrough", res)
	}
	if fallbackCalls.Load() != 1 {
		t.Fatalf("fallback called %d times, want 1", fallbackCalls.Load())
	}
	if tr.calls.Load() != 0 {
		t.Fatal("passthrough must not contact the service")
	}
}

func TestLoopProcess_PrivateMessagePassesThrough(t *testing.T) {
	msgBus := bus.NewMessageBus()
	tr := &fixedTransport{body: "ok!"}
	loop := NewLoop(msgBus, cloudsign.Options{}, tr, nil)

	msg := groupInbound("签到")
	msg.GroupID = ""
	msg.ChatID = "private:10001"
	if res := loop.Process(context.Background(), msg); res != cloudsign.ResultPassthrough {
		t.Fatalf("result = %v, want passthrough", res)
	}
}

func TestLoopProcess_ImagesSentSeparately(t *testing.T) {
	msgBus := bus.NewMessageBus()
	tr := &fixedTransport{body: "[CQ:image,file=https://x/1.png][CQ:image,file=https://x/2.png]"}
	loop := NewLoop(msgBus, cloudsign.Options{ReplyMode: cloudsign.ReplyModeAt}, tr, nil)

	if res := loop.Process(context.Background(), groupInbound("排行榜")); res != cloudsign.ResultReplied {
		t.Fatalf("result = %v, want replied", res)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out, ok := msgBus.SubscribeOutbound(ctx)
	if !ok {
		t.Fatal("expected an outbound reply")
	}
	if !out.Separate || len(out.Segments) != 2 {
		t.Fatalf("unexpected outbound: %+v", out)
	}
	if out.Segments[1].Data["file"] != "https://x/2.png" {
		t.Fatalf("second image = %+v", out.Segments[1])
	}
}

func TestLoopRun_StopsWhenBusClosed(t *testing.T) {
	msgBus := bus.NewMessageBus()
	loop := NewLoop(msgBus, cloudsign.Options{}, &fixedTransport{}, nil)

	done := make(chan struct{})
	go func() {
		loop.Run(context.Background())
		close(done)
	}()

	msgBus.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the bus closed")
	}
	loop.Wait()
}

func TestBusReplier_NeedsRoute(t *testing.T) {
	r := NewBusReplier(bus.NewMessageBus())
	err := r.Reply(context.Background(), cloudsign.IncomingMessage{MessageID: "1"}, cloudsign.Reply{
		Elements: []cloudsign.Element{cloudsign.Text("x")},
	})
	if err == nil {
		t.Fatal("expected an error without a route")
	}
}

func TestToOutbound_MentionReply(t *testing.T) {
	reply := cloudsign.Reply{Elements: []cloudsign.Element{
		cloudsign.Mention("10001"), cloudsign.Text("\n"), cloudsign.Text("你抢到了 3 积分"),
	}}

	out := ToOutbound("onebot", "group:1", reply)
	want := []bus.Segment{bus.AtSegment("10001"), bus.TextSegment("\n"), bus.TextSegment("你抢到了 3 积分")}
	if !reflect.DeepEqual(out.Segments, want) {
		t.Fatalf("segments = %+v", out.Segments)
	}
	if out.Separate {
		t.Fatal("text reply must not be separate")
	}
}

func TestToIncoming(t *testing.T) {
	in := ToIncoming(groupInbound("打劫[CQ:at,qq=42]", "42"))
	if in.RawText != "打劫[CQ:at,qq=42]" || in.GroupID != "123456" || in.BotID != "99999" {
		t.Fatalf("unexpected message: %+v", in)
	}
	if len(in.MentionedUserIDs) != 1 || in.MentionedUserIDs[0] != "42" {
		t.Fatalf("mentions = %v", in.MentionedUserIDs)
	}
}
