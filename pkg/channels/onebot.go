package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/monarchdos/cloudsign/pkg/bus"
	"github.com/monarchdos/cloudsign/pkg/config"
	"github.com/monarchdos/cloudsign/pkg/logger"
	"github.com/monarchdos/cloudsign/pkg/utils"
)

// OneBotPlatform is the platform tag attached to every message this channel
// publishes.
const OneBotPlatform = "onebot"

type OneBotChannel struct {
	*BaseChannel
	config      config.OneBotConfig
	conn        *websocket.Conn
	ctx         context.Context
	cancel      context.CancelFunc
	dedup       map[string]struct{}
	dedupRing   []string
	dedupIdx    int
	selfID      atomic.Int64
	limiter     *rate.Limiter
	mu          sync.Mutex
	writeMu     sync.Mutex
	apiWaitMu   sync.Mutex
	echoCounter int64
	apiWaiters  map[string]chan oneBotAPIResponse
}

type oneBotRawEvent struct {
	PostType      string          `json:"post_type"`
	MessageType   string          `json:"message_type"`
	SubType       string          `json:"sub_type"`
	MessageID     json.RawMessage `json:"message_id"`
	UserID        json.RawMessage `json:"user_id"`
	GroupID       json.RawMessage `json:"group_id"`
	RawMessage    string          `json:"raw_message"`
	Message       json.RawMessage `json:"message"`
	Sender        json.RawMessage `json:"sender"`
	SelfID        json.RawMessage `json:"self_id"`
	Time          json.RawMessage `json:"time"`
	MetaEventType string          `json:"meta_event_type"`
	Echo          string          `json:"echo"`
	RetCode       json.RawMessage `json:"retcode"`
	Status        BotStatus       `json:"status"`
}

// BotStatus is either the "ok"/"failed" string of an API response or the
// status object of a heartbeat.
type BotStatus struct {
	Online bool `json:"online"`
	Good   bool `json:"good"`
	Text   string
}

func (s *BotStatus) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*s = BotStatus{}
		return nil
	}

	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = BotStatus{Text: strings.TrimSpace(text)}
		return nil
	}

	var obj struct {
		Online bool `json:"online"`
		Good   bool `json:"good"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = BotStatus{
		Online: obj.Online,
		Good:   obj.Good,
	}
	return nil
}

type oneBotSender struct {
	UserID   json.RawMessage `json:"user_id"`
	Nickname string          `json:"nickname"`
	Card     string          `json:"card"`
}

func (s oneBotSender) displayName() string {
	if s.Card != "" {
		return s.Card
	}
	return s.Nickname
}

type oneBotEvent struct {
	MessageType string
	SubType     string
	MessageID   string
	UserID      int64
	GroupID     int64
	SelfID      int64
	Time        int64
	RawText     string
	Mentions    []string
	Sender      oneBotSender
}

type oneBotAPIRequest struct {
	Action string      `json:"action"`
	Params interface{} `json:"params"`
	Echo   string      `json:"echo,omitempty"`
}

type oneBotSendGroupMsgParams struct {
	GroupID int64         `json:"group_id"`
	Message []bus.Segment `json:"message"`
}

type oneBotSendPrivateMsgParams struct {
	UserID  int64         `json:"user_id"`
	Message []bus.Segment `json:"message"`
}

type oneBotAPIResponse struct {
	Status  string          `json:"status"`
	RetCode json.RawMessage `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Wording string          `json:"wording"`
	Echo    string          `json:"echo"`
}

func NewOneBotChannel(cfg config.OneBotConfig, messageBus *bus.MessageBus) (*OneBotChannel, error) {
	base := NewBaseChannel("onebot", cfg, messageBus, cfg.AllowFrom)

	const dedupSize = 1024

	var limiter *rate.Limiter
	if cfg.SendRatePerSecond > 0 {
		burst := cfg.SendBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRatePerSecond), burst)
	}

	return &OneBotChannel{
		BaseChannel: base,
		config:      cfg,
		dedup:       make(map[string]struct{}, dedupSize),
		dedupRing:   make([]string, dedupSize),
		limiter:     limiter,
		apiWaiters:  make(map[string]chan oneBotAPIResponse),
	}, nil
}

func (c *OneBotChannel) Start(ctx context.Context) error {
	if c.config.WSUrl == "" {
		return fmt.Errorf("OneBot ws_url not configured")
	}

	logger.InfoCF("onebot", "Starting OneBot channel", map[string]interface{}{
		"ws_url": c.config.WSUrl,
	})

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		logger.WarnCF("onebot", "Initial connection failed, will retry in background", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		c.startSession()
	}

	if c.config.ReconnectInterval > 0 {
		go c.reconnectLoop()
	} else {
		// If reconnect is disabled but initial connection failed, we cannot recover
		c.mu.Lock()
		connected := c.conn != nil
		c.mu.Unlock()
		if !connected {
			return fmt.Errorf("failed to connect to OneBot and reconnect is disabled")
		}
	}

	c.setRunning(true)
	logger.InfoC("onebot", "OneBot channel started successfully")

	return nil
}

func (c *OneBotChannel) connect() error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	header := make(map[string][]string)
	if c.config.AccessToken != "" {
		header["Authorization"] = []string{"Bearer " + c.config.AccessToken}
	}

	conn, _, err := dialer.Dial(c.config.WSUrl, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	logger.InfoC("onebot", "WebSocket connected")
	return nil
}

// startSession runs the reader for a fresh connection and asks the
// implementation who we are, since some events omit self_id.
func (c *OneBotChannel) startSession() {
	go c.listen()
	go c.fetchLoginInfo()
}

func (c *OneBotChannel) reconnectLoop() {
	interval := time.Duration(c.config.ReconnectInterval) * time.Second
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(interval):
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				logger.InfoC("onebot", "Attempting to reconnect...")
				if err := c.connect(); err != nil {
					logger.ErrorCF("onebot", "Reconnect failed", map[string]interface{}{
						"error": err.Error(),
					})
				} else {
					c.startSession()
				}
			}
		}
	}
}

func (c *OneBotChannel) Stop(ctx context.Context) error {
	logger.InfoC("onebot", "Stopping OneBot channel")
	c.setRunning(false)

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	return nil
}

// Send writes msg to the connection. A separate message turns into one API
// call per segment; otherwise all segments go out together.
func (c *OneBotChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("OneBot channel not running")
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("OneBot WebSocket not connected")
	}

	requests, err := buildSendRequests(msg)
	if err != nil {
		return err
	}

	for _, req := range requests {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("send throttled: %w", err)
			}
		}

		req.Echo = c.nextEcho("send")
		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("failed to marshal OneBot request: %w", err)
		}

		c.writeMu.Lock()
		err = conn.WriteMessage(websocket.TextMessage, data)
		c.writeMu.Unlock()

		if err != nil {
			logger.ErrorCF("onebot", "Failed to send message", map[string]interface{}{
				"error": err.Error(),
			})
			return err
		}
	}

	return nil
}

func (c *OneBotChannel) nextEcho(prefix string) string {
	c.writeMu.Lock()
	c.echoCounter++
	echo := fmt.Sprintf("%s_%d", prefix, c.echoCounter)
	c.writeMu.Unlock()
	return echo
}

func buildSendRequests(msg bus.OutboundMessage) ([]oneBotAPIRequest, error) {
	segments := msg.Segments
	if len(segments) == 0 {
		if msg.Content == "" {
			return nil, fmt.Errorf("empty outbound message")
		}
		segments = []bus.Segment{bus.TextSegment(msg.Content)}
	}

	batches := [][]bus.Segment{segments}
	if msg.Separate {
		batches = make([][]bus.Segment, 0, len(segments))
		for _, seg := range segments {
			batches = append(batches, []bus.Segment{seg})
		}
	}

	requests := make([]oneBotAPIRequest, 0, len(batches))
	for _, batch := range batches {
		action, params, err := buildSendRequest(msg.ChatID, batch)
		if err != nil {
			return nil, err
		}
		requests = append(requests, oneBotAPIRequest{Action: action, Params: params})
	}
	return requests, nil
}

func buildSendRequest(chatID string, segments []bus.Segment) (string, interface{}, error) {
	if groupID, ok := parseOneBotGroupChatID(chatID); ok {
		id, err := strconv.ParseInt(groupID, 10, 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid group ID in chatID: %s", chatID)
		}
		return "send_group_msg", oneBotSendGroupMsgParams{
			GroupID: id,
			Message: segments,
		}, nil
	}

	userPart := strings.TrimPrefix(chatID, "private:")
	userID, err := strconv.ParseInt(userPart, 10, 64)
	if err != nil {
		return "", nil, fmt.Errorf("invalid chatID for OneBot: %s", chatID)
	}
	return "send_private_msg", oneBotSendPrivateMsgParams{
		UserID:  userID,
		Message: segments,
	}, nil
}

func (c *OneBotChannel) callOneBotAPI(action string, params interface{}, timeout time.Duration) (*oneBotAPIResponse, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("OneBot WebSocket not connected")
	}

	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	echo := c.nextEcho("api")
	waiter := make(chan oneBotAPIResponse, 1)

	c.apiWaitMu.Lock()
	c.apiWaiters[echo] = waiter
	c.apiWaitMu.Unlock()

	defer func() {
		c.apiWaitMu.Lock()
		delete(c.apiWaiters, echo)
		c.apiWaitMu.Unlock()
	}()

	payload, err := json.Marshal(oneBotAPIRequest{
		Action: action,
		Params: params,
		Echo:   echo,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OneBot API request: %w", err)
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to write OneBot API request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	var done <-chan struct{}
	if c.ctx != nil {
		done = c.ctx.Done()
	}

	select {
	case resp := <-waiter:
		return &resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("OneBot API request timeout: action=%s", action)
	case <-done:
		return nil, fmt.Errorf("OneBot channel stopped")
	}
}

func (c *OneBotChannel) fetchLoginInfo() {
	resp, err := c.callOneBotAPI("get_login_info", struct{}{}, 8*time.Second)
	if err != nil {
		logger.WarnCF("onebot", "get_login_info failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	var info struct {
		UserID   json.RawMessage `json:"user_id"`
		Nickname string          `json:"nickname"`
	}
	if err := json.Unmarshal(resp.Data, &info); err != nil {
		logger.WarnCF("onebot", "Unexpected get_login_info payload", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	id, err := parseJSONInt64(info.UserID)
	if err != nil || id <= 0 {
		return
	}
	c.selfID.Store(id)
	logger.InfoCF("onebot", "Logged in", map[string]interface{}{
		"self_id":  id,
		"nickname": info.Nickname,
	})
}

func (c *OneBotChannel) listen() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				logger.WarnC("onebot", "WebSocket connection is nil, listener exiting")
				return
			}

			_, message, err := conn.ReadMessage()
			if err != nil {
				logger.ErrorCF("onebot", "WebSocket read error", map[string]interface{}{
					"error": err.Error(),
				})
				c.mu.Lock()
				if c.conn == conn {
					c.conn.Close()
					c.conn = nil
				}
				c.mu.Unlock()
				return
			}

			logger.DebugCF("onebot", "Raw WebSocket message received", map[string]interface{}{
				"length":  len(message),
				"payload": utils.Truncate(string(message), 512),
			})

			var raw oneBotRawEvent
			if err := json.Unmarshal(message, &raw); err != nil {
				logger.WarnCF("onebot", "Failed to unmarshal raw event", map[string]interface{}{
					"error":   err.Error(),
					"payload": utils.Truncate(string(message), 512),
				})
				continue
			}

			if raw.Echo != "" {
				c.dispatchAPIResponse(raw, message)
				continue
			}

			rawCopy := raw
			go c.handleRawEvent(&rawCopy)
		}
	}
}

func (c *OneBotChannel) dispatchAPIResponse(raw oneBotRawEvent, payload []byte) {
	var resp oneBotAPIResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		resp = oneBotAPIResponse{
			Echo: raw.Echo,
		}
	}

	if resp.Echo == "" {
		resp.Echo = raw.Echo
	}
	if resp.Status == "" {
		resp.Status = raw.Status.Text
	}

	if resp.Status != "" && resp.Status != "ok" && strings.HasPrefix(resp.Echo, "send_") {
		logger.WarnCF("onebot", "Send rejected by OneBot", map[string]interface{}{
			"echo":    resp.Echo,
			"status":  resp.Status,
			"message": resp.Message,
			"wording": resp.Wording,
		})
	}

	c.apiWaitMu.Lock()
	waiter := c.apiWaiters[resp.Echo]
	c.apiWaitMu.Unlock()
	if waiter == nil {
		return
	}

	select {
	case waiter <- resp:
	default:
	}
}

func parseJSONInt64(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, nil
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseInt(s, 10, 64)
	}
	return 0, fmt.Errorf("cannot parse as int64: %s", string(raw))
}

func parseJSONString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return string(raw)
}

// parsedMessage is a message body flattened to CQ text. Text is unescaped,
// at segments become [CQ:at,qq=<id>] and everything else keeps its CQ code.
type parsedMessage struct {
	RawText  string
	Mentions []string
}

var oneBotCQPattern = regexp.MustCompile(`\[CQ:([a-zA-Z0-9_]+)(?:,([^\]]*))?\]`)

func parseMessageContent(raw json.RawMessage, rawMessage string) parsedMessage {
	if len(raw) == 0 {
		return parseOneBotCQMessage(rawMessage)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseOneBotCQMessage(s)
	}

	var segments []struct {
		Type string                 `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(raw, &segments); err != nil {
		return parseOneBotCQMessage(rawMessage)
	}

	var b strings.Builder
	var mentions []string
	for _, seg := range segments {
		switch seg.Type {
		case "text":
			if t, ok := seg.Data["text"].(string); ok {
				b.WriteString(t)
			}
		case "at":
			qq := oneBotDataString(seg.Data["qq"])
			b.WriteString(atCQCode(qq))
			mentions = appendMention(mentions, qq)
		default:
			params := make(map[string]string, len(seg.Data))
			for k, v := range seg.Data {
				params[k] = oneBotDataString(v)
			}
			b.WriteString(buildCQCode(seg.Type, params))
		}
	}

	return parsedMessage{RawText: b.String(), Mentions: mentions}
}

func parseOneBotCQMessage(content string) parsedMessage {
	matches := oneBotCQPattern.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return parsedMessage{RawText: cqUnescape(content)}
	}

	var b strings.Builder
	var mentions []string
	cursor := 0

	for _, m := range matches {
		if m[0] > cursor {
			b.WriteString(cqUnescape(content[cursor:m[0]]))
		}

		segType := content[m[2]:m[3]]
		if segType == "at" {
			paramsRaw := ""
			if m[4] >= 0 && m[5] >= 0 {
				paramsRaw = content[m[4]:m[5]]
			}
			qq := parseOneBotCQParams(paramsRaw)["qq"]
			b.WriteString(atCQCode(qq))
			mentions = appendMention(mentions, qq)
		} else {
			b.WriteString(content[m[0]:m[1]])
		}
		cursor = m[1]
	}

	if cursor < len(content) {
		b.WriteString(cqUnescape(content[cursor:]))
	}

	return parsedMessage{RawText: b.String(), Mentions: mentions}
}

func appendMention(mentions []string, qq string) []string {
	if qq == "" || qq == "all" {
		return mentions
	}
	return append(mentions, qq)
}

func atCQCode(qq string) string {
	return "[CQ:at,qq=" + qq + "]"
}

func buildCQCode(segType string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("[CQ:")
	b.WriteString(segType)
	for _, k := range keys {
		b.WriteByte(',')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(cqEscape(params[k]))
	}
	b.WriteByte(']')
	return b.String()
}

func oneBotDataString(v interface{}) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

func parseOneBotCQParams(params string) map[string]string {
	result := make(map[string]string)
	if params == "" {
		return result
	}

	items := strings.Split(params, ",")
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		result[key] = cqUnescape(value)
	}
	return result
}

var (
	cqParamEscaper = strings.NewReplacer("&", "&amp;", "[", "&#91;", "]", "&#93;", ",", "&#44;")
	cqUnescaper    = strings.NewReplacer("&#91;", "[", "&#93;", "]", "&#44;", ",", "&amp;", "&")
)

// cqEscape escapes a CQ code parameter value.
func cqEscape(s string) string {
	return cqParamEscaper.Replace(s)
}

func cqUnescape(s string) string {
	return cqUnescaper.Replace(s)
}

func (c *OneBotChannel) handleRawEvent(raw *oneBotRawEvent) {
	switch raw.PostType {
	case "message":
		evt, err := c.normalizeMessageEvent(raw)
		if err != nil {
			logger.WarnCF("onebot", "Failed to normalize message event", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		c.handleMessage(evt)
	case "meta_event":
		c.handleMetaEvent(raw)
	case "notice", "request":
		logger.DebugCF("onebot", "Event ignored", map[string]interface{}{
			"post_type": raw.PostType,
			"sub_type":  raw.SubType,
		})
	default:
		logger.DebugCF("onebot", "Unknown post_type", map[string]interface{}{
			"post_type": raw.PostType,
		})
	}
}

func (c *OneBotChannel) normalizeMessageEvent(raw *oneBotRawEvent) (*oneBotEvent, error) {
	userID, err := parseJSONInt64(raw.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user_id: %w (raw: %s)", err, string(raw.UserID))
	}

	groupID, _ := parseJSONInt64(raw.GroupID)
	selfID, _ := parseJSONInt64(raw.SelfID)
	if selfID > 0 {
		c.selfID.CompareAndSwap(0, selfID)
	} else {
		selfID = c.selfID.Load()
	}
	ts, _ := parseJSONInt64(raw.Time)

	parsed := parseMessageContent(raw.Message, raw.RawMessage)

	var sender oneBotSender
	if len(raw.Sender) > 0 {
		if err := json.Unmarshal(raw.Sender, &sender); err != nil {
			logger.WarnCF("onebot", "Failed to parse sender", map[string]interface{}{
				"error":  err.Error(),
				"sender": string(raw.Sender),
			})
		}
	}

	return &oneBotEvent{
		MessageType: raw.MessageType,
		SubType:     raw.SubType,
		MessageID:   parseJSONString(raw.MessageID),
		UserID:      userID,
		GroupID:     groupID,
		SelfID:      selfID,
		Time:        ts,
		RawText:     parsed.RawText,
		Mentions:    parsed.Mentions,
		Sender:      sender,
	}, nil
}

func (c *OneBotChannel) handleMetaEvent(raw *oneBotRawEvent) {
	switch raw.MetaEventType {
	case "lifecycle":
		if selfID, err := parseJSONInt64(raw.SelfID); err == nil && selfID > 0 {
			c.selfID.Store(selfID)
		}
		logger.InfoCF("onebot", "Lifecycle event", map[string]interface{}{
			"sub_type": raw.SubType,
		})
	case "heartbeat":
		logger.DebugC("onebot", "Heartbeat received")
	default:
		logger.DebugCF("onebot", "Unknown meta_event_type", map[string]interface{}{
			"meta_event_type": raw.MetaEventType,
		})
	}
}

func (c *OneBotChannel) handleMessage(evt *oneBotEvent) {
	if c.isDuplicate(evt.MessageID) {
		logger.DebugCF("onebot", "Duplicate message, skipping", map[string]interface{}{
			"message_id": evt.MessageID,
		})
		return
	}

	if strings.TrimSpace(evt.RawText) == "" {
		logger.DebugCF("onebot", "Received empty message, ignoring", map[string]interface{}{
			"message_id": evt.MessageID,
		})
		return
	}

	senderID := strconv.FormatInt(evt.UserID, 10)
	if !c.IsAllowed(senderID) {
		logger.DebugCF("onebot", "Message ignored (sender not allowed)", map[string]interface{}{
			"sender":     senderID,
			"message_id": evt.MessageID,
		})
		return
	}

	botID := ""
	if evt.SelfID > 0 {
		botID = strconv.FormatInt(evt.SelfID, 10)
	}

	msg := bus.InboundMessage{
		Platform:   OneBotPlatform,
		SenderID:   senderID,
		SenderName: evt.Sender.displayName(),
		BotID:      botID,
		MessageID:  evt.MessageID,
		Content:    evt.RawText,
		Mentions:   evt.Mentions,
		Metadata: map[string]string{
			"message_type": evt.MessageType,
		},
	}
	if evt.Sender.Nickname != "" {
		msg.Metadata["nickname"] = evt.Sender.Nickname
	}

	switch evt.MessageType {
	case "private":
		msg.ChatID = "private:" + senderID
	case "group":
		groupID := strconv.FormatInt(evt.GroupID, 10)
		if !c.isGroupAllowed(groupID) {
			logger.DebugCF("onebot", "Group message ignored (group not allowed)", map[string]interface{}{
				"sender": senderID,
				"group":  groupID,
			})
			return
		}
		msg.ChatID = "group:" + groupID
		msg.GroupID = groupID
	default:
		logger.WarnCF("onebot", "Unknown message type, cannot route", map[string]interface{}{
			"type":       evt.MessageType,
			"message_id": evt.MessageID,
			"user_id":    evt.UserID,
		})
		return
	}

	logger.DebugCF("onebot", "Forwarding message to bus", map[string]interface{}{
		"sender_id": senderID,
		"chat_id":   msg.ChatID,
		"content":   utils.Truncate(msg.Content, 100),
	})

	c.HandleMessage(msg)
}

func (c *OneBotChannel) isDuplicate(messageID string) bool {
	if messageID == "" || messageID == "0" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.dedup[messageID]; exists {
		return true
	}

	if old := c.dedupRing[c.dedupIdx]; old != "" {
		delete(c.dedup, old)
	}
	c.dedupRing[c.dedupIdx] = messageID
	c.dedup[messageID] = struct{}{}
	c.dedupIdx = (c.dedupIdx + 1) % len(c.dedupRing)

	return false
}

func (c *OneBotChannel) isGroupAllowed(groupID string) bool {
	if len(c.config.AllowGroups) == 0 {
		return true
	}

	for _, allowed := range c.config.AllowGroups {
		normalized := strings.TrimSpace(strings.TrimPrefix(allowed, "group:"))
		if normalized == groupID {
			return true
		}
	}

	return false
}

func parseOneBotGroupChatID(chatID string) (string, bool) {
	if !strings.HasPrefix(chatID, "group:") {
		return "", false
	}
	groupID := strings.TrimSpace(strings.TrimPrefix(chatID, "group:"))
	if groupID == "" {
		return "", false
	}
	return groupID, true
}
