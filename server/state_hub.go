package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"RPGMixer/core/playback"
	"RPGMixer/logger"

	"github.com/gorilla/websocket"
)

// MessageType 消息类型
type MessageType string

const (
	MsgTypeState    MessageType = "state"    // 完整状态
	MsgTypeProgress MessageType = "progress" // 播放进度
	MsgTypeIntent   MessageType = "intent"   // 客户端操作
	MsgTypeResult   MessageType = "result"   // 操作结果
	MsgTypeError    MessageType = "error"    // 错误消息
	MsgTypePing     MessageType = "ping"     // 心跳
	MsgTypePong     MessageType = "pong"     // 心跳响应
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// ProgressData 播放进度数据
type ProgressData struct {
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
}

func encodeMessage(t MessageType, data interface{}) ([]byte, error) {
	msg := WSMessage{Type: t, Timestamp: time.Now().UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

// Client WebSocket 客户端
type Client struct {
	Hub      *StateHub
	Conn     *websocket.Conn
	Send     chan []byte
	Operator string
}

// StateHub pushes mixer state to every connected control surface.
type StateHub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu     sync.RWMutex
	latest []byte // last full state, sent to new clients

	done chan struct{}
}

// NewStateHub 创建 Hub
func NewStateHub() *StateHub {
	return &StateHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *StateHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.broadcastAll(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *StateHub) Stop() {
	close(h.done)
}

func (h *StateHub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	latest := h.latest
	h.mu.Unlock()

	if latest != nil {
		client.Send <- latest
	}
	logger.Info("control client registered", logger.String("operator", client.Operator))
}

func (h *StateHub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
		logger.Info("control client unregistered", logger.String("operator", client.Operator))
	}
}

func (h *StateHub) broadcastAll(msg []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.Send <- msg:
		default:
			// 发送缓冲区满，移除客户端
			h.removeClient(c)
		}
	}
}

func (h *StateHub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.Send)
	}
	h.clients = make(map[*Client]bool)
}

// ClientCount 获取在线客户端数量
func (h *StateHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register 注册客户端
func (h *StateHub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister 注销客户端
func (h *StateHub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// OnChange is a mixer watcher. It runs on the loop goroutine, so it never blocks:
// when the broadcast queue is full the message is dropped.
func (h *StateHub) OnChange(c playback.Change, st playback.State) {
	t, data := MsgTypeState, interface{}(st)
	if c == playback.ChangeProgress {
		t, data = MsgTypeProgress, ProgressData{CurrentTime: st.CurrentTime, Duration: st.Duration}
	}
	msg, err := encodeMessage(t, data)
	if err != nil {
		logger.Error("encode state message", logger.ErrorField(err))
		return
	}
	if t == MsgTypeState {
		h.mu.Lock()
		h.latest = msg
		h.mu.Unlock()
	}

	select {
	case h.broadcast <- msg:
	default:
		logger.Debug("state hub busy, dropping message", logger.String("type", string(t)))
	}
}

// ========== Client 方法 ==========

// ReadPump 读取消息循环
func (c *Client) ReadPump(ctx context.Context, handler func(ctx context.Context, client *Client, msg *WSMessage)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.ErrorField(err), logger.String("operator", c.Operator))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid message format", logger.ErrorField(err))
			continue
		}

		if msg.Type == MsgTypePing {
			if data, err := encodeMessage(MsgTypePong, nil); err == nil {
				c.trySend(data)
			}
			continue
		}
		handler(ctx, c, &msg)
	}
}

// WritePump 写入消息循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub 关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage 发送消息给客户端，缓冲区满时丢弃
func (c *Client) SendMessage(t MessageType, data interface{}) error {
	msg, err := encodeMessage(t, data)
	if err != nil {
		return err
	}
	c.trySend(msg)
	return nil
}

func (c *Client) trySend(msg []byte) {
	defer func() {
		// Send 已被 Hub 关闭
		_ = recover()
	}()
	select {
	case c.Send <- msg:
	default:
	}
}
