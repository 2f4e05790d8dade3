// Package live 通过 WebSocket 推送各班级的当前课程
//
// 每个连接订阅一个 (batch, day)。Hub 在两种时机广播：
//   - 每分钟整点（由 job 包的定时任务调用 Broadcast）
//   - 课表快照被替换时（订阅 TimetableService 的变更通知）
package live

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"academic-info/internal/dto"
	"academic-info/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 4
)

// Message 推送给客户端的当前课程；current 为 null 表示当前无课
type Message struct {
	Batch   string               `json:"batch"`
	Day     string               `json:"day"`
	Time    string               `json:"time"`
	Current *dto.SessionResponse `json:"current"`
	Stale   bool                 `json:"stale,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type client struct {
	conn  *websocket.Conn
	batch string
	day   string
	send  chan Message
	once  sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub 管理全部 WebSocket 连接
type Hub struct {
	timetable service.TimetableService
	upgrader  websocket.Upgrader
	logger    *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub 创建 Hub；allowOrigins 为空时只接受同源连接
func NewHub(timetable service.TimetableService, allowOrigins []string, logger *zap.Logger) *Hub {
	h := &Hub{
		timetable: timetable,
		logger:    logger,
		clients:   make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowOrigins),
	}
	return h
}

func originChecker(allow []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, o := range allow {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Count 当前连接数
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Serve 升级连接并阻塞到连接关闭
// 班级不存在时在升级前返回错误，由调用方输出 HTTP 响应
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, batch, day string) error {
	first, err := h.message(r.Context(), batch, day)
	if err != nil {
		return err
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已写入 HTTP 错误响应
		h.logger.Debug("WebSocket 升级失败", zap.Error(err))
		return nil
	}

	c := &client{conn: conn, batch: batch, day: day, send: make(chan Message, sendBuffer)}
	c.send <- *first
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return nil
	}

	go h.writeLoop(c)
	h.readLoop(c)
	return nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readLoop 只处理 pong 与关闭帧，客户端发来的数据丢弃
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop 同一连接的写操作都在这里串行执行
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) message(ctx context.Context, batch, day string) (*Message, error) {
	cur, err := h.timetable.Current(ctx, batch, day, nil)
	if err != nil {
		return nil, err
	}
	msg := &Message{Batch: cur.Batch, Day: cur.Day, Time: cur.At, Current: cur.Current}
	if snap, err := h.timetable.Snapshot(ctx); err == nil {
		msg.Stale = snap.Stale
	}
	return msg, nil
}

// Broadcast 为每个连接重新定位当前课程并推送
// 发送缓冲已满的慢连接直接断开
func (h *Hub) Broadcast(ctx context.Context) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	computed := make(map[string]Message)
	var slow []*client
	for _, c := range targets {
		key := c.batch + "|" + c.day
		msg, ok := computed[key]
		if !ok {
			m, err := h.message(ctx, c.batch, c.day)
			if err != nil {
				// 班级在新数据中被删除等情况
				msg = Message{Batch: c.batch, Day: c.day, Error: err.Error()}
			} else {
				msg = *m
			}
			computed[key] = msg
		}

		h.mu.Lock()
		if _, alive := h.clients[c]; alive {
			select {
			case c.send <- msg:
			default:
				slow = append(slow, c)
			}
		}
		h.mu.Unlock()
	}

	for _, c := range slow {
		h.logger.Debug("断开慢速 WebSocket 连接", zap.String("batch", c.batch))
		h.unregister(c)
	}
}

// Watch 订阅课表变更通知并在后台广播，直到 ctx 结束；返回时订阅已建立
func (h *Hub) Watch(ctx context.Context) {
	changes, cancel := h.timetable.Subscribe()
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				h.Broadcast(ctx)
			}
		}
	}()
}

// Close 关闭全部连接，之后的新连接会被拒绝
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
